package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces      = regexp.MustCompile(`\s+`)
	reTrailingUSA = regexp.MustCompile(`(?:(?:,\s*|\s+)(?:USA|US|UNITED STATES))+$`)
	reNonAlnum    = regexp.MustCompile(`[^a-z0-9]+`)
)

// Fold strips diacritics so "Montréal" and "Montreal" share a key.
func Fold(input string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, input)
	if err != nil {
		return input
	}
	return out
}

// CollapseSpaces trims and squeezes runs of whitespace (including nbsp) to one space.
func CollapseSpaces(input string) string {
	input = strings.ReplaceAll(input, "\u00a0", " ")
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// NormalizeLocationKey builds the geocode cache key: "CITY, ST" uppercased,
// whitespace collapsed, trailing country stripped.
func NormalizeLocationKey(city, state string) string {
	raw := strings.TrimSpace(city)
	if s := strings.TrimSpace(state); s != "" {
		if raw != "" {
			raw += ", "
		}
		raw += s
	}
	return NormalizeLocationString(raw)
}

func NormalizeLocationString(raw string) string {
	s := strings.ToUpper(Fold(raw))
	s = CollapseSpaces(s)
	s = strings.ReplaceAll(s, " ,", ",")
	s = reTrailingUSA.ReplaceAllString(s, "")
	s = strings.TrimRight(strings.TrimSpace(s), ",")
	return strings.TrimSpace(s)
}

// NormalizeToken lowercases and drops everything but [a-z0-9].
func NormalizeToken(input string) string {
	return reNonAlnum.ReplaceAllString(strings.ToLower(Fold(input)), "")
}

// IndexFold finds sub in s ignoring case and returns byte offsets into s
// itself, or -1, -1. Lowercasing s first would shift offsets whenever case
// mapping or invalid UTF-8 changes the byte length.
func IndexFold(s, sub string) (start, end int) {
	if sub == "" {
		return -1, -1
	}
	loc := regexp.MustCompile("(?i)" + regexp.QuoteMeta(sub)).FindStringIndex(s)
	if loc == nil {
		return -1, -1
	}
	return loc[0], loc[1]
}

func StringPtr(v string) *string {
	return &v
}

func FloatPtr(v float64) *float64 {
	return &v
}

func IntPtr(v int) *int {
	return &v
}

func Int64Ptr(v int64) *int64 {
	return &v
}

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// NonEmpty returns nil for blank strings.
func NonEmpty(v string) *string {
	v = CollapseSpaces(v)
	if v == "" {
		return nil
	}
	return &v
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
