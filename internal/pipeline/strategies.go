package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"loadhunt/internal"
	"loadhunt/internal/util"
)

// Strategy is one named way of extracting a field. Extract reports false
// when it found nothing; it must never panic on odd input.
type Strategy[T any] struct {
	Name    string
	Extract func(src *source) (T, bool)
}

// FirstMatch tries strategies in order and returns the first success along
// with the winning strategy's name.
func FirstMatch[T any](src *source, strategies []Strategy[T]) (T, string, bool) {
	for _, s := range strategies {
		if v, ok := s.Extract(src); ok {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}

type surface int

const (
	inSubject surface = iota
	inBody
	inCombined
)

func (s *source) on(where surface) string {
	switch where {
	case inSubject:
		return s.subject
	case inBody:
		return s.body()
	default:
		return s.combined()
	}
}

const (
	labelSep   = `\s*[:#=|]\s*(?:\|\s*)?`
	numPattern = `(\d[\d,]*(?:\.\d+)?)`
	dimPattern = `(\d+(?:\.\d+)?)\s*(?:"|''|in\b)?\s*[x×*]\s*(\d+(?:\.\d+)?)\s*(?:"|''|in\b)?\s*[x×*]\s*(\d+(?:\.\d+)?)`
)

// labelled builds a case-insensitive "Label: " prefix from label words.
func labelled(labels ...string) string {
	alts := make([]string, 0, len(labels))
	for _, l := range labels {
		words := strings.Fields(l)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	return `(?i)\b(?:` + strings.Join(alts, "|") + `)` + labelSep
}

func submatch(re *regexp.Regexp, text string) []string {
	if text == "" {
		return nil
	}
	return re.FindStringSubmatch(text)
}

func numberStrategy(name string, where surface, pattern string) Strategy[float64] {
	re := regexp.MustCompile(pattern)
	return Strategy[float64]{Name: name, Extract: func(src *source) (float64, bool) {
		m := submatch(re, src.on(where))
		if len(m) < 2 {
			return 0, false
		}
		return util.ParseNumber(m[1])
	}}
}

func intStrategy(name string, where surface, pattern string) Strategy[int] {
	re := regexp.MustCompile(pattern)
	return Strategy[int]{Name: name, Extract: func(src *source) (int, bool) {
		m := submatch(re, src.on(where))
		if len(m) < 2 {
			return 0, false
		}
		n, ok := util.ParseInt(m[1])
		if !ok || n <= 0 {
			return 0, false
		}
		return n, true
	}}
}

func textStrategy(name string, where surface, pattern string) Strategy[string] {
	re := regexp.MustCompile(pattern)
	return Strategy[string]{Name: name, Extract: func(src *source) (string, bool) {
		m := submatch(re, src.on(where))
		if len(m) < 2 {
			return "", false
		}
		v := strings.Trim(normalizeSpaces(m[1]), " -:|,.")
		return v, v != ""
	}}
}

var reDims = regexp.MustCompile(`(?i)` + dimPattern)

func parseDimensions(raw string) (*internal.Dimensions, bool) {
	m := reDims.FindStringSubmatch(raw)
	if len(m) < 4 {
		return nil, false
	}
	vals := [3]float64{}
	for i := range vals {
		f, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil || f <= 0 {
			return nil, false
		}
		vals[i] = f
	}
	return &internal.Dimensions{Length: vals[0], Width: vals[1], Height: vals[2]}, true
}

func dimensionStrategy(name string, where surface, prefix string) Strategy[internal.Dimensions] {
	re := regexp.MustCompile(prefix + `(?i)` + dimPattern)
	return Strategy[internal.Dimensions]{Name: name, Extract: func(src *source) (internal.Dimensions, bool) {
		loc := re.FindStringIndex(src.on(where))
		if loc == nil {
			return internal.Dimensions{}, false
		}
		d, ok := parseDimensions(src.on(where)[loc[0]:loc[1]])
		if !ok {
			return internal.Dimensions{}, false
		}
		return *d, true
	}}
}

var (
	reSubjectRoute = regexp.MustCompile(`\b[Ff][Rr][Oo][Mm]\s+([A-Za-z][A-Za-z .'\-]*?),\s*([A-Z]{2})\b.*?\b[Tt][Oo]\s+([A-Za-z][A-Za-z .'\-]*?),\s*([A-Z]{2})\b`)
	reLocation     = regexp.MustCompile(`^\s*(?:([A-Za-z][A-Za-z .'\-]*?),\s*([A-Za-z]{2})\b)?[\s,]*(\d{5}(?:-\d{4})?)?`)
)

// subjectRoute reads "from <city>, <ST> to <city>, <ST>".
func subjectRoute() Strategy[routeMatch] {
	return Strategy[routeMatch]{Name: "subject_from_to", Extract: func(src *source) (routeMatch, bool) {
		m := submatch(reSubjectRoute, src.subject)
		if len(m) < 5 {
			return routeMatch{}, false
		}
		return routeMatch{
			originCity:  strings.TrimSpace(m[1]),
			originState: m[2],
			destCity:    strings.TrimSpace(m[3]),
			destState:   m[4],
		}, true
	}}
}

// labelledRoute reads "Origin: City, ST 12345" / "Destination: ..." lines.
// A postal code alone is accepted so the geocoder can backfill the city.
func labelledRoute(name string, originLabels, destLabels []string) Strategy[routeMatch] {
	reOrigin := regexp.MustCompile(`(?m)` + labelled(originLabels...) + `([^\n|]+)`)
	reDest := regexp.MustCompile(`(?m)` + labelled(destLabels...) + `([^\n|]+)`)
	return Strategy[routeMatch]{Name: name, Extract: func(src *source) (routeMatch, bool) {
		body := src.body()
		var r routeMatch
		if m := submatch(reOrigin, body); len(m) > 1 {
			r.originCity, r.originState, r.originPostal = parseLocation(m[1])
		}
		if m := submatch(reDest, body); len(m) > 1 {
			r.destCity, r.destState, r.destPostal = parseLocation(m[1])
		}
		ok := r.originCity != "" || r.originPostal != "" || r.destCity != "" || r.destPostal != ""
		return r, ok
	}}
}

// parseLocation splits "City, ST 12345" into its parts; any part may be empty.
func parseLocation(raw string) (city, state, postal string) {
	m := reLocation.FindStringSubmatch(normalizeSpaces(raw))
	if m == nil {
		return "", "", ""
	}
	city = strings.TrimSpace(m[1])
	if m[2] != "" {
		state = strings.ToUpper(m[2])
	}
	return city, state, m[3]
}

func labelledNumber(name string, labels ...string) Strategy[float64] {
	return numberStrategy(name, inBody, labelled(labels...)+`\$?\s*`+numPattern)
}

func labelledInt(name string, labels ...string) Strategy[int] {
	return intStrategy(name, inBody, labelled(labels...)+`(\d[\d,]*)`)
}

func labelledText(name string, labels ...string) Strategy[string] {
	return textStrategy(name, inBody, `(?m)`+labelled(labels...)+`([A-Za-z][^\n|]{0,59})`)
}

const (
	milesSuffix  = `(?i)` + numPattern + `\s*(?:loaded\s+)?(?:mi|miles)\b`
	weightSuffix = `(?i)` + numPattern + `\s*(?:lbs?|pounds)\b`
	piecesSuffix = `(?i)(\d[\d,]*)\s*(?:pcs|pieces|pallets|skids)\b`
	dollarAmount = `\$\s*` + numPattern
)
