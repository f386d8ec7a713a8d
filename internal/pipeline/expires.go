package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// tzOffsets maps the US abbreviations brokers use to fixed UTC offsets in
// hours. Offsets are applied as written; the abbreviation decides DST.
var tzOffsets = map[string]int{
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
}

const (
	datePattern  = `(\d{4}-\d{1,2}-\d{1,2}|\d{1,2}/\d{1,2}/\d{2,4})`
	clockPattern = `(\d{1,2}:\d{2})(?::\d{2})?\s*([AaPp]\.?[Mm]\.?)?`
	zonePattern  = `([A-Za-z]{3})\b`
)

var (
	reExpiresLabelled = regexp.MustCompile(`(?i)\bexpir(?:es|ation|y|ing)?(?:\s+(?:on|at|date))?\s*[:\-]?\s*(?:\|\s*)?` +
		datePattern + `(?:\s*(?:T|@|at)\s*|\s+)` + clockPattern + `\s*` + zonePattern)
	reDateTimeValue = regexp.MustCompile(`^\s*` + datePattern + `(?:\s*(?:T|@|at)\s*|\s+)` + clockPattern + `\s*` + zonePattern)
)

func expirationStrategy(name string, where surface) Strategy[time.Time] {
	return Strategy[time.Time]{Name: name, Extract: func(src *source) (time.Time, bool) {
		m := submatch(reExpiresLabelled, src.on(where))
		if len(m) < 5 {
			return time.Time{}, false
		}
		return toUTC(m[1], m[2], m[3], m[4])
	}}
}

// parseExpirationValue reads a bare "date time TZ" value, as stored by a
// hint or found in a stop-table cell.
func parseExpirationValue(raw string) *time.Time {
	m := reDateTimeValue.FindStringSubmatch(raw)
	if len(m) < 5 {
		return nil
	}
	t, ok := toUTC(m[1], m[2], m[3], m[4])
	if !ok {
		return nil
	}
	return &t
}

// toUTC combines a date ("2025-12-14", "12/14/25"), a clock ("10:51"), an
// optional meridiem and a tz abbreviation into a UTC instant.
func toUTC(date, clock, meridiem, zone string) (time.Time, bool) {
	offset, ok := tzOffsets[strings.ToUpper(zone)]
	if !ok {
		return time.Time{}, false
	}

	year, month, day, ok := splitDate(date)
	if !ok {
		return time.Time{}, false
	}

	hm := strings.SplitN(clock, ":", 2)
	if len(hm) != 2 {
		return time.Time{}, false
	}
	hour, err1 := strconv.Atoi(hm[0])
	minute, err2 := strconv.Atoi(hm[1])
	if err1 != nil || err2 != nil || hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	switch strings.ToUpper(strings.ReplaceAll(meridiem, ".", "")) {
	case "PM":
		if hour > 12 {
			return time.Time{}, false
		}
		if hour < 12 {
			hour += 12
		}
	case "AM":
		if hour > 12 {
			return time.Time{}, false
		}
		if hour == 12 {
			hour = 0
		}
	}

	loc := time.FixedZone(strings.ToUpper(zone), offset*3600)
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func splitDate(date string) (year, month, day int, ok bool) {
	var parts []string
	iso := strings.Contains(date, "-")
	if iso {
		parts = strings.Split(date, "-")
	} else {
		parts = strings.Split(date, "/")
	}
	if len(parts) != 3 {
		return 0, 0, 0, false
	}

	yearPart, monthPart, dayPart := parts[0], parts[1], parts[2]
	if !iso {
		monthPart, dayPart, yearPart = parts[0], parts[1], parts[2]
	}
	if len(yearPart) == 2 {
		yearPart = "20" + yearPart
	}

	var err error
	if year, err = strconv.Atoi(yearPart); err != nil || len(yearPart) != 4 {
		return 0, 0, 0, false
	}
	if month, err = strconv.Atoi(monthPart); err != nil || month < 1 || month > 12 {
		return 0, 0, 0, false
	}
	if day, err = strconv.Atoi(dayPart); err != nil || day < 1 || day > 31 {
		return 0, 0, 0, false
	}
	return year, month, day, true
}
