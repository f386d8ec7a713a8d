package pipeline

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"loadhunt/internal"
	"loadhunt/internal/util"
)

type stopColumns struct {
	seq, kind, city, state, postal, country, datetime, tz int
}

// positionalColumns is the column order the network posting table uses when
// it is sent without a header row.
var positionalColumns = stopColumns{seq: 0, kind: 1, city: 2, state: 3, postal: 4, country: 5, datetime: 6, tz: 7}

var reISODateTime = regexp.MustCompile(`^\s*(\d{4}-\d{1,2}-\d{1,2}|\d{1,2}/\d{1,2}/\d{2,4})(?:\s*(?:T|@)\s*|\s+)(\d{1,2}:\d{2})(?::\d{2})?\s*([AaPp][Mm])?`)

// parseStopTable finds the first HTML table whose rows carry stop types and
// returns its rows in sequence order.
func parseStopTable(src *source) []internal.Stop {
	if src.doc == nil {
		return nil
	}

	var stops []internal.Stop
	src.doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.Closest("table").Get(0) == table.Get(0)
		})
		if rows.Length() < 2 {
			return true
		}

		headers := rowCells(rows.First())
		cols, hasHeader := detectStopColumns(headers)
		body := rows
		if hasHeader {
			body = rows.Slice(1, rows.Length())
		} else {
			cols = positionalColumns
		}

		found := []internal.Stop{}
		body.Each(func(_ int, row *goquery.Selection) {
			if stop, ok := rowToStop(rowCells(row), cols, len(found)+1); ok {
				found = append(found, stop)
			}
		})
		if len(found) == 0 {
			return true
		}
		sort.SliceStable(found, func(i, j int) bool { return found[i].Sequence < found[j].Sequence })
		stops = found
		return false
	})
	return stops
}

func rowCells(row *goquery.Selection) []string {
	cells := []string{}
	row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, normalizeSpaces(cell.Text()))
	})
	return cells
}

// detectStopColumns maps header labels to columns. It needs at least a type
// and a city column to call the row a header.
func detectStopColumns(headers []string) (stopColumns, bool) {
	cols := stopColumns{-1, -1, -1, -1, -1, -1, -1, -1}
	for i, raw := range headers {
		h := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case strings.Contains(h, "zip") || strings.Contains(h, "postal"):
			setOnce(&cols.postal, i)
		case strings.Contains(h, "country"):
			setOnce(&cols.country, i)
		case strings.Contains(h, "type") || h == "action" || h == "p/d":
			setOnce(&cols.kind, i)
		case strings.Contains(h, "seq") || h == "#" || h == "stop" || h == "stop #" || h == "no" || h == "no.":
			setOnce(&cols.seq, i)
		case strings.Contains(h, "city"):
			setOnce(&cols.city, i)
		case strings.Contains(h, "state") || h == "st" || h == "prov":
			setOnce(&cols.state, i)
		case strings.Contains(h, "zone") || h == "tz":
			setOnce(&cols.tz, i)
		case strings.Contains(h, "date") || strings.Contains(h, "time") || strings.Contains(h, "appt") || strings.Contains(h, "appoint") || strings.Contains(h, "scheduled"):
			setOnce(&cols.datetime, i)
		}
	}
	return cols, cols.kind >= 0 && cols.city >= 0
}

func setOnce(dst *int, i int) {
	if *dst < 0 {
		*dst = i
	}
}

func rowToStop(cells []string, cols stopColumns, fallbackSeq int) (internal.Stop, bool) {
	kind, ok := stopType(pickCell(cells, cols.kind))
	if !ok {
		return internal.Stop{}, false
	}
	city := pickCell(cells, cols.city)
	state := strings.ToUpper(pickCell(cells, cols.state))
	postal := pickCell(cells, cols.postal)
	if city == "" && postal == "" {
		return internal.Stop{}, false
	}

	seq := fallbackSeq
	if n, err := strconv.Atoi(strings.Trim(pickCell(cells, cols.seq), "#. ")); err == nil && n > 0 {
		seq = n
	}

	stop := internal.Stop{
		Sequence:   seq,
		Type:       kind,
		City:       city,
		State:      state,
		PostalCode: postal,
		Country:    strings.ToUpper(pickCell(cells, cols.country)),
		Timezone:   strings.ToUpper(pickCell(cells, cols.tz)),
	}

	if m := reISODateTime.FindStringSubmatch(pickCell(cells, cols.datetime)); m != nil {
		zone := stop.Timezone
		if zone == "" {
			zone = trailingZone(pickCell(cells, cols.datetime))
			stop.Timezone = zone
		}
		if t, ok := toUTC(m[1], m[2], m[3], zone); ok {
			stop.ScheduledAt = &t
		}
	}
	return stop, true
}

var reTrailingZone = regexp.MustCompile(`\b([A-Z]{3})\s*$`)

func trailingZone(value string) string {
	if m := reTrailingZone.FindStringSubmatch(value); m != nil {
		if _, ok := tzOffsets[m[1]]; ok {
			return m[1]
		}
	}
	return ""
}

func stopType(raw string) (internal.StopType, bool) {
	v := strings.ToLower(raw)
	switch {
	case strings.Contains(v, "pick"), strings.Contains(v, "shipper"), strings.Contains(v, "origin"), v == "p", v == "pu":
		return internal.StopPickup, true
	case strings.Contains(v, "deliver"), strings.Contains(v, "drop"), strings.Contains(v, "consignee"),
		strings.Contains(v, "dest"), v == "d", v == "del":
		return internal.StopDelivery, true
	default:
		return "", false
	}
}

// applyStops sets origin from the first pickup and destination from the first
// delivery. Stop-table values take precedence over anything merged later.
func applyStops(out *ParsedShipment, stops []internal.Stop) {
	for _, s := range stops {
		if s.Type == internal.StopPickup && out.OriginCity == nil && out.OriginPostal == nil {
			out.OriginCity = util.NonEmpty(s.City)
			out.OriginState = util.NonEmpty(s.State)
			out.OriginPostal = util.NonEmpty(s.PostalCode)
		}
		if s.Type == internal.StopDelivery && out.DestinationCity == nil && out.DestinationPostal == nil {
			out.DestinationCity = util.NonEmpty(s.City)
			out.DestinationState = util.NonEmpty(s.State)
			out.DestinationPostal = util.NonEmpty(s.PostalCode)
		}
	}
}

func hasStop(stops []internal.Stop, kind internal.StopType) bool {
	for _, s := range stops {
		if s.Type == kind {
			return true
		}
	}
	return false
}
