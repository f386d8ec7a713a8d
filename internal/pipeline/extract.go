package pipeline

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"loadhunt/internal"
	"loadhunt/internal/util"
)

var (
	reBlockTags = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/tr|/li|/h[1-6]|/table)\s*/?>`)
	reCellTags  = regexp.MustCompile(`(?i)<\s*/t[dh]\s*>`)
)

// source is one message prepared for extraction. html is parsed once.
type source struct {
	subject  string
	html     string
	text     string
	htmlText string
	doc      *goquery.Document
}

func newSource(subject, html, text string) *source {
	src := &source{
		subject: util.CollapseSpaces(subject),
		html:    html,
		text:    strings.ReplaceAll(text, "\r\n", "\n"),
	}
	if strings.TrimSpace(html) == "" {
		return src
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		src.doc = doc
	}
	src.htmlText = htmlToText(html)
	return src
}

// body is the text alternative when present, else the text rendered from HTML.
func (s *source) body() string {
	if strings.TrimSpace(s.text) != "" {
		return s.text
	}
	return s.htmlText
}

// combined is every text surface of the message, used by hint patterns and
// last-chance strategies.
func (s *source) combined() string {
	parts := []string{s.subject}
	if strings.TrimSpace(s.text) != "" {
		parts = append(parts, s.text)
	}
	if s.htmlText != "" {
		parts = append(parts, s.htmlText)
	}
	return strings.Join(parts, "\n")
}

// htmlToText keeps line structure: block tags become newlines, cells become
// " | " so labelled values stay on their own line.
func htmlToText(html string) string {
	marked := reBlockTags.ReplaceAllString(html, "$0\n")
	marked = reCellTags.ReplaceAllString(marked, "$0 | ")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(marked))
	if err != nil {
		return ""
	}
	doc.Find("script,style,head").Remove()
	lines := splitLines(doc.Text())
	for i, line := range lines {
		lines[i] = strings.Trim(normalizeSpaces(line), "| ")
	}
	return strings.Join(lines, "\n")
}

// Parse runs the dialect's parser over one message. It never fails: fields
// that cannot be extracted stay nil.
func Parse(dialect internal.Dialect, subject, html, text string) ParsedShipment {
	return parserFor(dialect).parse(newSource(subject, html, text))
}

func parserFor(dialect internal.Dialect) *dialectParser {
	if dialect == internal.DialectNetworkPost {
		return networkPostParser
	}
	return hotLoadParser
}

// dialectParser is the strategy table for one upstream format. Each field is
// tried strategy by strategy until one succeeds.
type dialectParser struct {
	dialect    internal.Dialect
	route      []Strategy[routeMatch]
	vehicle    []Strategy[string]
	miles      []Strategy[float64]
	weight     []Strategy[float64]
	pieces     []Strategy[int]
	dimensions []Strategy[internal.Dimensions]
	rate       []Strategy[float64]
	expiration []Strategy[time.Time]
	brokerName []Strategy[string]
}

func (d *dialectParser) parse(src *source) ParsedShipment {
	var out ParsedShipment

	if stops := parseStopTable(src); len(stops) > 0 {
		out.Stops = stops
		applyStops(&out, stops)
	}
	if r, _, ok := FirstMatch(src, d.route); ok {
		fallback := r.parsed()
		if hasStop(out.Stops, internal.StopPickup) {
			fallback.OriginCity, fallback.OriginState, fallback.OriginPostal = nil, nil, nil
		}
		if hasStop(out.Stops, internal.StopDelivery) {
			fallback.DestinationCity, fallback.DestinationState, fallback.DestinationPostal = nil, nil, nil
		}
		out.Merge(fallback)
	}

	if v, _, ok := FirstMatch(src, d.vehicle); ok {
		out.VehicleType = util.NonEmpty(v)
	}
	if v, _, ok := FirstMatch(src, d.miles); ok {
		out.LoadedMiles = &v
	}
	if v, _, ok := FirstMatch(src, d.weight); ok {
		out.Weight = &v
	}
	if v, _, ok := FirstMatch(src, d.pieces); ok {
		out.Pieces = &v
	}
	if v, _, ok := FirstMatch(src, d.dimensions); ok {
		out.Dimensions = &v
	}
	if v, _, ok := FirstMatch(src, d.rate); ok {
		out.PostedRate = &v
	}
	if v, _, ok := FirstMatch(src, d.expiration); ok {
		t := v.UTC()
		out.ExpiresAt = &t
	}

	out.Merge(parseBroker(src, d.brokerName))
	out.Notes = parseNotes(src)
	return out
}

// routeMatch is a subject- or body-derived origin/destination pair.
type routeMatch struct {
	originCity, originState, originPostal string
	destCity, destState, destPostal       string
}

func (r routeMatch) parsed() ParsedShipment {
	return ParsedShipment{
		OriginCity:        util.NonEmpty(r.originCity),
		OriginState:       util.NonEmpty(r.originState),
		OriginPostal:      util.NonEmpty(r.originPostal),
		DestinationCity:   util.NonEmpty(r.destCity),
		DestinationState:  util.NonEmpty(r.destState),
		DestinationPostal: util.NonEmpty(r.destPostal),
	}
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSpaces(input string) string {
	return util.CollapseSpaces(input)
}

func pickCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}
