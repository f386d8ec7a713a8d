package pipeline

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"loadhunt/internal/util"
)

const notesSeparator = " | "

var redColors = []string{"red", "#f00", "#ff0000", "#c00", "#cc0000", "#e00", "#ee0000", "rgb(255,0,0)"}

// boilerplate is dropped from notes by case-insensitive substring.
var boilerplate = []string{
	"submit your bid",
	"click here",
	"reply to this email",
	"do not reply",
	"unsubscribe",
	"this email was sent",
	"all rights reserved",
	"disclaimer",
	"confidential",
	"call now to book",
}

// parseNotes joins the red-styled segments of the HTML body. Brokers use
// red text for operator warnings.
func parseNotes(src *source) *string {
	if src.doc == nil {
		return nil
	}

	seen := map[string]struct{}{}
	var notes []string
	src.doc.Find("[style], font[color]").Each(func(_ int, sel *goquery.Selection) {
		if !isRed(sel) || hasRedAncestor(sel) {
			return
		}
		text := normalizeSpaces(sel.Text())
		if text == "" || isBoilerplate(text) {
			return
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		notes = append(notes, text)
	})
	return util.NonEmpty(strings.Join(notes, notesSeparator))
}

func isRed(sel *goquery.Selection) bool {
	if style, ok := sel.Attr("style"); ok {
		compact := strings.ToLower(strings.Join(strings.Fields(style), ""))
		for _, decl := range strings.Split(compact, ";") {
			name, value, found := strings.Cut(decl, ":")
			if !found || name != "color" {
				continue
			}
			if redValue(value) {
				return true
			}
		}
	}
	if goquery.NodeName(sel) == "font" {
		color, _ := sel.Attr("color")
		return redValue(strings.ToLower(strings.TrimSpace(color)))
	}
	return false
}

func redValue(value string) bool {
	value = strings.TrimSuffix(value, "!important")
	for _, c := range redColors {
		if value == c {
			return true
		}
	}
	return false
}

func hasRedAncestor(sel *goquery.Selection) bool {
	red := false
	sel.Parents().EachWithBreak(func(_ int, p *goquery.Selection) bool {
		red = isRed(p)
		return !red
	})
	return red
}

func isBoilerplate(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range boilerplate {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
