package pipeline

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"loadhunt/internal/util"
)

const (
	contactPhrase = "please contact"
	phonePattern  = `\+?1?[\s.\-]?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}(?:\s*(?:x|ext\.?)\s*\d{1,5})?`
	emailPattern  = `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`
)

var (
	reMC         = regexp.MustCompile(`(?i)\bMC\s*(?:#|No\.?|Number)?\s*[:#]?\s*(\d{4,8})\b`)
	reMCMarkup   = regexp.MustCompile(`(?i)\bmc(?:_?number|_?no)?=["']?(\d{4,8})\b`)
	rePhone      = regexp.MustCompile(`(?i)\b(?:phone|ph|tel|telephone|office|call|cell)\b\.?\s*[:#]?\s*(?:\|\s*)?(` + phonePattern + `)`)
	reFax        = regexp.MustCompile(`(?i)\bfax\b\.?\s*[:#]?\s*(?:\|\s*)?(` + phonePattern + `)`)
	rePhoneAny   = regexp.MustCompile(phonePattern)
	reEmailLabel = regexp.MustCompile(`(?i)\be-?mail\b\s*[:#]?\s*(?:\|\s*)?(` + emailPattern + `)`)
	reEmailAny   = regexp.MustCompile(emailPattern)

	companyStops = []string{"|", "(", "[", " at ", " mc", ",", " - ", " for ", " via ", " by ", " @ ", " on ", " to ", " if "}
	notCompanies = map[string]struct{}{"us": {}, "me": {}, "our office": {}, "the broker": {}, "broker": {}, "dispatch": {}}
	ignoredMail  = []string{"noreply", "no-reply", "donotreply", "unsubscribe", "bounce"}
)

type contactBlock struct {
	text   string
	markup string
}

// parseBroker extracts the broker identity. The "please contact" block is
// read from HTML first because the MC number is often only present there.
func parseBroker(src *source, nameStrategies []Strategy[string]) ParsedShipment {
	var out ParsedShipment

	blocks := []contactBlock{}
	if b, ok := htmlContactBlock(src); ok {
		blocks = append(blocks, b)
	}
	if b, ok := textContactBlock(src.body()); ok {
		blocks = append(blocks, b)
	}

	for _, b := range blocks {
		if out.BrokerCompany == nil {
			out.BrokerCompany = util.NonEmpty(companyFrom(b.text))
		}
		if out.BrokerMC == nil {
			out.BrokerMC = util.NonEmpty(firstGroup(reMC, b.text, b.markup))
			if out.BrokerMC == nil {
				out.BrokerMC = util.NonEmpty(firstGroup(reMCMarkup, b.markup))
			}
		}
	}
	if out.BrokerMC == nil {
		out.BrokerMC = util.NonEmpty(firstGroup(reMC, src.combined()))
	}

	blockText := ""
	for _, b := range blocks {
		blockText += b.text + "\n"
	}

	fax := firstGroup(reFax, blockText, src.combined())
	out.BrokerFax = util.NonEmpty(fax)

	phone := firstGroup(rePhone, blockText, src.combined())
	if phone == "" {
		for _, candidate := range rePhoneAny.FindAllString(blockText, -1) {
			if !samePhone(candidate, fax) {
				phone = candidate
				break
			}
		}
	}
	out.BrokerPhone = util.NonEmpty(phone)

	out.BrokerEmail = util.NonEmpty(brokerEmail(src))
	if v, _, ok := FirstMatch(src, nameStrategies); ok {
		out.BrokerName = util.NonEmpty(v)
	}
	return out
}

// htmlContactBlock returns the smallest element that carries the contact
// phrase and something after it.
func htmlContactBlock(src *source) (contactBlock, bool) {
	if src.doc == nil {
		return contactBlock{}, false
	}

	var best *goquery.Selection
	bestLen := 0
	src.doc.Find("body *").Each(func(_ int, sel *goquery.Selection) {
		text := strings.ToLower(normalizeSpaces(sel.Text()))
		idx := strings.Index(text, contactPhrase)
		if idx < 0 || len(text)-idx-len(contactPhrase) < 3 {
			return
		}
		if best == nil || len(text) < bestLen {
			best, bestLen = sel, len(text)
		}
	})
	if best == nil {
		return contactBlock{}, false
	}

	markup, err := goquery.OuterHtml(best)
	if err != nil {
		return contactBlock{}, false
	}
	return contactBlock{text: htmlToText(markup), markup: markup}, true
}

func textContactBlock(body string) (contactBlock, bool) {
	idx, _ := util.IndexFold(body, contactPhrase)
	if idx < 0 {
		return contactBlock{}, false
	}
	block := body[idx:]
	if end := strings.Index(block, "\n\n"); end > 0 {
		block = block[:end]
	}
	if len(block) > 300 {
		block = block[:300]
	}
	return contactBlock{text: block}, true
}

// companyFrom reads the name that follows "please contact" up to the first
// separator.
func companyFrom(block string) string {
	_, end := util.IndexFold(block, contactPhrase)
	if end < 0 {
		return ""
	}
	rest := block[end:]
	rest = strings.TrimLeft(rest, " :\t")
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}

	cut := len(rest)
	for _, stop := range companyStops {
		if i, _ := util.IndexFold(rest, stop); i >= 0 && i < cut {
			cut = i
		}
	}
	if m := rePhoneAny.FindStringIndex(rest); m != nil && m[0] < cut {
		cut = m[0]
	}

	company := strings.Trim(normalizeSpaces(rest[:cut]), " .:;-")
	if company == "" || len(company) > 80 || strings.Contains(company, "@") {
		return ""
	}
	if _, bad := notCompanies[strings.ToLower(company)]; bad {
		return ""
	}
	return company
}

// brokerEmail prefers a mailto link, then an "Email:" label, then an address
// carried in the subject.
func brokerEmail(src *source) string {
	if src.doc != nil {
		found := ""
		src.doc.Find(`a[href]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "mailto:") {
				return true
			}
			addr := strings.TrimSpace(href)[len("mailto:"):]
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if reEmailAny.MatchString(addr) && !ignoredAddress(addr) {
				found = addr
				return false
			}
			return true
		})
		if found != "" {
			return strings.ToLower(found)
		}
	}

	for _, m := range reEmailLabel.FindAllStringSubmatch(src.combined(), -1) {
		if !ignoredAddress(m[1]) {
			return strings.ToLower(m[1])
		}
	}

	for _, addr := range reEmailAny.FindAllString(src.subject, -1) {
		if !ignoredAddress(addr) {
			return strings.ToLower(addr)
		}
	}
	return ""
}

func ignoredAddress(addr string) bool {
	lower := strings.ToLower(addr)
	for _, marker := range ignoredMail {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func firstGroup(re *regexp.Regexp, texts ...string) string {
	for _, text := range texts {
		if m := submatch(re, text); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func samePhone(a, b string) bool {
	if b == "" {
		return false
	}
	return util.NormalizeToken(a) == util.NormalizeToken(b)
}
