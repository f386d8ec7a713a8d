package pipeline

import (
	"strings"

	"loadhunt/internal"
	"loadhunt/internal/config"
)

// Detection is the dialect chosen for a message and why.
type Detection struct {
	Dialect internal.Dialect
	Reason  string
}

type dialectMarkers struct {
	dialect        internal.Dialect
	senderDomains  []string
	subjectMarkers []string
	bodyMarkers    []string
}

// Detector routes a message to a dialect parser. Sender domain beats subject
// markers, which beat body markers; within a tier the network posting rules
// are checked before the hot load rules.
type Detector struct {
	rules    []dialectMarkers
	fallback internal.Dialect
}

func NewDetector(cfg config.Config) *Detector {
	fallback := internal.Dialect(strings.ToLower(strings.TrimSpace(cfg.DefaultDialect)))
	if fallback != internal.DialectNetworkPost {
		fallback = internal.DialectHotLoad
	}
	return &Detector{
		rules: []dialectMarkers{
			{
				dialect:        internal.DialectNetworkPost,
				senderDomains:  lowerAll(cfg.NetworkSenderDomains),
				subjectMarkers: lowerAll(cfg.NetworkSubjectMarkers),
				bodyMarkers:    lowerAll(cfg.NetworkBodyMarkers),
			},
			{
				dialect:        internal.DialectHotLoad,
				senderDomains:  lowerAll(cfg.HotLoadSenderDomains),
				subjectMarkers: lowerAll(cfg.HotLoadSubjectMarkers),
				bodyMarkers:    lowerAll(cfg.HotLoadBodyMarkers),
			},
		},
		fallback: fallback,
	}
}

func (d *Detector) Detect(msg internal.InboundMessage) Detection {
	domain := senderDomain(msg.FromAddress)
	if domain != "" {
		for _, r := range d.rules {
			for _, want := range r.senderDomains {
				if domain == want || strings.HasSuffix(domain, "."+want) {
					return Detection{Dialect: r.dialect, Reason: "sender_domain:" + want}
				}
			}
		}
	}

	subject := strings.ToLower(msg.Subject)
	for _, r := range d.rules {
		if tok, ok := containsAny(subject, r.subjectMarkers); ok {
			return Detection{Dialect: r.dialect, Reason: "subject:" + tok}
		}
	}

	body := strings.ToLower(msg.HTMLBody + "\n" + msg.TextBody)
	for _, r := range d.rules {
		if marker, ok := containsAny(body, r.bodyMarkers); ok {
			return Detection{Dialect: r.dialect, Reason: "body:" + marker}
		}
	}

	return Detection{Dialect: d.fallback, Reason: "default"}
}

func senderDomain(address string) string {
	address = strings.Trim(strings.ToLower(strings.TrimSpace(address)), "<>")
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return ""
	}
	return address[at+1:]
}

func containsAny(haystack string, needles []string) (string, bool) {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, n) {
			return n, true
		}
	}
	return "", false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
