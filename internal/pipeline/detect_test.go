package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"loadhunt/internal"
	"loadhunt/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		HotLoadSenderDomains:  []string{"hotloadalerts.com"},
		HotLoadSubjectMarkers: []string{"HOT LOAD"},
		HotLoadBodyMarkers:    []string{"Call now to book"},
		NetworkSenderDomains:  []string{"freightnetwork.io"},
		NetworkSubjectMarkers: []string{"Network Posting"},
		NetworkBodyMarkers:    []string{"app.freightnetwork.io"},
		DefaultDialect:        "hot_load",
		RegionalRadiusMiles:   500,
		MailFetchMax:          50,
		BatchWorkers:          2,
	}
}

func TestDetect(t *testing.T) {
	d := NewDetector(testConfig())
	cases := []struct {
		name    string
		msg     internal.InboundMessage
		dialect internal.Dialect
		reason  string
	}{
		{
			name:    "sender subdomain",
			msg:     internal.InboundMessage{FromAddress: "Posts <posts@mail.freightnetwork.io>", Subject: "HOT LOAD"},
			dialect: internal.DialectNetworkPost,
			reason:  "sender_domain:freightnetwork.io",
		},
		{
			name:    "subject marker",
			msg:     internal.InboundMessage{FromAddress: "a@broker.com", Subject: "Hot Load: VAN from Waco, TX to Tyler, TX"},
			dialect: internal.DialectHotLoad,
			reason:  "subject:hot load",
		},
		{
			name:    "body marker",
			msg:     internal.InboundMessage{FromAddress: "a@broker.com", HTMLBody: `<a href="https://app.freightnetwork.io/l/1">View</a>`},
			dialect: internal.DialectNetworkPost,
			reason:  "body:app.freightnetwork.io",
		},
		{
			name:    "default",
			msg:     internal.InboundMessage{FromAddress: "a@broker.com", Subject: "load"},
			dialect: internal.DialectHotLoad,
			reason:  "default",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := d.Detect(tc.msg)
			assert.Equal(t, tc.dialect, got.Dialect)
			assert.Equal(t, tc.reason, got.Reason)
		})
	}
}

func TestDetectDefaultDialectFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultDialect = "network_post"
	assert.Equal(t, internal.DialectNetworkPost, NewDetector(cfg).Detect(internal.InboundMessage{}).Dialect)
}
