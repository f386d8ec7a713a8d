package connectors

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMIME(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "hot_load.eml"))
	require.NoError(t, err)

	msg, err := ParseMIME("imap", "", raw, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, "imap", msg.Provider)
	assert.Equal(t, "<hl-1001@hotloadalerts.com>", msg.MessageID)
	assert.Equal(t, "alerts@hotloadalerts.com", msg.FromAddress)
	assert.Equal(t, "Hot Load Alerts", msg.FromName)
	assert.Equal(t, "SPRINTER from Dallas, TX to Austin, TX : 195 miles, 900 lbs.", msg.Subject)
	assert.Equal(t, time.Date(2026, 3, 2, 20, 5, 0, 0, time.UTC), msg.ReceivedAt)
	assert.Contains(t, msg.TextBody, "Please contact Acme Logistics")
	assert.Contains(t, msg.HTMLBody, "<b>Acme Logistics</b>")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "rate.pdf", msg.Attachments[0].FileName)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
}

func TestSplitAddress(t *testing.T) {
	addr, name := SplitAddress(`"Ops Desk" <Ops@Broker.com>`)
	assert.Equal(t, "ops@broker.com", addr)
	assert.Equal(t, "Ops Desk", name)

	addr, name = SplitAddress("not an address")
	assert.Equal(t, "not an address", addr)
	assert.Empty(t, name)
}
