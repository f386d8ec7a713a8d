package connectors

import (
	"bytes"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/rotisserie/eris"

	"loadhunt/internal"
)

// ParseMIME reads a raw RFC 822 message. messageID is used as the provider
// id; received falls back to the Date header when zero.
func ParseMIME(provider, messageID string, raw []byte, received time.Time) (internal.InboundMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return internal.InboundMessage{}, eris.Wrap(err, "mime: read envelope")
	}

	if messageID == "" {
		messageID = strings.TrimSpace(env.GetHeader("Message-ID"))
	}
	if received.IsZero() {
		if t, err := env.Date(); err == nil {
			received = t
		}
	}

	msg := internal.InboundMessage{
		Provider:   provider,
		MessageID:  messageID,
		Subject:    env.GetHeader("Subject"),
		ReceivedAt: received.UTC(),
		HTMLBody:   env.HTML,
		TextBody:   strings.ToValidUTF8(env.Text, "\uFFFD"),
	}
	msg.FromAddress, msg.FromName = SplitAddress(env.GetHeader("From"))

	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = "attachment"
		}
		msg.Attachments = append(msg.Attachments, internal.Attachment{
			FileName:    name,
			ContentType: att.ContentType,
			Content:     att.Content,
		})
	}
	return msg, nil
}
