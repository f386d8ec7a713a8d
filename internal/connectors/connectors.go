package connectors

import (
	"context"
	"net/mail"
	"strings"

	"loadhunt/internal"
)

// MailConnector lists unread messages of one mailbox. Identity is the
// mailbox address the tenant resolver keys on.
type MailConnector interface {
	Identity(ctx context.Context) (string, error)
	ListUnread(ctx context.Context, max int) ([]internal.InboundMessage, error)
}

// SplitAddress turns a From header into address and display name. A value
// that does not parse is returned as the address.
func SplitAddress(header string) (address, name string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ""
	}
	parsed, err := mail.ParseAddress(header)
	if err != nil {
		return strings.ToLower(strings.Trim(header, "<>")), ""
	}
	return strings.ToLower(parsed.Address), parsed.Name
}
