package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"loadhunt/internal"
	"loadhunt/internal/config"
	"loadhunt/internal/connectors"
)

type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	mailbox  string
	label    string
	markSeen bool
	logger   *zap.Logger
}

func NewConnector(cfg config.Config, logger *zap.Logger) (*Connector, error) {
	if err := cfg.Require("IMAP_HOST", cfg.IMAPHost); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_USER", cfg.IMAPUser); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_PASSWORD", cfg.IMAPPassword); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	label := cfg.MailLabel
	if label == "" {
		label = "INBOX"
	}
	return &Connector{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		mailbox:  cfg.MailboxAddress,
		label:    label,
		markSeen: cfg.IMAPMarkSeen,
		logger:   logger,
	}, nil
}

// Identity is the configured mailbox address, or the login when none is set.
func (c *Connector) Identity(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := c.mailbox
	if id == "" {
		id = c.user
	}
	return strings.ToLower(strings.TrimSpace(id)), nil
}

// ListUnread fetches the newest max unseen messages of the label. Bodies are
// peeked so the seen flag only changes when markSeen is set.
func (c *Connector) ListUnread(ctx context.Context, max int) ([]internal.InboundMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer client.Logout()

	stop := context.AfterFunc(ctx, func() { _ = client.Terminate() })
	defer stop()

	if err := client.Login(c.user, c.password); err != nil {
		return nil, eris.Wrap(err, "imap: login")
	}
	if _, err := client.Select(c.label, false); err != nil {
		return nil, eris.Wrapf(err, "imap: select %s", c.label)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := client.Search(criteria)
	if err != nil {
		return nil, eris.Wrap(err, "imap: search unseen")
	}
	if len(ids) == 0 || max <= 0 {
		return nil, nil
	}
	if len(ids) > max {
		ids = ids[len(ids)-max:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, len(ids))
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- client.Fetch(seqset, items, messages) }()

	out := make([]internal.InboundMessage, 0, len(ids))
	seen := new(imap.SeqSet)
	for msg := range messages {
		if msg == nil {
			continue
		}
		parsed, err := messageFromFetch(msg, section)
		if err != nil {
			c.logger.Warn("imap: message skipped", zap.String("reason", "malformed_message"),
				zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		out = append(out, parsed)
		seen.AddNum(msg.SeqNum)
	}
	if err := <-fetchDone; err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "imap: fetch")
		}
		return nil, eris.Wrap(err, "imap: fetch")
	}

	if c.markSeen && !seen.Empty() {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := client.Store(seen, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			c.logger.Warn("imap: mark seen failed", zap.String("reason", "store_failed"), zap.Error(err))
		}
	}
	return out, nil
}

func (c *Connector) dial() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	var (
		client *imapclient.Client
		err    error
	)
	if c.secure {
		client, err = imapclient.DialTLS(addr, &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.Dial(addr)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "imap: dial %s", addr)
	}
	return client, nil
}

// messageFromFetch parses the raw body. The envelope Message-ID is the
// provider id, falling back to the uid.
func messageFromFetch(msg *imap.Message, section *imap.BodySectionName) (internal.InboundMessage, error) {
	body := msg.GetBody(section)
	if body == nil {
		return internal.InboundMessage{}, eris.New("imap: body missing")
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return internal.InboundMessage{}, eris.Wrap(err, "imap: read body")
	}

	messageID := ""
	if msg.Envelope != nil {
		messageID = strings.TrimSpace(msg.Envelope.MessageId)
	}
	if messageID == "" {
		messageID = fmt.Sprintf("imap-%d", msg.Uid)
	}
	return connectors.ParseMIME("imap", messageID, raw, msg.InternalDate)
}
