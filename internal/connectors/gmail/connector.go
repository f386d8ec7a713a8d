package gmail

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"loadhunt/internal"
	"loadhunt/internal/config"
	"loadhunt/internal/connectors"
)

const unreadQuery = "is:unread"

type Connector struct {
	service  *gmail.Service
	label    string
	pageSize int
	logger   *zap.Logger
}

func NewConnector(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, eris.Wrap(err, "gmail: new service")
	}
	return newConnector(svc, cfg, logger), nil
}

func newConnector(svc *gmail.Service, cfg config.Config, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := cfg.MailPageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Connector{service: svc, label: cfg.MailLabel, pageSize: pageSize, logger: logger}
}

func (c *Connector) Identity(ctx context.Context) (string, error) {
	profile, err := c.service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", eris.Wrap(err, "gmail: get profile")
	}
	return strings.ToLower(profile.EmailAddress), nil
}

// ListUnread pages through unread message ids up to max and fetches each in
// full format. A message that fails to fetch is logged and skipped.
func (c *Connector) ListUnread(ctx context.Context, max int) ([]internal.InboundMessage, error) {
	ids, err := c.unreadIDs(ctx, max)
	if err != nil {
		return nil, err
	}

	out := make([]internal.InboundMessage, 0, len(ids))
	for _, id := range ids {
		full, err := c.service.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			if ctx.Err() != nil {
				return out, eris.Wrap(ctx.Err(), "gmail: list unread")
			}
			c.logger.Warn("gmail: message skipped", zap.String("reason", "fetch_failed"),
				zap.String("message_id", id), zap.Error(err))
			continue
		}

		msg, pending := messageFromPayload(full)
		for _, p := range pending {
			att, err := c.service.Users.Messages.Attachments.Get("me", id, p.attachmentID).Context(ctx).Do()
			if err != nil {
				c.logger.Debug("gmail: attachment skipped", zap.String("reason", "attachment_fetch_failed"),
					zap.String("message_id", id), zap.String("file", p.fileName), zap.Error(err))
				continue
			}
			content, err := decodeBase64URL(att.Data)
			if err != nil {
				continue
			}
			msg.Attachments = append(msg.Attachments, internal.Attachment{
				FileName: p.fileName, ContentType: p.contentType, Content: content,
			})
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *Connector) unreadIDs(ctx context.Context, max int) ([]string, error) {
	var ids []string
	pageToken := ""
	for len(ids) < max {
		call := c.service.Users.Messages.List("me").Q(unreadQuery).MaxResults(int64(min(c.pageSize, max-len(ids))))
		if c.label != "" {
			call = call.LabelIds(c.label)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, eris.Wrap(err, "gmail: list messages")
		}
		for _, ref := range resp.Messages {
			if ref.Id != "" && len(ids) < max {
				ids = append(ids, ref.Id)
			}
		}
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

type pendingAttachment struct {
	attachmentID string
	fileName     string
	contentType  string
}

// messageFromPayload walks the part tree. text/plain parts are joined in
// order; attachments stored out of line are returned for a second fetch.
func messageFromPayload(m *gmail.Message) (internal.InboundMessage, []pendingAttachment) {
	msg := internal.InboundMessage{
		Provider:   "gmail",
		MessageID:  m.Id,
		ThreadID:   m.ThreadId,
		ReceivedAt: time.UnixMilli(m.InternalDate).UTC(),
	}
	if m.Payload == nil {
		return msg, nil
	}

	for _, h := range m.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			msg.Subject = h.Value
		case "from":
			msg.FromAddress, msg.FromName = connectors.SplitAddress(h.Value)
		}
	}

	var texts, htmls []string
	var pending []pendingAttachment
	var walk func(p *gmail.MessagePart)
	walk = func(p *gmail.MessagePart) {
		if p == nil {
			return
		}
		mime := strings.ToLower(p.MimeType)
		switch {
		case p.Filename != "" && p.Body != nil:
			if p.Body.AttachmentId != "" {
				pending = append(pending, pendingAttachment{attachmentID: p.Body.AttachmentId, fileName: p.Filename, contentType: p.MimeType})
			} else if content, err := decodeBase64URL(p.Body.Data); err == nil && len(content) > 0 {
				msg.Attachments = append(msg.Attachments, internal.Attachment{FileName: p.Filename, ContentType: p.MimeType, Content: content})
			}
		case mime == "text/plain":
			texts = append(texts, partText(p))
		case mime == "text/html":
			htmls = append(htmls, partText(p))
		}
		for _, child := range p.Parts {
			walk(child)
		}
	}
	walk(m.Payload)

	msg.TextBody = strings.TrimSpace(strings.Join(nonEmpty(texts), "\n"))
	msg.HTMLBody = strings.Join(nonEmpty(htmls), "\n")
	return msg, pending
}

func partText(p *gmail.MessagePart) string {
	if p.Body == nil || p.Body.Data == "" {
		return ""
	}
	decoded, err := decodeBase64URL(p.Body.Data)
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(decoded), "\uFFFD")
}

func nonEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, eris.Wrap(err, "decode gmail payload")
}
