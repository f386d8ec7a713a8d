package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"loadhunt/internal/config"
)

func b64(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

func sampleMessage() *gmail.Message {
	return &gmail.Message{
		Id:           "a",
		ThreadId:     "thread-a",
		InternalDate: 1772460300000,
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "VAN from Chicago, IL to Dallas, TX"},
				{Name: "From", Value: "Hot Load Alerts <Alerts@HotLoadAlerts.com>"},
			},
			Body: &gmail.MessagePartBody{},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("Pieces: 2")}},
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("Weight: 900 lbs")}},
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>Pieces: 2</p>")}},
				{MimeType: "application/pdf", Filename: "rate.pdf", Body: &gmail.MessagePartBody{AttachmentId: "att1", Size: 4}},
				{MimeType: "text/csv", Filename: "inline.csv", Body: &gmail.MessagePartBody{Data: b64("a,b")}},
			},
		},
	}
}

func TestMessageFromPayload(t *testing.T) {
	msg, pending := messageFromPayload(sampleMessage())

	assert.Equal(t, "a", msg.MessageID)
	assert.Equal(t, "thread-a", msg.ThreadID)
	assert.Equal(t, "alerts@hotloadalerts.com", msg.FromAddress)
	assert.Equal(t, "Hot Load Alerts", msg.FromName)
	assert.Equal(t, "Pieces: 2\nWeight: 900 lbs", msg.TextBody)
	assert.Equal(t, "<p>Pieces: 2</p>", msg.HTMLBody)
	assert.Equal(t, int64(1772460300000), msg.ReceivedAt.UnixMilli())
	require.Len(t, pending, 1)
	assert.Equal(t, "att1", pending[0].attachmentID)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "a,b", string(msg.Attachments[0].Content))
}

func TestListUnreadPagesAndFetches(t *testing.T) {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/gmail/v1/users/me/profile", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, gmail.Profile{EmailAddress: "Loads@Carrier.com"})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, unreadQuery, r.URL.Query().Get("q"))
		if r.URL.Query().Get("pageToken") == "p2" {
			writeJSON(w, gmail.ListMessagesResponse{Messages: []*gmail.Message{{Id: "b"}}})
			return
		}
		writeJSON(w, gmail.ListMessagesResponse{Messages: []*gmail.Message{{Id: "a"}}, NextPageToken: "p2"})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/a", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, sampleMessage())
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/b", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":404,"message":"gone"}}`, http.StatusNotFound)
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/a/attachments/att1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, gmail.MessagePartBody{Data: b64("%PDF")})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	svc, err := gmail.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	c := newConnector(svc, config.Config{MailLabel: "INBOX", MailPageSize: 1}, nil)

	identity, err := c.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "loads@carrier.com", identity)

	msgs, err := c.ListUnread(ctx, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", msgs[0].MessageID)
	require.Len(t, msgs[0].Attachments, 2)
	assert.Equal(t, "rate.pdf", msgs[0].Attachments[1].FileName)
	assert.Equal(t, "%PDF", string(msgs[0].Attachments[1].Content))
}
