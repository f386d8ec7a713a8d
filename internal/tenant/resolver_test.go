package tenant

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadhunt/internal"
	"loadhunt/internal/storage"
)

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestResolveOrder(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		mapping      map[string]string
		integrations []internal.Integration
		mailbox      string
		want         string
		wantErr      bool
	}{
		{
			name:    "stored mapping wins",
			mapping: map[string]string{"loads@acme.com": "tenant-map"},
			integrations: []internal.Integration{
				{TenantID: "tenant-int", Provider: "gmail", Enabled: true, Mailbox: "loads@acme.com"},
			},
			mailbox: "Loads@Acme.com",
			want:    "tenant-map",
		},
		{
			name: "integration referencing mailbox",
			integrations: []internal.Integration{
				{TenantID: "tenant-x", Provider: "gmail", Enabled: true, Mailbox: "other@acme.com"},
				{TenantID: "tenant-y", Provider: "gmail", Enabled: true, Mailbox: "loads@acme.com"},
			},
			mailbox: "loads@acme.com",
			want:    "tenant-y",
		},
		{
			name: "sole integration",
			integrations: []internal.Integration{
				{TenantID: "tenant-only", Provider: "imap", Enabled: true},
			},
			mailbox: "loads@acme.com",
			want:    "tenant-only",
		},
		{
			name: "sole integration for another mailbox fails closed",
			integrations: []internal.Integration{
				{TenantID: "tenant-other", Provider: "gmail", Enabled: true, Mailbox: "dispatch@other.com"},
			},
			mailbox: "loads@acme.com",
			wantErr: true,
		},
		{
			name: "ambiguous integrations fail closed",
			integrations: []internal.Integration{
				{TenantID: "tenant-x", Provider: "gmail", Enabled: true},
				{TenantID: "tenant-y", Provider: "gmail", Enabled: true},
			},
			mailbox: "loads@acme.com",
			wantErr: true,
		},
		{
			name: "disabled integration ignored",
			integrations: []internal.Integration{
				{TenantID: "tenant-x", Provider: "gmail", Enabled: false},
			},
			mailbox: "loads@acme.com",
			wantErr: true,
		},
		{
			name:    "empty mailbox",
			mailbox: " ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openDB(t)
			for mailbox, tenantID := range tt.mapping {
				require.NoError(t, db.SetMailboxTenant(ctx, mailbox, tenantID))
			}
			for _, in := range tt.integrations {
				_, err := db.AddIntegration(ctx, in)
				require.NoError(t, err)
			}

			got, err := NewResolver(db, nil).Resolve(ctx, tt.mailbox, "trace-1")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, eris.Is(err, ErrUnresolved))
				n, cerr := db.CountAuditEvents(ctx, auditKind)
				require.NoError(t, cerr)
				assert.Equal(t, 1, n)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
