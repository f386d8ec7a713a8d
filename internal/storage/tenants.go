package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"

	"loadhunt/internal"
)

// MailboxTenant returns the tenant mapped to a mailbox, or "" when unmapped.
func (d *DB) MailboxTenant(ctx context.Context, mailbox string) (string, error) {
	var tenantID string
	err := d.conn.QueryRowContext(ctx, `SELECT tenantId FROM mailbox_tenants WHERE mailbox = ?`, mailbox).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "storage: get mailbox tenant")
	}
	return tenantID, nil
}

func (d *DB) SetMailboxTenant(ctx context.Context, mailbox, tenantID string) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO mailbox_tenants (mailbox, tenantId) VALUES (?, ?)
ON CONFLICT(mailbox) DO UPDATE SET tenantId = excluded.tenantId
`, mailbox, tenantID)
	return eris.Wrap(err, "storage: set mailbox tenant")
}

// EnabledIntegrations lists enabled integrations with the mailbox their
// settings reference ("" when the settings name none).
func (d *DB) EnabledIntegrations(ctx context.Context) ([]internal.Integration, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, tenantId, provider, COALESCE(json_extract(settingsJson, '$.mailbox'), '')
FROM integrations
WHERE enabled = 1
ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list integrations")
	}
	defer rows.Close()

	var out []internal.Integration
	for rows.Next() {
		var in internal.Integration
		if err := rows.Scan(&in.ID, &in.TenantID, &in.Provider, &in.Mailbox); err != nil {
			return nil, eris.Wrap(err, "storage: scan integration")
		}
		in.Enabled = true
		out = append(out, in)
	}
	return out, eris.Wrap(rows.Err(), "storage: iterate integrations")
}

func (d *DB) AddIntegration(ctx context.Context, in internal.Integration) (int64, error) {
	settings, err := json.Marshal(map[string]string{"mailbox": in.Mailbox})
	if err != nil {
		return 0, eris.Wrap(err, "storage: encode integration settings")
	}
	res, err := d.conn.ExecContext(ctx, `
INSERT INTO integrations (tenantId, provider, enabled, settingsJson) VALUES (?, ?, ?, ?)
`, in.TenantID, in.Provider, boolInt(in.Enabled), string(settings))
	if err != nil {
		return 0, eris.Wrap(err, "storage: add integration")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "storage: add integration id")
}

func (d *DB) InsertAuditEvent(ctx context.Context, kind, subject, reason, traceID string) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO audit_events (kind, subject, reason, traceId) VALUES (?, ?, ?, ?)
`, kind, subject, reason, traceID)
	return eris.Wrap(err, "storage: insert audit event")
}

func (d *DB) CountAuditEvents(ctx context.Context, kind string) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events WHERE kind = ?`, kind).Scan(&n)
	return n, eris.Wrap(err, "storage: count audit events")
}
