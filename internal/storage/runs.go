package storage

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"loadhunt/internal"
)

func (d *DB) InsertRun(ctx context.Context, r internal.IngestionRun) error {
	var tenantID, reason *string
	if r.TenantID != "" {
		tenantID = &r.TenantID
	}
	if r.AbortReason != "" {
		reason = &r.AbortReason
	}
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO ingestion_runs (traceId, mailbox, tenantId, fetched, ingested, duplicates, failed,
                            abortReason, startedAt, finishedAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, r.TraceID, r.Mailbox, tenantID, r.Fetched, r.Ingested, r.Duplicates, r.Failed,
		reason, formatTime(r.StartedAt), formatTime(r.FinishedAt))
	return eris.Wrap(err, "storage: insert run")
}

func (d *DB) LastRun(ctx context.Context, mailbox string) (*internal.IngestionRun, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT traceId, mailbox, COALESCE(tenantId, ''), fetched, ingested, duplicates, failed,
       COALESCE(abortReason, ''), startedAt, finishedAt
FROM ingestion_runs WHERE mailbox = ? ORDER BY id DESC LIMIT 1
`, mailbox)
	if err != nil {
		return nil, eris.Wrap(err, "storage: last run")
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, eris.Wrap(rows.Err(), "storage: last run")
	}
	var (
		r                 internal.IngestionRun
		started, finished sql.NullString
	)
	if err := rows.Scan(&r.TraceID, &r.Mailbox, &r.TenantID, &r.Fetched, &r.Ingested, &r.Duplicates,
		&r.Failed, &r.AbortReason, &started, &finished); err != nil {
		return nil, eris.Wrap(err, "storage: scan run")
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return &r, nil
}
