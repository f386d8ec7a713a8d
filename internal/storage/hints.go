package storage

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"loadhunt/internal"
)

// ActiveHints returns the active hints for a dialect that apply to the tenant:
// its own rows plus global ones (tenantId NULL). Tenant rows come first.
func (d *DB) ActiveHints(ctx context.Context, dialect internal.Dialect, tenantID string) ([]internal.ParserHint, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, tenantId, dialect, fieldName, pattern, prefix, suffix, active
FROM parser_hints
WHERE active = 1 AND dialect = ? AND (tenantId IS NULL OR tenantId = ?)
ORDER BY tenantId IS NULL, id
`, string(dialect), tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list hints")
	}
	defer rows.Close()

	var out []internal.ParserHint
	for rows.Next() {
		var (
			h       internal.ParserHint
			tenant  sql.NullString
			dia     string
			enabled int
		)
		if err := rows.Scan(&h.ID, &tenant, &dia, &h.FieldName, &h.Pattern, &h.Prefix, &h.Suffix, &enabled); err != nil {
			return nil, eris.Wrap(err, "storage: scan hint")
		}
		if tenant.Valid {
			t := tenant.String
			h.TenantID = &t
		}
		h.Dialect = internal.Dialect(dia)
		h.Active = enabled == 1
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "storage: iterate hints")
}

func (d *DB) InsertHint(ctx context.Context, h internal.ParserHint) (int64, error) {
	res, err := d.conn.ExecContext(ctx, `
INSERT INTO parser_hints (tenantId, dialect, fieldName, pattern, prefix, suffix, active)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, h.TenantID, string(h.Dialect), h.FieldName, h.Pattern, h.Prefix, h.Suffix, boolInt(h.Active))
	if err != nil {
		return 0, eris.Wrap(err, "storage: insert hint")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "storage: insert hint id")
}
