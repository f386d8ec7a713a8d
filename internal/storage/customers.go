package storage

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"loadhunt/internal"
	"loadhunt/internal/util"
)

// customerNameKey compares names case-insensitively with whitespace
// collapsed. Punctuation and non-Latin letters stay significant.
func customerNameKey(name string) string {
	return strings.ToLower(util.CollapseSpaces(name))
}

// UpsertCustomer creates the broker as a customer of the tenant. An existing
// customer with the same name, ignoring case, is left untouched.
func (d *DB) UpsertCustomer(ctx context.Context, c internal.Customer) (bool, error) {
	key := customerNameKey(c.Name)
	if key == "" {
		return false, eris.New("storage: customer name is empty")
	}
	status := c.Status
	if status == "" {
		status = "active"
	}
	res, err := d.conn.ExecContext(ctx, `
INSERT INTO customers (tenantId, name, nameKey, contactName, email, phone, mcNumber, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(tenantId, nameKey) DO NOTHING
`, c.TenantID, c.Name, key, c.ContactName, c.Email, c.Phone, c.MCNumber, status)
	if err != nil {
		return false, eris.Wrap(err, "storage: upsert customer")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "storage: upsert customer rows")
	}
	return affected > 0, nil
}

func (d *DB) ListCustomers(ctx context.Context, tenantID string) ([]internal.Customer, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, tenantId, name, contactName, email, phone, mcNumber, status
FROM customers WHERE tenantId = ? ORDER BY id
`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list customers")
	}
	defer rows.Close()

	var out []internal.Customer
	for rows.Next() {
		var c internal.Customer
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.ContactName, &c.Email, &c.Phone, &c.MCNumber, &c.Status); err != nil {
			return nil, eris.Wrap(err, "storage: scan customer")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "storage: iterate customers")
}
