package storage

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"loadhunt/internal"
)

// InsertMatch records a shipment/hunt pairing. inserted is false when the
// pair already exists.
func (d *DB) InsertMatch(ctx context.Context, m internal.LoadHuntMatch) (bool, error) {
	status := m.Status
	if status == "" {
		status = "pending"
	}
	res, err := d.conn.ExecContext(ctx, `
INSERT INTO load_hunt_matches (shipmentId, huntPlanId, distanceMiles, active, status, matchedAt)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(shipmentId, huntPlanId) DO NOTHING
`, m.ShipmentID, m.HuntPlanID, m.DistanceMiles, boolInt(m.Active), status, formatTime(m.MatchedAt))
	if err != nil {
		return false, eris.Wrap(err, "storage: insert match")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "storage: insert match rows")
	}
	return affected > 0, nil
}

func (d *DB) MatchesForShipment(ctx context.Context, shipmentID int64) ([]internal.LoadHuntMatch, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, shipmentId, huntPlanId, distanceMiles, active, status, matchedAt
FROM load_hunt_matches WHERE shipmentId = ? ORDER BY huntPlanId
`, shipmentID)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list matches")
	}
	defer rows.Close()

	var out []internal.LoadHuntMatch
	for rows.Next() {
		var (
			m         internal.LoadHuntMatch
			active    int
			matchedAt sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ShipmentID, &m.HuntPlanID, &m.DistanceMiles, &active, &m.Status, &matchedAt); err != nil {
			return nil, eris.Wrap(err, "storage: scan match")
		}
		m.Active = active == 1
		m.MatchedAt = parseTime(matchedAt)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "storage: iterate matches")
}

// ExportRows joins shipments to their matches for one tenant. Shipments
// without a match produce a single row with empty hunt columns.
func (d *DB) ExportRows(ctx context.Context, tenantID string) ([]internal.ExportRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT s.id, s.messageId, s.dialect, s.vehicleType,
       COALESCE(s.originCity, '') || CASE WHEN s.originState IS NULL THEN '' ELSE ', ' || s.originState END,
       COALESCE(s.destinationCity, '') || CASE WHEN s.destinationState IS NULL THEN '' ELSE ', ' || s.destinationState END,
       s.loadedMiles, s.weight, s.postedRate, s.brokerCompany, s.brokerMc, s.expiresAt,
       h.id, h.vehicleId, m.distanceMiles, m.status, s.receivedAt
FROM shipments s
LEFT JOIN load_hunt_matches m ON m.shipmentId = s.id
LEFT JOIN hunt_plans h ON h.id = m.huntPlanId
WHERE s.tenantId = ?
ORDER BY s.id, h.id
`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "storage: export rows")
	}
	defer rows.Close()

	var out []internal.ExportRow
	for rows.Next() {
		var (
			r                   internal.ExportRow
			expiresAt, received sql.NullString
		)
		if err := rows.Scan(&r.ShipmentID, &r.MessageID, &r.Dialect, &r.VehicleType, &r.Origin, &r.Destination,
			&r.LoadedMiles, &r.Weight, &r.PostedRate, &r.BrokerCompany, &r.BrokerMC, &expiresAt,
			&r.HuntPlanID, &r.HuntVehicleID, &r.MatchDistance, &r.MatchStatus, &received); err != nil {
			return nil, eris.Wrap(err, "storage: scan export row")
		}
		r.ExpiresAt = parseTimePtr(expiresAt)
		r.ShipmentReceived = parseTime(received)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "storage: iterate export rows")
}
