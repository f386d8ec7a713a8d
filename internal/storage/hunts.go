package storage

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"loadhunt/internal"
)

func (d *DB) EnabledHunts(ctx context.Context, tenantID string) ([]internal.HuntPlan, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, tenantId, enabled, vehicleId, centerLat, centerLng, pickupRadiusMiles,
       vehicleSizesJson, maxPayload, floorShipmentId
FROM hunt_plans
WHERE enabled = 1 AND tenantId = ?
ORDER BY id
`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list hunts")
	}
	defer rows.Close()

	var out []internal.HuntPlan
	for rows.Next() {
		var (
			h       internal.HuntPlan
			enabled int
			sizes   string
		)
		if err := rows.Scan(&h.ID, &h.TenantID, &enabled, &h.VehicleID, &h.Center.Latitude, &h.Center.Longitude,
			&h.PickupRadiusMiles, &sizes, &h.MaxPayload, &h.FloorShipmentID); err != nil {
			return nil, eris.Wrap(err, "storage: scan hunt")
		}
		h.Enabled = enabled == 1
		_ = json.Unmarshal([]byte(sizes), &h.VehicleSizes)
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "storage: iterate hunts")
}

func (d *DB) InsertHuntPlan(ctx context.Context, h internal.HuntPlan) (int64, error) {
	sizes := h.VehicleSizes
	if sizes == nil {
		sizes = []string{}
	}
	sizesJSON, err := json.Marshal(sizes)
	if err != nil {
		return 0, eris.Wrap(err, "storage: encode vehicle sizes")
	}

	res, err := d.conn.ExecContext(ctx, `
INSERT INTO hunt_plans (tenantId, enabled, vehicleId, centerLat, centerLng, pickupRadiusMiles,
                        vehicleSizesJson, maxPayload, floorShipmentId)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, h.TenantID, boolInt(h.Enabled), h.VehicleID, h.Center.Latitude, h.Center.Longitude, h.PickupRadiusMiles,
		string(sizesJSON), h.MaxPayload, h.FloorShipmentID)
	if err != nil {
		return 0, eris.Wrap(err, "storage: insert hunt plan")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "storage: insert hunt plan id")
}
