package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"

	"loadhunt/internal"
)

func (d *DB) GetGeocode(ctx context.Context, key string) (*internal.GeocodeEntry, error) {
	var e internal.GeocodeEntry
	err := d.conn.QueryRowContext(ctx, `
SELECT key, latitude, longitude, COALESCE(city, ''), COALESCE(state, ''), hitCount, createdMonth
FROM geocode_cache WHERE key = ?`, key).Scan(&e.Key, &e.Latitude, &e.Longitude, &e.City, &e.State, &e.HitCount, &e.CreatedMonth)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "storage: get geocode")
	}
	return &e, nil
}

// UpsertGeocode stores a resolved coordinate. A concurrent writer for the same
// key refreshes the coordinates and leaves hitCount alone.
func (d *DB) UpsertGeocode(ctx context.Context, e internal.GeocodeEntry) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO geocode_cache (key, latitude, longitude, city, state, hitCount, createdMonth)
VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), 0, ?)
ON CONFLICT(key) DO UPDATE SET
  latitude = excluded.latitude,
  longitude = excluded.longitude,
  city = COALESCE(excluded.city, geocode_cache.city),
  state = COALESCE(excluded.state, geocode_cache.state)
`, e.Key, e.Latitude, e.Longitude, e.City, e.State, e.CreatedMonth)
	return eris.Wrap(err, "storage: upsert geocode")
}

func (d *DB) IncrementGeocodeHit(ctx context.Context, key string) error {
	_, err := d.conn.ExecContext(ctx, `UPDATE geocode_cache SET hitCount = hitCount + 1 WHERE key = ?`, key)
	return eris.Wrap(err, "storage: increment geocode hit")
}
