package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"

	"loadhunt/internal"
)

const shipmentColumns = `
  id, tenantId, messageId, threadId, dialect, status, subject, sender, receivedAt,
  vehicleType, originCity, originState, originPostal,
  destinationCity, destinationState, destinationPostal,
  stopsJson, hasMultipleStops, loadedMiles, weight, pieces,
  dimLength, dimWidth, dimHeight, postedRate,
  brokerCompany, brokerName, brokerEmail, brokerPhone, brokerFax, brokerMc,
  notes, expiresAt, pickupLat, pickupLng, deliveryLat, deliveryLng, createdAt`

func (d *DB) ShipmentExists(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := d.conn.QueryRowContext(ctx, `SELECT 1 FROM shipments WHERE messageId = ?`, messageID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "storage: check shipment")
	}
	return true, nil
}

// InsertShipment writes a new record and returns its id. inserted is false
// when a row with the same provider message id already exists.
func (d *DB) InsertShipment(ctx context.Context, s internal.ShipmentRecord) (id int64, inserted bool, err error) {
	stopsJSON, err := json.Marshal(s.Stops)
	if err != nil {
		return 0, false, eris.Wrap(err, "storage: encode stops")
	}
	if s.Stops == nil {
		stopsJSON = []byte("[]")
	}
	status := s.Status
	if status == "" {
		status = internal.StatusNew
	}

	var dimL, dimW, dimH *float64
	if s.Dimensions != nil {
		dimL, dimW, dimH = &s.Dimensions.Length, &s.Dimensions.Width, &s.Dimensions.Height
	}
	var pLat, pLng, dLat, dLng *float64
	if s.Pickup != nil {
		pLat, pLng = &s.Pickup.Latitude, &s.Pickup.Longitude
	}
	if s.Delivery != nil {
		dLat, dLng = &s.Delivery.Latitude, &s.Delivery.Longitude
	}

	res, err := d.conn.ExecContext(ctx, `
INSERT INTO shipments (
  tenantId, messageId, threadId, dialect, status, subject, sender, receivedAt,
  vehicleType, originCity, originState, originPostal,
  destinationCity, destinationState, destinationPostal,
  stopsJson, hasMultipleStops, loadedMiles, weight, pieces,
  dimLength, dimWidth, dimHeight, postedRate,
  brokerCompany, brokerName, brokerEmail, brokerPhone, brokerFax, brokerMc,
  notes, expiresAt, pickupLat, pickupLng, deliveryLat, deliveryLng
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(messageId) DO NOTHING
`,
		s.TenantID, s.MessageID, s.ThreadID, string(s.Dialect), string(status), s.Subject, s.SenderAddress, formatTime(s.ReceivedAt),
		s.VehicleType, s.OriginCity, s.OriginState, s.OriginPostal,
		s.DestinationCity, s.DestinationState, s.DestinationPostal,
		string(stopsJSON), boolInt(s.HasMultipleStops), s.LoadedMiles, s.Weight, s.Pieces,
		dimL, dimW, dimH, s.PostedRate,
		s.BrokerCompany, s.BrokerName, s.BrokerEmail, s.BrokerPhone, s.BrokerFax, s.BrokerMC,
		s.Notes, formatTimePtr(s.ExpiresAt), pLat, pLng, dLat, dLng,
	)
	if err != nil {
		return 0, false, eris.Wrap(err, "storage: insert shipment")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, eris.Wrap(err, "storage: insert shipment rows")
	}
	if affected == 0 {
		return 0, false, nil
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, eris.Wrap(err, "storage: insert shipment id")
	}
	return id, true, nil
}

func (d *DB) GetShipment(ctx context.Context, id int64) (*internal.ShipmentRecord, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = ?`, id)
	s, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "storage: get shipment %d", id)
	}
	return s, nil
}

func (d *DB) GetShipmentByMessageID(ctx context.Context, messageID string) (*internal.ShipmentRecord, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE messageId = ?`, messageID)
	s, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "storage: get shipment by message id")
	}
	return s, nil
}

func (d *DB) CountShipments(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM shipments WHERE tenantId = ? OR ? = ''`, tenantID, tenantID).Scan(&n)
	return n, eris.Wrap(err, "storage: count shipments")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row rowScanner) (*internal.ShipmentRecord, error) {
	var (
		s                              internal.ShipmentRecord
		threadID, subject, sender      sql.NullString
		receivedAt, expiresAt, created sql.NullString
		dialect, status, stopsJSON     string
		multi                          int
		dimL, dimW, dimH               sql.NullFloat64
		pLat, pLng, dLat, dLng         sql.NullFloat64
	)
	err := row.Scan(
		&s.ID, &s.TenantID, &s.MessageID, &threadID, &dialect, &status, &subject, &sender, &receivedAt,
		&s.VehicleType, &s.OriginCity, &s.OriginState, &s.OriginPostal,
		&s.DestinationCity, &s.DestinationState, &s.DestinationPostal,
		&stopsJSON, &multi, &s.LoadedMiles, &s.Weight, &s.Pieces,
		&dimL, &dimW, &dimH, &s.PostedRate,
		&s.BrokerCompany, &s.BrokerName, &s.BrokerEmail, &s.BrokerPhone, &s.BrokerFax, &s.BrokerMC,
		&s.Notes, &expiresAt, &pLat, &pLng, &dLat, &dLng, &created,
	)
	if err != nil {
		return nil, err
	}

	s.ThreadID = threadID.String
	s.Subject = subject.String
	s.SenderAddress = sender.String
	s.Dialect = internal.Dialect(dialect)
	s.Status = internal.ShipmentStatus(status)
	s.ReceivedAt = parseTime(receivedAt)
	s.ExpiresAt = parseTimePtr(expiresAt)
	s.CreatedAt = parseTime(created)
	s.HasMultipleStops = multi == 1
	_ = json.Unmarshal([]byte(stopsJSON), &s.Stops)

	if dimL.Valid && dimW.Valid && dimH.Valid {
		s.Dimensions = &internal.Dimensions{Length: dimL.Float64, Width: dimW.Float64, Height: dimH.Float64}
	}
	if pLat.Valid && pLng.Valid {
		s.Pickup = &internal.Coordinates{Latitude: pLat.Float64, Longitude: pLng.Float64}
	}
	if dLat.Valid && dLng.Valid {
		s.Delivery = &internal.Coordinates{Latitude: dLat.Float64, Longitude: dLng.Float64}
	}
	return &s, nil
}
