package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "storage: create data dir")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "storage: open sqlite")
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS shipments (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tenantId TEXT NOT NULL,
  messageId TEXT NOT NULL UNIQUE,
  threadId TEXT,
  dialect TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'new',
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  vehicleType TEXT,
  originCity TEXT,
  originState TEXT,
  originPostal TEXT,
  destinationCity TEXT,
  destinationState TEXT,
  destinationPostal TEXT,
  stopsJson TEXT NOT NULL DEFAULT '[]',
  hasMultipleStops INTEGER NOT NULL DEFAULT 0,
  loadedMiles REAL,
  weight REAL,
  pieces INTEGER,
  dimLength REAL,
  dimWidth REAL,
  dimHeight REAL,
  postedRate REAL,
  brokerCompany TEXT,
  brokerName TEXT,
  brokerEmail TEXT,
  brokerPhone TEXT,
  brokerFax TEXT,
  brokerMc TEXT,
  notes TEXT,
  expiresAt TEXT,
  pickupLat REAL,
  pickupLng REAL,
  deliveryLat REAL,
  deliveryLng REAL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_shipments_tenant ON shipments(tenantId);
CREATE TRIGGER IF NOT EXISTS trg_shipments_tenant_immutable
BEFORE UPDATE OF tenantId ON shipments
WHEN OLD.tenantId IS NOT NEW.tenantId
BEGIN
  SELECT RAISE(ABORT, 'shipments.tenantId is immutable');
END;

CREATE TABLE IF NOT EXISTS geocode_cache (
  key TEXT PRIMARY KEY,
  latitude REAL NOT NULL,
  longitude REAL NOT NULL,
  city TEXT,
  state TEXT,
  hitCount INTEGER NOT NULL DEFAULT 0,
  createdMonth TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS mailbox_tenants (
  mailbox TEXT PRIMARY KEY,
  tenantId TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS integrations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tenantId TEXT NOT NULL,
  provider TEXT NOT NULL,
  enabled INTEGER NOT NULL DEFAULT 1,
  settingsJson TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS audit_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  kind TEXT NOT NULL,
  subject TEXT NOT NULL,
  reason TEXT NOT NULL,
  traceId TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS parser_hints (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tenantId TEXT,
  dialect TEXT NOT NULL,
  fieldName TEXT NOT NULL,
  pattern TEXT NOT NULL,
  prefix TEXT NOT NULL DEFAULT '',
  suffix TEXT NOT NULL DEFAULT '',
  active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS hunt_plans (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tenantId TEXT NOT NULL,
  enabled INTEGER NOT NULL DEFAULT 1,
  vehicleId TEXT NOT NULL,
  centerLat REAL NOT NULL,
  centerLng REAL NOT NULL,
  pickupRadiusMiles REAL NOT NULL,
  vehicleSizesJson TEXT NOT NULL DEFAULT '[]',
  maxPayload REAL,
  floorShipmentId INTEGER
);
CREATE INDEX IF NOT EXISTS idx_hunt_plans_tenant ON hunt_plans(tenantId, enabled);

CREATE TABLE IF NOT EXISTS load_hunt_matches (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  shipmentId INTEGER NOT NULL,
  huntPlanId INTEGER NOT NULL,
  distanceMiles INTEGER NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  status TEXT NOT NULL DEFAULT 'pending',
  matchedAt TEXT NOT NULL,
  UNIQUE(shipmentId, huntPlanId),
  FOREIGN KEY(shipmentId) REFERENCES shipments(id),
  FOREIGN KEY(huntPlanId) REFERENCES hunt_plans(id)
);

CREATE TABLE IF NOT EXISTS customers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tenantId TEXT NOT NULL,
  name TEXT NOT NULL,
  nameKey TEXT NOT NULL,
  contactName TEXT,
  email TEXT,
  phone TEXT,
  mcNumber TEXT,
  status TEXT NOT NULL DEFAULT 'active',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(tenantId, nameKey)
);

CREATE TABLE IF NOT EXISTS ingestion_runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  mailbox TEXT NOT NULL,
  tenantId TEXT,
  fetched INTEGER NOT NULL DEFAULT 0,
  ingested INTEGER NOT NULL DEFAULT 0,
  duplicates INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  abortReason TEXT,
  startedAt TEXT NOT NULL,
  finishedAt TEXT NOT NULL
);
`

	_, err := d.conn.Exec(schema)
	return eris.Wrap(err, "storage: init schema")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseTimePtr(s sql.NullString) *time.Time {
	t := parseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
