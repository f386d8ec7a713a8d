package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadhunt/internal"
	"loadhunt/internal/geocode"
	"loadhunt/internal/metrics"
	"loadhunt/internal/storage"
	"loadhunt/internal/tasks"
	"loadhunt/internal/tenant"
)

const testMailbox = "loads@carrier.com"

type fakeMail struct {
	identity string
	msgs     []internal.InboundMessage
	listed   int
}

func (f *fakeMail) Identity(context.Context) (string, error) { return f.identity, nil }

func (f *fakeMail) ListUnread(context.Context, int) ([]internal.InboundMessage, error) {
	f.listed++
	return f.msgs, nil
}

type fakeGeocoder struct {
	places  map[string]internal.Coordinates
	panicOn string
}

func (f fakeGeocoder) Lookup(_ context.Context, _, city, _ string) (internal.Coordinates, bool) {
	if city == f.panicOn {
		panic("geocoder exploded")
	}
	c, ok := f.places[city]
	return c, ok
}

func (f fakeGeocoder) LookupPostal(context.Context, string, string) (geocode.Place, bool) {
	return geocode.Place{}, false
}

type inlineQueue struct{}

func (inlineQueue) Submit(ctx context.Context, task tasks.Task) error { return task.Run(ctx) }

func newTestService(t *testing.T, geo Geocoder) (*IngestService, *storage.DB, *metrics.Metrics) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	met := metrics.New()
	svc := NewIngestService(testConfig(), db, tenant.NewResolver(db, nil), geo, inlineQueue{}, met, nil)
	return svc, db, met
}

func loadMessage(id, subject, text string) internal.InboundMessage {
	return internal.InboundMessage{
		Provider:    "gmail",
		MessageID:   id,
		FromAddress: "dispatch@broker.example",
		Subject:     subject,
		TextBody:    text,
		ReceivedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRunBatchIngestsOnceAndMatches(t *testing.T) {
	geo := fakeGeocoder{places: map[string]internal.Coordinates{"Chicago": chicagoLoc}}
	svc, db, _ := newTestService(t, geo)
	ctx := context.Background()

	require.NoError(t, db.SetMailboxTenant(ctx, testMailbox, "t1"))
	_, err := db.InsertHuntPlan(ctx, internal.HuntPlan{
		TenantID: "t1", Enabled: true, VehicleID: "truck-7",
		Center: chicagoLoc, PickupRadiusMiles: 150, VehicleSizes: []string{"van"},
	})
	require.NoError(t, err)

	mail := &fakeMail{identity: "Loads@Carrier.com", msgs: []internal.InboundMessage{
		loadMessage("m1", "VAN from Chicago, IL to Dallas, TX : 900 miles, 1000 lbs.",
			"Please contact Acme Logistics MC# 123456\nPhone: 555-123-4567"),
		loadMessage("m2", "SPRINTER from Boise, ID to Reno, NV", ""),
		loadMessage("", "VAN from Chicago, IL to Tulsa, OK", ""),
	}}

	run, err := svc.RunBatch(ctx, mail)
	require.NoError(t, err)
	assert.Equal(t, "t1", run.TenantID)
	assert.Equal(t, testMailbox, run.Mailbox)
	assert.Equal(t, 3, run.Fetched)
	assert.Equal(t, 2, run.Ingested)
	assert.Equal(t, 1, run.Failed)

	rec, err := db.GetShipmentByMessageID(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "t1", rec.TenantID)
	assert.Equal(t, internal.StatusNew, rec.Status)
	assert.Equal(t, internal.DialectHotLoad, rec.Dialect)
	require.NotNil(t, rec.Pickup)
	assert.Equal(t, 900.0, *rec.LoadedMiles)
	assert.Equal(t, "123456", *rec.BrokerMC)

	matches, err := db.MatchesForShipment(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	customers, err := db.ListCustomers(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "Acme Logistics", customers[0].Name)

	other, err := db.GetShipmentByMessageID(ctx, "m2")
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Nil(t, other.Pickup)

	run, err = svc.RunBatch(ctx, mail)
	require.NoError(t, err)
	assert.Zero(t, run.Ingested)
	assert.Equal(t, 2, run.Duplicates)
	assert.Equal(t, 1, run.Failed)

	count, err := db.CountShipments(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	matches, err = db.MatchesForShipment(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	last, err := db.LastRun(ctx, testMailbox)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 2, last.Duplicates)
}

func TestRunBatchFailsClosedWithoutTenant(t *testing.T) {
	svc, db, met := newTestService(t, fakeGeocoder{})
	ctx := context.Background()
	mail := &fakeMail{identity: testMailbox, msgs: []internal.InboundMessage{
		loadMessage("m1", "VAN from Chicago, IL to Dallas, TX", ""),
	}}

	run, err := svc.RunBatch(ctx, mail)
	require.Error(t, err)
	assert.True(t, eris.Is(err, tenant.ErrUnresolved))
	assert.Equal(t, "tenant_unresolved", run.AbortReason)
	assert.Zero(t, mail.listed)

	rec, err := db.GetShipmentByMessageID(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	audits, err := db.CountAuditEvents(ctx, "tenant_unresolved")
	require.NoError(t, err)
	assert.Equal(t, 1, audits)

	last, err := db.LastRun(ctx, testMailbox)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "tenant_unresolved", last.AbortReason)
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Runs.WithLabelValues("aborted")))
}

func TestRunBatchIsolatesMessageFailures(t *testing.T) {
	geo := fakeGeocoder{places: map[string]internal.Coordinates{"Chicago": chicagoLoc}, panicOn: "Boomtown"}
	svc, db, met := newTestService(t, geo)
	ctx := context.Background()
	require.NoError(t, db.SetMailboxTenant(ctx, testMailbox, "t1"))

	mail := &fakeMail{identity: testMailbox, msgs: []internal.InboundMessage{
		loadMessage("m1", "VAN from Boomtown, TX to Dallas, TX", ""),
		loadMessage("m2", "VAN from Chicago, IL to Dallas, TX", ""),
	}}

	run, err := svc.RunBatch(ctx, mail)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Ingested)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Messages.WithLabelValues("failed", "hot_load")))

	rec, err := db.GetShipmentByMessageID(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRunBatchStoresInReceiptOrder(t *testing.T) {
	svc, db, _ := newTestService(t, fakeGeocoder{})
	svc.cfg.BatchWorkers = 1
	ctx := context.Background()
	require.NoError(t, db.SetMailboxTenant(ctx, testMailbox, "t1"))

	newer := loadMessage("new", "VAN from Chicago, IL to Dallas, TX", "")
	newer.ReceivedAt = time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	older := loadMessage("old", "VAN from Gary, IN to Waco, TX", "")
	older.ReceivedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mail := &fakeMail{identity: testMailbox, msgs: []internal.InboundMessage{newer, older}}

	run, err := svc.RunBatch(ctx, mail)
	require.NoError(t, err)
	require.Equal(t, 2, run.Ingested)

	oldRec, err := db.GetShipmentByMessageID(ctx, "old")
	require.NoError(t, err)
	newRec, err := db.GetShipmentByMessageID(ctx, "new")
	require.NoError(t, err)
	require.NotNil(t, oldRec)
	require.NotNil(t, newRec)
	assert.Less(t, oldRec.ID, newRec.ID)
}
