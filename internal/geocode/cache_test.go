package geocode

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadhunt/internal"
	"loadhunt/internal/metrics"
	"loadhunt/internal/storage"
	"loadhunt/internal/tasks"
)

type fakeProvider struct {
	calls []string
	place *Place
	err   error
}

func (f *fakeProvider) Forward(_ context.Context, query string, _ QueryKind) (*Place, error) {
	f.calls = append(f.calls, query)
	return f.place, f.err
}

// inlineQueue runs tasks synchronously so tests can assert on their effects.
type inlineQueue struct{}

func (inlineQueue) TrySubmit(task tasks.Task) error {
	return task.Run(context.Background())
}

type allowAll struct{}

func (allowAll) Allow(string) error { return nil }

func newTestCache(t *testing.T, provider Provider, limiter Limiter) (*Cache, *storage.DB, *metrics.Metrics) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	m := metrics.New()
	return NewCache(db, provider, limiter, inlineQueue{}, m, nil), db, m
}

func TestLookupCachesAndCountsHits(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{place: &Place{Coordinates: internal.Coordinates{Latitude: 32.7767, Longitude: -96.797}, City: "Dallas", State: "TX"}}
	cache, db, m := newTestCache(t, provider, allowAll{})

	coords, ok := cache.Lookup(ctx, "loads@example.com", "Dallas", "TX")
	require.True(t, ok)
	assert.InDelta(t, 32.7767, coords.Latitude, 1e-9)
	require.Len(t, provider.calls, 1)

	entry, err := db.GetGeocode(ctx, "DALLAS, TX")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 0, entry.HitCount)
	assert.Regexp(t, `^\d{4}-\d{2}$`, entry.CreatedMonth)

	coords, ok = cache.Lookup(ctx, "loads@example.com", "  dallas ", "tx, USA")
	require.True(t, ok)
	assert.InDelta(t, -96.797, coords.Longitude, 1e-9)
	assert.Len(t, provider.calls, 1)

	entry, err = db.GetGeocode(ctx, "DALLAS, TX")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.HitCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Geocode.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Geocode.WithLabelValues("miss")))
}

func TestLookupDoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{err: errors.New("upstream down")}
	cache, db, _ := newTestCache(t, provider, allowAll{})

	_, ok := cache.Lookup(ctx, "pipeline", "Austin", "TX")
	assert.False(t, ok)

	provider.err = nil
	_, ok = cache.Lookup(ctx, "pipeline", "Austin", "TX")
	assert.False(t, ok)

	entry, err := db.GetGeocode(ctx, "AUSTIN, TX")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Len(t, provider.calls, 2)
}

func TestLookupRespectsLimiter(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{place: &Place{Coordinates: internal.Coordinates{Latitude: 1, Longitude: 2}}}
	cache, _, m := newTestCache(t, provider, NewKeyedLimiter(1, 0))

	_, ok := cache.Lookup(ctx, "a", "Waco", "TX")
	assert.True(t, ok)
	_, ok = cache.Lookup(ctx, "a", "Tyler", "TX")
	assert.False(t, ok)
	assert.Len(t, provider.calls, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Geocode.WithLabelValues("limited")))
}

func TestLookupPostalBackfillsCityState(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{place: &Place{Coordinates: internal.Coordinates{Latitude: 32.78, Longitude: -96.80}, City: "Dallas", State: "TX"}}
	cache, _, _ := newTestCache(t, provider, allowAll{})

	place, ok := cache.LookupPostal(ctx, "pipeline", "75201")
	require.True(t, ok)
	assert.Equal(t, "Dallas", place.City)
	assert.Equal(t, "TX", place.State)
	assert.Equal(t, "75201", place.PostalCode)

	place, ok = cache.LookupPostal(ctx, "pipeline", " 75201 ")
	require.True(t, ok)
	assert.Equal(t, "Dallas", place.City)
	assert.Len(t, provider.calls, 1)
}

func TestLookupEmptyCity(t *testing.T) {
	provider := &fakeProvider{}
	cache, _, _ := newTestCache(t, provider, allowAll{})

	_, ok := cache.Lookup(context.Background(), "pipeline", "", "TX")
	assert.False(t, ok)
	assert.Empty(t, provider.calls)
}

func TestCachedLookupDoesNotWaitOnFullQueue(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.UpsertGeocode(ctx, internal.GeocodeEntry{Key: "DALLAS, TX", Latitude: 32.7767, Longitude: -96.797, CreatedMonth: "2026-03"}))

	block := make(chan struct{})
	q := tasks.New(tasks.Options{Workers: 1, QueueSize: 1}, nil)
	t.Cleanup(func() {
		close(block)
		q.Close()
	})
	wait := tasks.Task{Name: "wait", Run: func(context.Context) error {
		<-block
		return nil
	}}
	require.NoError(t, q.Submit(ctx, wait))
	require.Eventually(t, func() bool { return q.TrySubmit(wait) == nil }, time.Second, time.Millisecond)

	cache := NewCache(db, &fakeProvider{}, allowAll{}, q, metrics.New(), nil)
	done := make(chan bool, 1)
	go func() {
		_, ok := cache.Lookup(ctx, "loads@example.com", "Dallas", "TX")
		done <- ok
	}()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("cached lookup blocked on a full queue")
	}
}
