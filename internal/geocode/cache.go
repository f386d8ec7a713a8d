package geocode

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"loadhunt/internal"
	"loadhunt/internal/metrics"
	"loadhunt/internal/tasks"
	"loadhunt/internal/util"
)

type Store interface {
	GetGeocode(ctx context.Context, key string) (*internal.GeocodeEntry, error)
	UpsertGeocode(ctx context.Context, e internal.GeocodeEntry) error
	IncrementGeocodeHit(ctx context.Context, key string) error
}

// Submitter takes hit-count updates without blocking; a full queue drops
// the update.
type Submitter interface {
	TrySubmit(task tasks.Task) error
}

// Cache fronts the provider with the geocode_cache table. Only provider
// successes are stored; every other outcome is reported as a miss.
type Cache struct {
	store    Store
	provider Provider
	limiter  Limiter
	queue    Submitter
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewCache(store Store, provider Provider, limiter Limiter, queue Submitter, m *metrics.Metrics, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:    store,
		provider: provider,
		limiter:  limiter,
		queue:    queue,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Lookup resolves "city, state" to coordinates. caller keys the rate limiter
// (a mailbox or a job name).
func (c *Cache) Lookup(ctx context.Context, caller, city, state string) (internal.Coordinates, bool) {
	key := util.NormalizeLocationKey(city, state)
	if key == "" || strings.TrimSpace(city) == "" {
		return internal.Coordinates{}, false
	}
	place, ok := c.resolve(ctx, caller, key, key, KindPlace)
	if !ok {
		return internal.Coordinates{}, false
	}
	return place.Coordinates, true
}

// LookupPostal resolves a postal code and returns the city and state the
// provider placed it in, so callers can backfill a postal-only stop.
func (c *Cache) LookupPostal(ctx context.Context, caller, postal string) (Place, bool) {
	postal = strings.ToUpper(util.CollapseSpaces(postal))
	if postal == "" {
		return Place{}, false
	}
	place, ok := c.resolve(ctx, caller, "POSTAL "+postal, postal, KindPostal)
	if !ok {
		return Place{}, false
	}
	if place.PostalCode == "" {
		place.PostalCode = postal
	}
	return place, true
}

func (c *Cache) resolve(ctx context.Context, caller, key, query string, kind QueryKind) (Place, bool) {
	log := c.logger.With(zap.String("geocode_key", key), zap.String("caller", caller))

	entry, err := c.store.GetGeocode(ctx, key)
	if err != nil {
		log.Warn("geocode cache read failed", zap.String("reason", "cache_read"), zap.Error(err))
		c.count("error")
		return Place{}, false
	}
	if entry != nil {
		c.count("hit")
		c.bumpHit(key)
		return Place{
			Coordinates: internal.Coordinates{Latitude: entry.Latitude, Longitude: entry.Longitude},
			City:        entry.City,
			State:       entry.State,
		}, true
	}

	if err := c.limiter.Allow(caller); err != nil {
		result := "limited"
		if eris.Is(err, ErrBudgetExhausted) {
			result = "budget"
		}
		log.Info("geocode skipped", zap.String("reason", result))
		c.count(result)
		return Place{}, false
	}

	place, err := c.provider.Forward(ctx, query, kind)
	if err != nil {
		log.Warn("geocode provider failed", zap.String("reason", "provider_error"), zap.Error(err))
		c.count("error")
		return Place{}, false
	}
	if place == nil {
		log.Info("geocode no result", zap.String("reason", "no_result"))
		c.count("miss")
		return Place{}, false
	}

	c.count("miss")
	err = c.store.UpsertGeocode(ctx, internal.GeocodeEntry{
		Key:          key,
		Latitude:     place.Coordinates.Latitude,
		Longitude:    place.Coordinates.Longitude,
		City:         place.City,
		State:        place.State,
		CreatedMonth: c.now().UTC().Format("2006-01"),
	})
	if err != nil {
		log.Warn("geocode cache write failed", zap.String("reason", "cache_write"), zap.Error(err))
	}
	return *place, true
}

func (c *Cache) bumpHit(key string) {
	if c.queue == nil {
		return
	}
	task := tasks.Task{
		Name: "geocode_hit",
		Run: func(ctx context.Context) error {
			return c.store.IncrementGeocodeHit(ctx, key)
		},
	}
	if err := c.queue.TrySubmit(task); err != nil {
		c.logger.Debug("hit count not queued", zap.String("geocode_key", key), zap.Error(err))
	}
}

func (c *Cache) count(result string) {
	if c.metrics != nil {
		c.metrics.Geocode.WithLabelValues(result).Inc()
	}
}
