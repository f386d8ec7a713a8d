package pipeline

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"loadhunt/internal"
	"loadhunt/internal/geocode"
	"loadhunt/internal/metrics"
	"loadhunt/internal/util"
)

const DefaultRegionalRadiusMiles = 500.0

type MatchStore interface {
	EnabledHunts(ctx context.Context, tenantID string) ([]internal.HuntPlan, error)
	InsertMatch(ctx context.Context, m internal.LoadHuntMatch) (bool, error)
}

// MatchReport says how far a shipment got through matching.
type MatchReport struct {
	PrefilterPassed bool
	Evaluated       int
	Created         int
}

// Matcher pairs shipments with the tenant's enabled hunt plans.
type Matcher struct {
	store          MatchStore
	regionalRadius float64
	metrics        *metrics.Metrics
	logger         *zap.Logger
	now            func() time.Time
}

func NewMatcher(store MatchStore, regionalRadius float64, m *metrics.Metrics, logger *zap.Logger) *Matcher {
	if regionalRadius <= 0 {
		regionalRadius = DefaultRegionalRadiusMiles
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{store: store, regionalRadius: regionalRadius, metrics: m, logger: logger, now: time.Now}
}

// Match runs the regional pre-filter and then evaluates each hunt. It is
// safe to run again for the same shipment: existing pairs are left alone.
func (m *Matcher) Match(ctx context.Context, s internal.ShipmentRecord) (MatchReport, error) {
	var report MatchReport
	log := m.logger.With(zap.Int64("shipment_id", s.ID), zap.String("tenant_id", s.TenantID))

	if s.Pickup == nil {
		log.Debug("match: skipped", zap.String("reason", "no_pickup_coordinates"))
		return report, nil
	}

	hunts, err := m.store.EnabledHunts(ctx, s.TenantID)
	if err != nil {
		return report, eris.Wrap(err, "match: load hunts")
	}

	distances := make([]float64, len(hunts))
	for i, h := range hunts {
		distances[i] = geocode.Haversine(*s.Pickup, h.Center)
		if distances[i] <= m.regionalRadius {
			report.PrefilterPassed = true
		}
	}
	if !report.PrefilterPassed {
		log.Debug("match: skipped", zap.String("reason", "outside_region"), zap.Int("hunts", len(hunts)))
		return report, nil
	}

	for i, h := range hunts {
		report.Evaluated++
		if reason := rejectHunt(s, h, distances[i]); reason != "" {
			log.Debug("match: hunt rejected", zap.Int64("hunt_id", h.ID), zap.String("reason", reason))
			continue
		}

		created, err := m.store.InsertMatch(ctx, internal.LoadHuntMatch{
			ShipmentID:    s.ID,
			HuntPlanID:    h.ID,
			DistanceMiles: int(math.Round(distances[i])),
			Active:        true,
			Status:        "pending",
			MatchedAt:     m.now().UTC(),
		})
		if err != nil {
			return report, eris.Wrapf(err, "match: insert hunt %d", h.ID)
		}
		if created {
			report.Created++
			if m.metrics != nil {
				m.metrics.MatchesCreated.Inc()
			}
		}
	}

	log.Info("match: done",
		zap.Int("evaluated", report.Evaluated),
		zap.Int("created", report.Created))
	return report, nil
}

func rejectHunt(s internal.ShipmentRecord, h internal.HuntPlan, distance float64) string {
	if h.FloorShipmentID != nil && s.ID <= *h.FloorShipmentID {
		return "below_floor"
	}
	if distance > h.PickupRadiusMiles {
		return "outside_radius"
	}
	if len(h.VehicleSizes) > 0 && !VehicleMatches(util.Deref(s.VehicleType), h.VehicleSizes) {
		return "vehicle_mismatch"
	}
	if h.MaxPayload != nil && s.Weight != nil && *s.Weight > *h.MaxPayload {
		return "over_payload"
	}
	return ""
}

// vehicleSynonyms groups tokens that name the same equipment.
var vehicleSynonyms = [][]string{
	{"cargo", "cargovan"},
	{"sprinter", "sprintervan"},
	{"straight", "straighttruck", "boxtruck"},
	{"tractor", "semi", "tractortrailer"},
}

// VehicleMatches reports whether vehicleType fits any accepted tag. It is
// permissive on purpose: containment either way or a shared synonym group.
func VehicleMatches(vehicleType string, accepted []string) bool {
	v := util.NormalizeToken(vehicleType)
	if v == "" {
		return false
	}
	for _, tag := range accepted {
		t := util.NormalizeToken(tag)
		if t == "" {
			continue
		}
		if strings.Contains(v, t) || strings.Contains(t, v) {
			return true
		}
		for _, group := range vehicleSynonyms {
			if mentions(v, group) && mentions(t, group) {
				return true
			}
		}
	}
	return false
}

func mentions(token string, group []string) bool {
	for _, word := range group {
		if strings.Contains(token, word) {
			return true
		}
	}
	return false
}
