package pipeline

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadhunt/internal"
	"loadhunt/internal/metrics"
	"loadhunt/internal/util"
)

var (
	dallas     = internal.Coordinates{Latitude: 32.7767, Longitude: -96.7970}
	fortWorth  = internal.Coordinates{Latitude: 32.7555, Longitude: -97.3308}
	houston    = internal.Coordinates{Latitude: 29.7604, Longitude: -95.3698}
	seattle    = internal.Coordinates{Latitude: 47.6062, Longitude: -122.3321}
	atlanta    = internal.Coordinates{Latitude: 33.7490, Longitude: -84.3880}
	chicagoLoc = internal.Coordinates{Latitude: 41.8781, Longitude: -87.6298}
)

type fakeMatchStore struct {
	hunts   []internal.HuntPlan
	matches map[[2]int64]internal.LoadHuntMatch
}

func newFakeMatchStore(hunts ...internal.HuntPlan) *fakeMatchStore {
	return &fakeMatchStore{hunts: hunts, matches: map[[2]int64]internal.LoadHuntMatch{}}
}

func (f *fakeMatchStore) EnabledHunts(context.Context, string) ([]internal.HuntPlan, error) {
	return f.hunts, nil
}

func (f *fakeMatchStore) InsertMatch(_ context.Context, m internal.LoadHuntMatch) (bool, error) {
	key := [2]int64{m.ShipmentID, m.HuntPlanID}
	if _, ok := f.matches[key]; ok {
		return false, nil
	}
	f.matches[key] = m
	return true, nil
}

func TestVehicleMatches(t *testing.T) {
	cases := []struct {
		vehicle  string
		accepted []string
		want     bool
	}{
		{"Sprinter Van", []string{"sprinter"}, true},
		{"SPRINTER-VAN", []string{"sprinter"}, true},
		{"Straight Truck", []string{"sprinter"}, false},
		{"Cargo", []string{"Cargo Van"}, true},
		{"Box Truck", []string{"straight"}, true},
		{"Semi", []string{"tractor"}, true},
		{"", []string{"sprinter"}, false},
		{"Reefer", []string{"flatbed", "sprinter"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.vehicle, func(t *testing.T) {
			assert.Equal(t, tc.want, VehicleMatches(tc.vehicle, tc.accepted))
		})
	}
}

func TestMatchRegionalPrefilterSkipsEvaluation(t *testing.T) {
	store := newFakeMatchStore(
		internal.HuntPlan{ID: 1, Center: dallas, PickupRadiusMiles: 5000},
		internal.HuntPlan{ID: 2, Center: atlanta, PickupRadiusMiles: 5000},
	)
	m := NewMatcher(store, 500, metrics.New(), nil)

	report, err := m.Match(context.Background(), internal.ShipmentRecord{ID: 10, TenantID: "t1", Pickup: &seattle})
	require.NoError(t, err)
	assert.False(t, report.PrefilterPassed)
	assert.Zero(t, report.Evaluated)
	assert.Empty(t, store.matches)
}

func TestMatchFiltersAndIsIdempotent(t *testing.T) {
	floor := int64(10)
	payload := 500.0
	store := newFakeMatchStore(
		internal.HuntPlan{ID: 1, Center: fortWorth, PickupRadiusMiles: 100, VehicleSizes: []string{"sprinter"}},
		internal.HuntPlan{ID: 2, Center: houston, PickupRadiusMiles: 100},
		internal.HuntPlan{ID: 3, Center: dallas, PickupRadiusMiles: 100, FloorShipmentID: &floor},
		internal.HuntPlan{ID: 4, Center: dallas, PickupRadiusMiles: 100, MaxPayload: &payload},
		internal.HuntPlan{ID: 5, Center: dallas, PickupRadiusMiles: 100, VehicleSizes: []string{"straight"}},
	)
	met := metrics.New()
	m := NewMatcher(store, 500, met, nil)
	shipment := internal.ShipmentRecord{
		ID:          10,
		TenantID:    "t1",
		VehicleType: util.StringPtr("Sprinter Van"),
		Weight:      util.FloatPtr(1000),
		Pickup:      &dallas,
	}

	report, err := m.Match(context.Background(), shipment)
	require.NoError(t, err)
	assert.True(t, report.PrefilterPassed)
	assert.Equal(t, 5, report.Evaluated)
	assert.Equal(t, 1, report.Created)
	require.Len(t, store.matches, 1)
	got := store.matches[[2]int64{10, 1}]
	assert.InDelta(t, 32, got.DistanceMiles, 2)
	assert.True(t, got.Active)
	assert.Equal(t, "pending", got.Status)

	report, err = m.Match(context.Background(), shipment)
	require.NoError(t, err)
	assert.Zero(t, report.Created)
	assert.Len(t, store.matches, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(met.MatchesCreated))
}

func TestMatchWithoutPickupDoesNothing(t *testing.T) {
	store := newFakeMatchStore(internal.HuntPlan{ID: 1, Center: chicagoLoc, PickupRadiusMiles: 100})
	report, err := NewMatcher(store, 0, nil, nil).Match(context.Background(), internal.ShipmentRecord{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, MatchReport{}, report)
}
