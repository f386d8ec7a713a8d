package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"loadhunt/internal"
)

func TestHaversine(t *testing.T) {
	dallas := internal.Coordinates{Latitude: 32.7767, Longitude: -96.7970}
	houston := internal.Coordinates{Latitude: 29.7604, Longitude: -95.3698}
	chicago := internal.Coordinates{Latitude: 41.8781, Longitude: -87.6298}

	assert.InDelta(t, 0, Haversine(dallas, dallas), 1e-9)
	assert.InDelta(t, 225, Haversine(dallas, houston), 3)
	assert.InDelta(t, 803, Haversine(dallas, chicago), 5)
	assert.InDelta(t, Haversine(dallas, chicago), Haversine(chicago, dallas), 1e-9)
}
