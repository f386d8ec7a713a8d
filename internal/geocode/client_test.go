package geocode

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadhunt/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

const dallasFeature = `{"features":[{"id":"place.123","text":"Dallas","relevance":1,"center":[-96.797,32.7767],
"context":[{"id":"postcode.1","text":"75201"},{"id":"region.9","text":"Texas","short_code":"US-TX"},{"id":"country.1","text":"United States","short_code":"us"}]}]}`

func testClient(rt roundTripFunc) *MapboxClient {
	cfg := config.Config{
		MapboxToken:    "pk.test",
		MapboxBaseURL:  "https://example.test/geocoding/v5/mapbox.places",
		GeocodeCountry: "us",
	}
	client := NewMapboxClient(cfg)
	client.backoff = time.Millisecond
	client.httpClient = &http.Client{Transport: rt}
	return client
}

func TestForwardRetriesAndParsesContext(t *testing.T) {
	attempt := 0
	client := testClient(func(r *http.Request) (*http.Response, error) {
		attempt++
		assert.Equal(t, "/geocoding/v5/mapbox.places/DALLAS, TX.json", r.URL.Path)
		assert.Equal(t, "us", r.URL.Query().Get("country"))
		assert.Equal(t, "place", r.URL.Query().Get("types"))
		assert.Equal(t, "pk.test", r.URL.Query().Get("access_token"))
		if attempt == 1 {
			return jsonResponse(http.StatusServiceUnavailable, `{"message":"busy"}`), nil
		}
		return jsonResponse(http.StatusOK, dallasFeature), nil
	})

	place, err := client.Forward(context.Background(), "DALLAS, TX", KindPlace)
	require.NoError(t, err)
	require.NotNil(t, place)
	assert.Equal(t, 2, attempt)
	assert.InDelta(t, 32.7767, place.Coordinates.Latitude, 1e-9)
	assert.InDelta(t, -96.797, place.Coordinates.Longitude, 1e-9)
	assert.Equal(t, "Dallas", place.City)
	assert.Equal(t, "TX", place.State)
	assert.Equal(t, "75201", place.PostalCode)
}

func TestForwardNoFeatures(t *testing.T) {
	client := testClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"features":[]}`), nil
	})

	place, err := client.Forward(context.Background(), "NOWHERE, ZZ", KindPlace)
	require.NoError(t, err)
	assert.Nil(t, place)
}

func TestForwardClientErrorIsNotRetried(t *testing.T) {
	attempt := 0
	client := testClient(func(*http.Request) (*http.Response, error) {
		attempt++
		return jsonResponse(http.StatusUnauthorized, `{"message":"Not Authorized"}`), nil
	})

	_, err := client.Forward(context.Background(), "DALLAS, TX", KindPlace)
	require.Error(t, err)
	assert.Equal(t, 1, attempt)
	assert.Contains(t, err.Error(), "status=401")
}

func TestForwardRequiresToken(t *testing.T) {
	client := NewMapboxClient(config.Config{})
	_, err := client.Forward(context.Background(), "DALLAS, TX", KindPlace)
	require.Error(t, err)
}
