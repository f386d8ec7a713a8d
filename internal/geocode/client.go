package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"loadhunt/internal"
	"loadhunt/internal/config"
)

// Place is a resolved location with the administrative names the provider
// attached to it.
type Place struct {
	Coordinates internal.Coordinates
	City        string
	State       string
	PostalCode  string
}

// Provider forward-geocodes free text. A nil Place with a nil error means
// the provider had no result.
type Provider interface {
	Forward(ctx context.Context, query string, kind QueryKind) (*Place, error)
}

type QueryKind string

const (
	KindPlace  QueryKind = "place"
	KindPostal QueryKind = "postcode"
)

// MapboxClient talks to the Mapbox Geocoding v5 places endpoint.
type MapboxClient struct {
	baseURL     string
	token       string
	country     string
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
}

type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

type mapboxFeature struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Center    []float64       `json:"center"`
	Relevance float64         `json:"relevance"`
	Context   []mapboxContext `json:"context"`
}

type mapboxContext struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ShortCode string `json:"short_code"`
}

func NewMapboxClient(cfg config.Config) *MapboxClient {
	timeout := cfg.GeocodeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MapboxClient{
		baseURL:     cfg.MapboxBaseURL,
		token:       cfg.MapboxToken,
		country:     cfg.GeocodeCountry,
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: 3,
		backoff:     250 * time.Millisecond,
	}
}

func (c *MapboxClient) Forward(ctx context.Context, query string, kind QueryKind) (*Place, error) {
	if strings.TrimSpace(c.token) == "" {
		return nil, eris.New("geocode: missing MAPBOX_TOKEN")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	u, err := url.Parse(strings.TrimRight(c.baseURL, "/") + "/" + url.PathEscape(query) + ".json")
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build url")
	}
	q := u.Query()
	q.Set("access_token", c.token)
	q.Set("limit", "1")
	q.Set("types", string(kind))
	if c.country != "" {
		q.Set("country", c.country)
	}
	u.RawQuery = q.Encode()

	body, err := c.fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var resp mapboxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: decode response")
	}
	for _, f := range resp.Features {
		if place, ok := toPlace(f); ok {
			return place, nil
		}
	}
	return nil, nil
}

func (c *MapboxClient) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "geocode: build request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = eris.Wrap(err, "geocode: request")
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = eris.Wrap(readErr, "geocode: read body")
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = eris.Errorf("geocode: mapbox status=%d body=%s", resp.StatusCode, truncate(string(body), 200))
			if isRetryableStatus(resp.StatusCode) && attempt < c.maxAttempts {
				sleep := time.Duration(1<<(attempt-1))*c.backoff + time.Duration(rand.Intn(50))*time.Millisecond
				select {
				case <-time.After(sleep):
				case <-ctx.Done():
					return nil, eris.Wrap(ctx.Err(), "geocode: backoff")
				}
				continue
			}
			return nil, lastErr
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = eris.New("geocode: request failed")
	}
	return nil, lastErr
}

func toPlace(f mapboxFeature) (*Place, bool) {
	if len(f.Center) < 2 {
		return nil, false
	}
	place := &Place{Coordinates: internal.Coordinates{Longitude: f.Center[0], Latitude: f.Center[1]}}

	parts := append([]mapboxContext{{ID: f.ID, Text: f.Text}}, f.Context...)
	for _, part := range parts {
		switch layer(part.ID) {
		case "place":
			if place.City == "" {
				place.City = part.Text
			}
		case "postcode":
			if place.PostalCode == "" {
				place.PostalCode = part.Text
			}
		case "region":
			if place.State == "" {
				place.State = regionCode(part)
			}
		}
	}
	return place, true
}

func layer(id string) string {
	if i := strings.IndexByte(id, '.'); i > 0 {
		return id[:i]
	}
	return id
}

// regionCode turns "US-TX" into "TX", falling back to the region name.
func regionCode(c mapboxContext) string {
	if i := strings.LastIndexByte(c.ShortCode, '-'); i >= 0 && i+1 < len(c.ShortCode) {
		return strings.ToUpper(c.ShortCode[i+1:])
	}
	if c.ShortCode != "" {
		return strings.ToUpper(c.ShortCode)
	}
	return c.Text
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
