package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"waypoint-router/internal/models"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "WaypointRouter/1.0"
	DefaultCacheSize = 256
)

// GeocodingResult contains the result of a geocoding operation
type GeocodingResult struct {
	Coords      models.Coordinates `json:"coords"`
	DisplayName string             `json:"display_name"`
}

// Geocoder provides address-to-coordinates conversion
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
	Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error)
}

// ErrGeocodingFailed is returned when an address cannot be geocoded
type ErrGeocodingFailed struct {
	Address string
	Reason  string
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for address: %s - %s", e.Address, e.Reason)
}

// Config configures the Nominatim geocoder
type Config struct {
	BaseURL   string
	UserAgent string
	CacheSize int           // recent queries kept in memory, 0 for the default
	Interval  time.Duration // minimum delay between upstream requests
}

type nominatimGeocoder struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	rateLimiter *time.Ticker
	memo        *lru.Cache[string, []GeocodingResult]
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a new Nominatim geocoder with rate limiting
func NewNominatimGeocoder(cfg Config) (Geocoder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Interval <= 0 {
		// Nominatim usage policy: at most one request per second
		cfg.Interval = time.Second
	}

	memo, err := lru.New[string, []GeocodingResult](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoding cache: %w", err)
	}

	return &nominatimGeocoder{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rateLimiter: time.NewTicker(cfg.Interval),
		memo:        memo,
	}, nil
}

func (g *nominatimGeocoder) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	results, err := g.Search(ctx, address, 1)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		log.Printf("[ERROR] No geocoding results found: address=%s", address)
		return nil, &ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}

	result := results[0]
	log.Printf("[GEOCODING] Response: address=%s lat=%.6f lng=%.6f display_name=%s", address, result.Coords.Lat, result.Coords.Lng, result.DisplayName)
	return &result, nil
}

func (g *nominatimGeocoder) Search(ctx context.Context, query string, limit int) ([]GeocodingResult, error) {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil, &ErrGeocodingFailed{Address: query, Reason: "empty query"}
	}
	if limit <= 0 {
		limit = 5
	}

	key := fmt.Sprintf("%d|%s", limit, strings.ToLower(query))
	if cached, ok := g.memo.Get(key); ok {
		log.Printf("[GEOCODING] Cache hit: query=%s results_count=%d", query, len(cached))
		return append([]GeocodingResult(nil), cached...), nil
	}

	select {
	case <-g.rateLimiter.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	queryURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=%d", g.baseURL, url.QueryEscape(query), limit)
	log.Printf("[GEOCODING] Search request: query=%s limit=%d url=%s", query, limit, queryURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to create geocoding search request: query=%s err=%v", query, err)
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}

	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] Geocoding search API request failed: query=%s err=%v", query, err)
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("[ERROR] Geocoding search API error: query=%s status=%d body=%s", query, resp.StatusCode, string(body))
		return nil, &ErrGeocodingFailed{
			Address: query,
			Reason:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		log.Printf("[ERROR] Failed to decode geocoding search response: query=%s err=%v", query, err)
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}

	log.Printf("[GEOCODING] Search response: query=%s results_count=%d", query, len(results))

	geocodingResults := make([]GeocodingResult, 0, len(results))
	for _, result := range results {
		lat, err := strconv.ParseFloat(result.Lat, 64)
		if err != nil {
			log.Printf("[ERROR] Invalid latitude in geocoding search response: query=%s lat=%s err=%v", query, result.Lat, err)
			continue
		}
		lng, err := strconv.ParseFloat(result.Lon, 64)
		if err != nil {
			log.Printf("[ERROR] Invalid longitude in geocoding search response: query=%s lng=%s err=%v", query, result.Lon, err)
			continue
		}
		if err := models.ValidateCoordinates(lat, lng); err != nil {
			log.Printf("[ERROR] Out of range coordinates in geocoding search response: query=%s err=%v", query, err)
			continue
		}

		geocodingResults = append(geocodingResults, GeocodingResult{
			Coords: models.Coordinates{
				Lat: lat,
				Lng: lng,
			},
			DisplayName: result.DisplayName,
		})
	}

	g.memo.Add(key, geocodingResults)
	return append([]GeocodingResult(nil), geocodingResults...), nil
}
