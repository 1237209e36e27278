package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"waypoint-router/internal/models"
)

// DefaultOSRMBaseURL is the public OSRM demo server
const DefaultOSRMBaseURL = "https://router.project-osrm.org"

// OSRMConfig configures the OSRM provider
type OSRMConfig struct {
	BaseURL     string
	Profile     string        // e.g. "driving"
	Timeout     time.Duration // per attempt
	MaxAttempts int
}

type osrmProvider struct {
	baseURL     string
	profile     string
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
}

type osrmRoute struct {
	Geometry struct {
		Type        string      `json:"type"`
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

type osrmRouteResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
	// The trip service names its result "trips"
	Trips     []osrmRoute `json:"trips"`
	Waypoints []struct {
		WaypointIndex *int `json:"waypoint_index"`
	} `json:"waypoints"`
}

// NewOSRMProvider creates a routing provider backed by an OSRM server
func NewOSRMProvider(cfg OSRMConfig) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOSRMBaseURL
	}
	if cfg.Profile == "" {
		cfg.Profile = "driving"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	return &osrmProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		profile: cfg.Profile,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxAttempts: cfg.MaxAttempts,
		backoff:     200 * time.Millisecond,
	}
}

func (p *osrmProvider) ComputeRoute(ctx context.Context, coords []models.Coordinates, opts RouteOptions) (*RouteResult, error) {
	n := len(coords)
	if n < 2 {
		return nil, &ErrProviderFailure{Reason: fmt.Sprintf("at least 2 coordinates required, got %d", n)}
	}

	queryURL, optimized := p.buildURL(coords, opts)
	log.Printf("[OSRM] Route request: waypoints=%d optimize=%t", n, optimized)

	resp, err := p.doWithRetry(ctx, queryURL)
	if err != nil {
		log.Printf("[ERROR] OSRM API request failed: waypoints=%d err=%v", n, err)
		return nil, err
	}
	defer resp.Body.Close()

	var osrmResp osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&osrmResp); err != nil {
		log.Printf("[ERROR] Failed to decode OSRM response: waypoints=%d err=%v", n, err)
		return nil, &ErrProviderFailure{Reason: fmt.Sprintf("decode response: %v", err)}
	}

	result, err := parseRouteResponse(&osrmResp, n, optimized)
	if err != nil {
		log.Printf("[ERROR] Invalid OSRM response: waypoints=%d err=%v", n, err)
		return nil, err
	}

	log.Printf("[OSRM] Route response: waypoints=%d points=%d distance=%.0f duration=%.0f", n, len(result.Geometry), result.DistanceMeters, result.DurationSeconds)
	return result, nil
}

// buildURL encodes coordinates as "lng,lat" pairs joined by ";". Optimization
// switches to the trip service with both endpoints pinned.
func (p *osrmProvider) buildURL(coords []models.Coordinates, opts RouteOptions) (string, bool) {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = fmt.Sprintf("%.6f,%.6f", c.Lng, c.Lat)
	}

	params := url.Values{}
	params.Set("overview", "full")
	params.Set("geometries", "geojson")

	service := "route"
	optimized := opts.Optimize && len(coords) > 2
	if optimized {
		service = "trip"
		params.Set("source", "first")
		params.Set("destination", "last")
		params.Set("roundtrip", "false")
	}

	return fmt.Sprintf("%s/%s/v1/%s/%s?%s", p.baseURL, service, p.profile, strings.Join(parts, ";"), params.Encode()), optimized
}

func parseRouteResponse(resp *osrmRouteResponse, n int, optimized bool) (*RouteResult, error) {
	if resp.Code != "Ok" {
		reason := "OSRM error: " + resp.Code
		if resp.Message != "" {
			reason += ": " + resp.Message
		}
		return nil, &ErrProviderFailure{Reason: reason}
	}

	routes := resp.Routes
	if len(routes) == 0 {
		routes = resp.Trips
	}
	if len(routes) == 0 {
		return nil, &ErrProviderFailure{Reason: "no route found"}
	}
	route := routes[0]

	if !isNonNegative(route.Distance) || !isNonNegative(route.Duration) {
		return nil, &ErrProviderFailure{Reason: fmt.Sprintf("invalid metrics: distance=%v duration=%v", route.Distance, route.Duration)}
	}

	geometry := make([]models.Coordinates, 0, len(route.Geometry.Coordinates))
	for i, pair := range route.Geometry.Coordinates {
		if len(pair) < 2 {
			return nil, &ErrProviderFailure{Reason: fmt.Sprintf("geometry point %d has %d components", i, len(pair))}
		}
		// GeoJSON pairs are (lng, lat)
		if err := models.ValidateCoordinates(pair[1], pair[0]); err != nil {
			return nil, &ErrProviderFailure{Reason: fmt.Sprintf("geometry point %d: %v", i, err)}
		}
		geometry = append(geometry, models.Coordinates{Lat: pair[1], Lng: pair[0]})
	}
	if len(geometry) == 0 {
		return nil, &ErrProviderFailure{Reason: "empty geometry"}
	}

	result := &RouteResult{
		Geometry:        geometry,
		DistanceMeters:  route.Distance,
		DurationSeconds: route.Duration,
	}

	if optimized && len(resp.Waypoints) > 0 {
		order, err := waypointOrder(resp, n)
		if err != nil {
			return nil, err
		}
		result.WaypointOrder = order
	}

	return result, nil
}

func waypointOrder(resp *osrmRouteResponse, n int) ([]int, error) {
	if len(resp.Waypoints) != n {
		return nil, &ErrProviderFailure{Reason: fmt.Sprintf("expected %d waypoints, got %d", n, len(resp.Waypoints))}
	}

	order := make([]int, n)
	seen := make([]bool, n)
	for i, wp := range resp.Waypoints {
		if wp.WaypointIndex == nil {
			return nil, &ErrProviderFailure{Reason: fmt.Sprintf("waypoint %d has no waypoint_index", i)}
		}
		idx := *wp.WaypointIndex
		if idx < 0 || idx >= n || seen[idx] {
			return nil, &ErrProviderFailure{Reason: fmt.Sprintf("waypoint %d has invalid waypoint_index %d", i, idx)}
		}
		seen[idx] = true
		order[i] = idx
	}
	if order[0] != 0 || order[n-1] != n-1 {
		return nil, &ErrProviderFailure{Reason: "optimized order moved an endpoint"}
	}
	return order, nil
}

func isNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// doWithRetry retries transient failures (network errors, 429 and 5xx
// responses) with exponential backoff while respecting context cancellation.
func (p *osrmProvider) doWithRetry(ctx context.Context, queryURL string) (*http.Response, error) {
	backoff := p.backoff
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &ErrProviderFailure{Reason: err.Error()}
		}

		resp, err := p.do(ctx, queryURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == p.maxAttempts {
			break
		}

		log.Printf("[OSRM] Retry %d/%d: backoff=%v err=%v", attempt, p.maxAttempts, backoff, err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &ErrProviderFailure{Reason: ctx.Err().Error()}
		case <-timer.C:
		}
		backoff *= 2
	}

	var te *transportError
	if errors.As(lastErr, &te) {
		return nil, &ErrProviderFailure{Reason: te.err.Error()}
	}
	return nil, lastErr
}

func (p *osrmProvider) do(ctx context.Context, queryURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrProviderFailure{Reason: err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &ErrProviderFailure{
			StatusCode: resp.StatusCode,
			Reason:     strings.TrimSpace(string(body)),
		}
	}

	return resp, nil
}

// transportError wraps network-level failures so they can be retried
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("routing provider failed: %v", e.err)
}

func (e *transportError) Unwrap() error {
	return e.err
}

func isRetryable(err error) bool {
	var pf *ErrProviderFailure
	if errors.As(err, &pf) {
		switch pf.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var te *transportError
	if errors.As(err, &te) {
		var netErr net.Error
		if errors.As(te.err, &netErr) {
			return true
		}
		return !errors.Is(te.err, context.Canceled)
	}
	return false
}
