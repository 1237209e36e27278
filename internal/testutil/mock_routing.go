package testutil

import (
	"context"
	"math"
	"sync"

	"waypoint-router/internal/models"
	"waypoint-router/internal/routing"
)

// RouteCall tracks a call to the routing provider
type RouteCall struct {
	Coords []models.Coordinates
	Opts   routing.RouteOptions
}

// MockProvider is a mock routing provider for testing.
// By default it returns the input points as geometry with a scaled Euclidean
// distance, so results are deterministic.
type MockProvider struct {
	ScaleFactor float64
	Err         error
	Order       []int // returned as WaypointOrder when optimizing

	// ComputeFunc, when set, replaces the default behaviour
	ComputeFunc func(ctx context.Context, coords []models.Coordinates, opts routing.RouteOptions) (*routing.RouteResult, error)

	mu    sync.Mutex
	calls []RouteCall
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		ScaleFactor: 111000, // 1 degree ≈ 111km in meters
	}
}

func (m *MockProvider) ComputeRoute(ctx context.Context, coords []models.Coordinates, opts routing.RouteOptions) (*routing.RouteResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, RouteCall{Coords: append([]models.Coordinates(nil), coords...), Opts: opts})
	fn, err := m.ComputeFunc, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, coords, opts)
	}
	if err != nil {
		return nil, err
	}

	dist := 0.0
	for i := 1; i < len(coords); i++ {
		dLat := coords[i].Lat - coords[i-1].Lat
		dLng := coords[i].Lng - coords[i-1].Lng
		dist += math.Sqrt(dLat*dLat+dLng*dLng) * m.ScaleFactor
	}

	result := &routing.RouteResult{
		Geometry:        append([]models.Coordinates(nil), coords...),
		DistanceMeters:  dist,
		DurationSeconds: dist / 50000 * 3600, // 50 km/h
	}
	if opts.Optimize && m.Order != nil {
		result.WaypointOrder = append([]int(nil), m.Order...)
	}
	return result, nil
}

// Calls returns a copy of the recorded calls
func (m *MockProvider) Calls() []RouteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RouteCall(nil), m.calls...)
}

// CallCount returns the number of recorded calls
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// SetErr makes subsequent calls fail with err (nil restores success)
func (m *MockProvider) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// ResetCalls clears the recorded calls
func (m *MockProvider) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// GatedResult is a response released to a blocked call
type GatedResult struct {
	Result *routing.RouteResult
	Err    error
}

// PendingCall is a provider call blocked on a Gate
type PendingCall struct {
	Coords []models.Coordinates
	Opts   routing.RouteOptions
	reply  chan GatedResult
}

// Release unblocks the call with the given response
func (c *PendingCall) Release(result *routing.RouteResult, err error) {
	c.reply <- GatedResult{Result: result, Err: err}
}

// Gate makes provider calls block until the test releases them individually
type Gate struct {
	Calls chan *PendingCall
}

// NewGate creates a gate buffering up to capacity pending calls
func NewGate(capacity int) *Gate {
	return &Gate{Calls: make(chan *PendingCall, capacity)}
}

// Func is suitable for MockProvider.ComputeFunc
func (g *Gate) Func(ctx context.Context, coords []models.Coordinates, opts routing.RouteOptions) (*routing.RouteResult, error) {
	call := &PendingCall{Coords: coords, Opts: opts, reply: make(chan GatedResult, 1)}
	g.Calls <- call
	select {
	case r := <-call.reply:
		return r.Result, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
