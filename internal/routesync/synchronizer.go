package routesync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"waypoint-router/internal/itinerary"
	"waypoint-router/internal/models"
	"waypoint-router/internal/routing"
)

// DefaultTimeout bounds a single routing computation
const DefaultTimeout = 15 * time.Second

// Itinerary is the part of the waypoint collection the synchronizer needs
type Itinerary interface {
	Subscribe(l itinerary.Listener)
	Snapshot() itinerary.Snapshot
	ApplyOrder(revision uint64, order []int) error
}

// Config tunes the synchronizer
type Config struct {
	Timeout time.Duration
}

// Synchronizer keeps a RouteState consistent with the itinerary.
//
// Every structural change to the itinerary starts a new generation and a new
// provider request. A result is applied only if its generation is still the
// current one, so a slow stale response never overwrites a newer state.
// Provider failures degrade to a straight-line geometry and are never returned.
type Synchronizer struct {
	itinerary Itinerary
	provider  routing.Provider
	timeout   time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	synced     bool
	version    uint64 // last observed itinerary version
	generation uint64
	state      models.RouteState
	listeners  []func(models.RouteState)
	inflight   sync.WaitGroup
}

// New creates a synchronizer subscribed to it and syncs its current contents
func New(it Itinerary, provider routing.Provider, cfg Config) *Synchronizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		itinerary: it,
		provider:  provider,
		timeout:   cfg.Timeout,
		ctx:       ctx,
		cancel:    cancel,
		state: models.RouteState{
			Waypoints: []models.Waypoint{},
			Geometry:  []models.Coordinates{},
			Status:    models.SyncIdle,
		},
	}

	it.Subscribe(s.Observe)
	s.Observe(it.Snapshot())
	return s
}

// OnChange registers a listener called with a copy of every new state
func (s *Synchronizer) OnChange(l func(models.RouteState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// State returns a deep copy of the current route state
func (s *Synchronizer) State() models.RouteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Wait blocks until no routing request is in flight
func (s *Synchronizer) Wait() {
	s.inflight.Wait()
}

// Close abandons in-flight requests and waits for them to return
func (s *Synchronizer) Close() {
	s.cancel()
	s.inflight.Wait()
}

// Observe reconciles the route state with an itinerary snapshot.
// Snapshots not newer than the last one seen are ignored.
func (s *Synchronizer) Observe(snap itinerary.Snapshot) {
	s.mu.Lock()
	if s.synced && snap.Version <= s.version {
		s.mu.Unlock()
		return
	}
	structural := !s.synced || snap.Revision != s.generation
	s.synced = true
	s.version = snap.Version
	s.state.Name = snap.Name
	s.state.Waypoints = append([]models.Waypoint{}, snap.Waypoints...)

	if !structural {
		st := s.state.Clone()
		listeners := s.listeners
		s.mu.Unlock()
		emit(listeners, st)
		return
	}

	s.generation = snap.Revision
	s.state.Generation = snap.Revision
	gen := snap.Revision

	if len(snap.Waypoints) < 2 {
		s.state.Status = models.SyncIdle
		s.state.Geometry = []models.Coordinates{}
		s.state.DistanceMeters = nil
		s.state.DurationSeconds = nil
		st := s.state.Clone()
		listeners := s.listeners
		s.mu.Unlock()

		log.Printf("[SYNC] Idle: generation=%d waypoints=%d", gen, len(snap.Waypoints))
		emit(listeners, st)
		return
	}

	// The previous geometry stays visible until the new result arrives
	s.state.Status = models.SyncPending
	coords := routing.CoordinatesOf(snap.Waypoints)
	s.inflight.Add(1)
	st := s.state.Clone()
	listeners := s.listeners
	s.mu.Unlock()

	log.Printf("[SYNC] Pending: generation=%d waypoints=%d", gen, len(coords))
	emit(listeners, st)

	go s.compute(gen, coords)
}

func (s *Synchronizer) compute(gen uint64, coords []models.Coordinates) {
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	result, err := s.call(ctx, coords)

	s.mu.Lock()
	if gen != s.generation {
		current := s.generation
		s.mu.Unlock()
		log.Printf("[SYNC] Discarded stale result: generation=%d current=%d", gen, current)
		return
	}

	if err != nil {
		s.state.Status = models.SyncFallback
		s.state.Geometry = routing.StraightLine(coords)
		s.state.DistanceMeters = nil
		s.state.DurationSeconds = nil
	} else {
		distance, duration := result.DistanceMeters, result.DurationSeconds
		s.state.Status = models.SyncSettled
		s.state.Geometry = append([]models.Coordinates{}, result.Geometry...)
		s.state.DistanceMeters = &distance
		s.state.DurationSeconds = &duration
	}
	st := s.state.Clone()
	listeners := s.listeners
	s.mu.Unlock()

	if err != nil {
		log.Printf("[SYNC] Fallback to straight line: generation=%d err=%v", gen, err)
	} else {
		log.Printf("[SYNC] Settled: generation=%d points=%d distance=%.0f", gen, len(st.Geometry), *st.DistanceMeters)
	}
	emit(listeners, st)
}

// call invokes the provider and turns every misbehaviour into an error
func (s *Synchronizer) call(ctx context.Context, coords []models.Coordinates) (result *routing.RouteResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &routing.ErrProviderFailure{Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	result, err = s.provider.ComputeRoute(ctx, coords, routing.RouteOptions{})
	if err != nil {
		return nil, err
	}
	if result == nil || len(result.Geometry) == 0 {
		return nil, &routing.ErrProviderFailure{Reason: "empty result"}
	}
	return result, nil
}

// Optimize asks the provider for the best order of interior stops and applies
// it to the itinerary, which then re-syncs as for any other change.
// It reports whether the order changed. Itineraries of fewer than three
// stops are left as they are.
func (s *Synchronizer) Optimize(ctx context.Context) (bool, error) {
	snap := s.itinerary.Snapshot()
	if len(snap.Waypoints) < 3 {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	coords := routing.CoordinatesOf(snap.Waypoints)
	result, err := s.provider.ComputeRoute(ctx, coords, routing.RouteOptions{Optimize: true})
	if err != nil {
		log.Printf("[ERROR] Optimization failed: waypoints=%d err=%v", len(coords), err)
		return false, fmt.Errorf("optimize: %w", err)
	}
	if result == nil || result.WaypointOrder == nil {
		return false, nil
	}

	if err := s.itinerary.ApplyOrder(snap.Revision, result.WaypointOrder); err != nil {
		if errors.Is(err, itinerary.ErrStaleRevision) {
			log.Printf("[SYNC] Optimized order discarded: itinerary changed during optimization")
		}
		return false, fmt.Errorf("optimize: %w", err)
	}

	changed := !isIdentity(result.WaypointOrder)
	log.Printf("[SYNC] Optimized order applied: waypoints=%d changed=%t", len(coords), changed)
	return changed, nil
}

func isIdentity(order []int) bool {
	for i, v := range order {
		if i != v {
			return false
		}
	}
	return true
}

func emit(listeners []func(models.RouteState), st models.RouteState) {
	for _, l := range listeners {
		l(st.Clone())
	}
}
