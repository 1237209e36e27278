package routesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-router/internal/itinerary"
	"waypoint-router/internal/models"
	"waypoint-router/internal/routing"
	"waypoint-router/internal/testutil"
)

func setup(t *testing.T, provider routing.Provider) (*itinerary.Collection, *Synchronizer) {
	t.Helper()
	c := itinerary.NewCollection(&itinerary.SequentialGenerator{Prefix: "wp-"}, "")
	s := New(c, provider, Config{Timeout: time.Second})
	t.Cleanup(s.Close)
	return c, s
}

func mustAdd(t *testing.T, c *itinerary.Collection, lat, lng float64, label string) models.Waypoint {
	t.Helper()
	wp, err := c.Add(lat, lng, label, "")
	require.NoError(t, err)
	return wp
}

func TestEmptyItineraryIsIdle(t *testing.T) {
	provider := testutil.NewMockProvider()
	_, s := setup(t, provider)

	st := s.State()
	assert.Equal(t, models.SyncIdle, st.Status)
	assert.Equal(t, itinerary.DefaultName, st.Name)
	assert.Empty(t, st.Geometry)
	assert.Nil(t, st.DistanceMeters)
	assert.Nil(t, st.DurationSeconds)
	assert.Equal(t, 0, provider.CallCount())
}

func TestSingleWaypointNeverCallsProvider(t *testing.T) {
	provider := testutil.NewMockProvider()
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	s.Wait()

	st := s.State()
	assert.Equal(t, models.SyncIdle, st.Status)
	assert.Len(t, st.Waypoints, 1)
	assert.Empty(t, st.Geometry)
	assert.Nil(t, st.DistanceMeters)
	assert.Equal(t, 0, provider.CallCount())
}

func TestProviderSuccessSettles(t *testing.T) {
	provider := testutil.NewMockProvider()
	provider.ComputeFunc = func(ctx context.Context, coords []models.Coordinates, opts routing.RouteOptions) (*routing.RouteResult, error) {
		return &routing.RouteResult{
			Geometry:        []models.Coordinates{{Lat: 0, Lng: 0}, {Lat: 0.5, Lng: 0.4}, {Lat: 1, Lng: 1}},
			DistanceMeters:  157000,
			DurationSeconds: 7200,
		}, nil
	}
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	s.Wait()

	st := s.State()
	assert.Equal(t, models.SyncSettled, st.Status)
	assert.Len(t, st.Geometry, 3)
	require.NotNil(t, st.DistanceMeters)
	require.NotNil(t, st.DurationSeconds)
	assert.Equal(t, 157000.0, *st.DistanceMeters)
	assert.Equal(t, 7200.0, *st.DurationSeconds)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []models.Coordinates{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}, calls[0].Coords)
	assert.False(t, calls[0].Opts.Optimize)
}

func TestProviderFailureFallsBackToStraightLine(t *testing.T) {
	provider := testutil.NewMockProvider()
	provider.SetErr(&routing.ErrProviderFailure{Reason: "NoRoute"})
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	s.Wait()

	st := s.State()
	assert.Equal(t, models.SyncFallback, st.Status)
	assert.Equal(t, []models.Coordinates{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}, st.Geometry)
	assert.Nil(t, st.DistanceMeters)
	assert.Nil(t, st.DurationSeconds)
}

func TestEmptyResultFallsBack(t *testing.T) {
	provider := testutil.NewMockProvider()
	provider.ComputeFunc = func(ctx context.Context, coords []models.Coordinates, opts routing.RouteOptions) (*routing.RouteResult, error) {
		return &routing.RouteResult{}, nil
	}
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	s.Wait()

	assert.Equal(t, models.SyncFallback, s.State().Status)
}

func TestPanickingProviderFallsBack(t *testing.T) {
	provider := testutil.NewMockProvider()
	provider.ComputeFunc = func(ctx context.Context, coords []models.Coordinates, opts routing.RouteOptions) (*routing.RouteResult, error) {
		panic("boom")
	}
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	s.Wait()

	assert.Equal(t, models.SyncFallback, s.State().Status)
}

func TestTimeoutFallsBack(t *testing.T) {
	provider := testutil.NewMockProvider()
	provider.ComputeFunc = func(ctx context.Context, coords []models.Coordinates, opts routing.RouteOptions) (*routing.RouteResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c := itinerary.NewCollection(&itinerary.SequentialGenerator{}, "")
	s := New(c, provider, Config{Timeout: 20 * time.Millisecond})
	defer s.Close()

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	s.Wait()

	assert.Equal(t, models.SyncFallback, s.State().Status)
}

func TestPendingKeepsPreviousGeometry(t *testing.T) {
	gate := testutil.NewGate(4)
	provider := testutil.NewMockProvider()
	provider.ComputeFunc = gate.Func
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	first := <-gate.Calls
	first.Release(&routing.RouteResult{Geometry: first.Coords, DistanceMeters: 10, DurationSeconds: 1}, nil)
	s.Wait()
	require.Equal(t, models.SyncSettled, s.State().Status)

	mustAdd(t, c, 2, 2, "C")
	st := s.State()
	assert.Equal(t, models.SyncPending, st.Status)
	assert.Len(t, st.Waypoints, 3)
	assert.Len(t, st.Geometry, 2)
	require.NotNil(t, st.DistanceMeters)

	second := <-gate.Calls
	second.Release(&routing.RouteResult{Geometry: second.Coords, DistanceMeters: 20, DurationSeconds: 2}, nil)
	s.Wait()
	assert.Len(t, s.State().Geometry, 3)
}

func TestStaleResultIsDiscarded(t *testing.T) {
	gate := testutil.NewGate(4)
	provider := testutil.NewMockProvider()
	provider.ComputeFunc = gate.Func
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	stale := <-gate.Calls

	mustAdd(t, c, 2, 2, "C")
	current := <-gate.Calls
	require.Len(t, current.Coords, 3)

	current.Release(&routing.RouteResult{Geometry: current.Coords, DistanceMeters: 300, DurationSeconds: 30}, nil)
	stale.Release(&routing.RouteResult{Geometry: stale.Coords, DistanceMeters: 200, DurationSeconds: 20}, nil)
	s.Wait()

	st := s.State()
	assert.Equal(t, models.SyncSettled, st.Status)
	require.NotNil(t, st.DistanceMeters)
	assert.Equal(t, 300.0, *st.DistanceMeters)
	assert.Len(t, st.Geometry, 3)
}

func TestStaleResultArrivingFirstIsDiscarded(t *testing.T) {
	gate := testutil.NewGate(4)
	provider := testutil.NewMockProvider()
	provider.ComputeFunc = gate.Func
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	stale := <-gate.Calls
	mustAdd(t, c, 2, 2, "C")
	current := <-gate.Calls

	stale.Release(nil, errors.New("late failure"))
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, models.SyncPending, s.State().Status)

	current.Release(&routing.RouteResult{Geometry: current.Coords, DistanceMeters: 300, DurationSeconds: 30}, nil)
	s.Wait()
	assert.Equal(t, models.SyncSettled, s.State().Status)
}

func TestRemovingBelowTwoResetsState(t *testing.T) {
	provider := testutil.NewMockProvider()
	c, s := setup(t, provider)

	a := mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	s.Wait()
	require.Equal(t, models.SyncSettled, s.State().Status)

	require.NoError(t, c.Remove(a.ID))
	s.Wait()

	st := s.State()
	assert.Equal(t, models.SyncIdle, st.Status)
	assert.Empty(t, st.Geometry)
	assert.Nil(t, st.DistanceMeters)
	assert.Nil(t, st.DurationSeconds)
}

func TestClearResetsState(t *testing.T) {
	provider := testutil.NewMockProvider()
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	s.Wait()
	c.Clear()

	st := s.State()
	assert.Equal(t, models.SyncIdle, st.Status)
	assert.Empty(t, st.Waypoints)
	assert.Empty(t, st.Geometry)
}

func TestRenameDoesNotReroute(t *testing.T) {
	provider := testutil.NewMockProvider()
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	s.Wait()
	gen := s.State().Generation

	require.NoError(t, c.SetName("Tournée du lundi"))
	s.Wait()

	st := s.State()
	assert.Equal(t, "Tournée du lundi", st.Name)
	assert.Equal(t, gen, st.Generation)
	assert.Equal(t, models.SyncSettled, st.Status)
	assert.Equal(t, 1, provider.CallCount())
}

func TestOlderSnapshotsAreIgnored(t *testing.T) {
	provider := testutil.NewMockProvider()
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	old := c.Snapshot()
	mustAdd(t, c, 1, 1, "B")
	s.Wait()

	s.Observe(old)
	s.Wait()

	st := s.State()
	assert.Len(t, st.Waypoints, 2)
	assert.Equal(t, models.SyncSettled, st.Status)
}

func TestOnChangeReceivesStates(t *testing.T) {
	provider := testutil.NewMockProvider()
	c, s := setup(t, provider)

	var mu sync.Mutex
	var statuses []models.SyncStatus
	s.OnChange(func(st models.RouteState) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, st.Status)
	})

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []models.SyncStatus{models.SyncIdle, models.SyncPending, models.SyncSettled}, statuses)
}

func TestStateIsACopy(t *testing.T) {
	provider := testutil.NewMockProvider()
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	s.Wait()

	st := s.State()
	st.Waypoints[0].Label = "changed"
	st.Geometry[0].Lat = 42

	fresh := s.State()
	assert.Equal(t, "A", fresh.Waypoints[0].Label)
	assert.Equal(t, 0.0, fresh.Geometry[0].Lat)
}

func TestOptimizeAppliesOrder(t *testing.T) {
	provider := testutil.NewMockProvider()
	provider.Order = []int{0, 2, 1, 3}
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	mustAdd(t, c, 2, 2, "C")
	mustAdd(t, c, 3, 3, "D")
	s.Wait()

	changed, err := s.Optimize(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	s.Wait()

	st := s.State()
	labels := []string{}
	for _, wp := range st.Waypoints {
		labels = append(labels, wp.Label)
	}
	assert.Equal(t, []string{"A", "C", "B", "D"}, labels)
	assert.Equal(t, models.SyncSettled, st.Status)

	var optimized int
	for _, call := range provider.Calls() {
		if call.Opts.Optimize {
			optimized++
		}
	}
	assert.Equal(t, 1, optimized)
}

func TestOptimizeFailureLeavesItineraryUnchanged(t *testing.T) {
	provider := testutil.NewMockProvider()
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	mustAdd(t, c, 2, 2, "C")
	s.Wait()
	before := c.Snapshot()

	provider.SetErr(&routing.ErrProviderFailure{Reason: "down"})
	changed, err := s.Optimize(context.Background())

	var pf *routing.ErrProviderFailure
	require.True(t, errors.As(err, &pf))
	assert.False(t, changed)
	assert.Equal(t, before, c.Snapshot())
}

func TestOptimizeSkipsShortItineraries(t *testing.T) {
	provider := testutil.NewMockProvider()
	c, s := setup(t, provider)

	mustAdd(t, c, 0, 0, "A")
	mustAdd(t, c, 1, 1, "B")
	s.Wait()
	provider.ResetCalls()

	changed, err := s.Optimize(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 0, provider.CallCount())
}
