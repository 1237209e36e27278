package sqlite

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-router/internal/database"
	"waypoint-router/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	store, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewStore(t *testing.T) {
	store := setupTestStore(t)
	assert.NotNil(t, store.RouteCache())
	assert.Contains(t, store.DSN(), "mode=memory")
}

func TestHealthCheck(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestHealthCheckAfterClose(t *testing.T) {
	store, err := New("file:closed?mode=memory&cache=shared")
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.HealthCheck(context.Background()), database.ErrClosed)
	_, err = store.RouteCache().Get(context.Background(), "k")
	assert.ErrorIs(t, err, database.ErrClosed)
}

func TestRouteCacheMiss(t *testing.T) {
	store := setupTestStore(t)

	entry, err := store.RouteCache().Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRouteCacheSetAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	cache := store.RouteCache()

	err := cache.Set(ctx, &models.RouteCacheEntry{
		Key:            "route-1",
		Optimize:       true,
		Geometry:       []models.Coordinates{{Lat: 47.2, Lng: -1.5}, {Lat: 47.3, Lng: -1.4}},
		DistanceMeters: 12000,
		DurationSecs:   900,
		WaypointOrder:  []int{0, 2, 1, 3},
	})
	require.NoError(t, err)

	entry, err := cache.Get(ctx, "route-1")
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.True(t, entry.Optimize)
	assert.Equal(t, []models.Coordinates{{Lat: 47.2, Lng: -1.5}, {Lat: 47.3, Lng: -1.4}}, entry.Geometry)
	assert.Equal(t, 12000.0, entry.DistanceMeters)
	assert.Equal(t, 900.0, entry.DurationSecs)
	assert.Equal(t, []int{0, 2, 1, 3}, entry.WaypointOrder)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestRouteCacheWithoutOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RouteCache().Set(ctx, &models.RouteCacheEntry{
		Key:      "plain",
		Geometry: []models.Coordinates{{Lat: 1, Lng: 2}},
	}))

	entry, err := store.RouteCache().Get(ctx, "plain")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Nil(t, entry.WaypointOrder)
	assert.False(t, entry.Optimize)
}

func TestRouteCacheReplaceAndClear(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	cache := store.RouteCache()

	require.NoError(t, cache.Set(ctx, &models.RouteCacheEntry{Key: "a", Geometry: []models.Coordinates{}, DistanceMeters: 1}))
	require.NoError(t, cache.Set(ctx, &models.RouteCacheEntry{Key: "a", Geometry: []models.Coordinates{}, DistanceMeters: 2}))
	require.NoError(t, cache.Set(ctx, &models.RouteCacheEntry{Key: "b", Geometry: []models.Coordinates{}}))

	n, err := cache.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entry, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2.0, entry.DistanceMeters)

	require.NoError(t, cache.Clear(ctx))
	n, err = cache.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
