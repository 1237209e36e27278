package routing

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"waypoint-router/internal/database"
	"waypoint-router/internal/logging"
	"waypoint-router/internal/models"
)

// CachedProvider decorates a Provider with a persistent route cache.
// Identical concurrent requests share a single upstream call.
//
// Cache failures are logged and never fail a route computation.
type CachedProvider struct {
	inner   Provider
	cache   database.RouteCacheRepository
	profile string
	group   singleflight.Group
}

// NewCachedProvider wraps inner. profile is part of the cache key so that
// switching OSRM profiles never serves stale geometry.
func NewCachedProvider(inner Provider, cache database.RouteCacheRepository, profile string) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		cache:   cache,
		profile: profile,
	}
}

// CacheKey builds the cache key for a request from rounded coordinates
func CacheKey(profile string, coords []models.Coordinates, opts RouteOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|optimize=%t|", profile, opts.Optimize)
	for i, c := range coords {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%.5f,%.5f", models.RoundCoordinate(c.Lat), models.RoundCoordinate(c.Lng))
	}
	return b.String()
}

func (p *CachedProvider) ComputeRoute(ctx context.Context, coords []models.Coordinates, opts RouteOptions) (_ *RouteResult, err error) {
	defer logging.Time(ctx, "routing.ComputeRoute")(&err)

	key := CacheKey(p.profile, coords, opts)

	v, err, shared := p.group.Do(key, func() (any, error) {
		if entry, err := p.cache.Get(ctx, key); err != nil {
			log.Printf("[CACHE] Route cache read failed: err=%v", err)
		} else if entry != nil {
			logging.Debugf("[CACHE] Route cache hit: waypoints=%d", len(coords))
			return resultFromEntry(entry), nil
		}

		result, err := p.inner.ComputeRoute(ctx, coords, opts)
		if err != nil {
			return nil, err
		}

		entry := &models.RouteCacheEntry{
			Key:            key,
			Optimize:       opts.Optimize,
			Geometry:       result.Geometry,
			DistanceMeters: result.DistanceMeters,
			DurationSecs:   result.DurationSeconds,
			WaypointOrder:  result.WaypointOrder,
			CreatedAt:      time.Now().UTC(),
		}
		if err := p.cache.Set(ctx, entry); err != nil {
			log.Printf("[CACHE] Route cache write failed: err=%v", err)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.Debugf("[CACHE] Shared in-flight route request: waypoints=%d", len(coords))
	}

	return cloneResult(v.(*RouteResult)), nil
}

func resultFromEntry(entry *models.RouteCacheEntry) *RouteResult {
	return &RouteResult{
		Geometry:        entry.Geometry,
		DistanceMeters:  entry.DistanceMeters,
		DurationSeconds: entry.DurationSecs,
		WaypointOrder:   entry.WaypointOrder,
	}
}

// cloneResult gives every caller its own slices since singleflight shares results
func cloneResult(r *RouteResult) *RouteResult {
	out := *r
	out.Geometry = append([]models.Coordinates(nil), r.Geometry...)
	if r.WaypointOrder != nil {
		out.WaypointOrder = append([]int(nil), r.WaypointOrder...)
	}
	return &out
}
