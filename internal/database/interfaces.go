package database

import (
	"context"

	"waypoint-router/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	RouteCache() RouteCacheRepository
}

// RouteCacheRepository handles route cache persistence.
// Get returns nil, nil on a miss.
type RouteCacheRepository interface {
	Get(ctx context.Context, key string) (*models.RouteCacheEntry, error)
	Set(ctx context.Context, entry *models.RouteCacheEntry) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}
