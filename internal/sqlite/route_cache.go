package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"waypoint-router/internal/database"
	"waypoint-router/internal/models"
)

type routeCacheRepository struct {
	store *Store
}

func (r *routeCacheRepository) Get(ctx context.Context, key string) (*models.RouteCacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if r.store.closed {
		return nil, database.ErrClosed
	}

	query := `SELECT cache_key, optimize, geometry_json, distance_meters, duration_secs, waypoint_order_json, created_at
	          FROM route_cache
	          WHERE cache_key = ?`

	var (
		entry        models.RouteCacheEntry
		geometryJSON string
		orderJSON    sql.NullString
	)
	err := r.store.db.QueryRowContext(ctx, query, key).Scan(
		&entry.Key, &entry.Optimize, &geometryJSON,
		&entry.DistanceMeters, &entry.DurationSecs,
		&orderJSON, &entry.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get route cache entry: %w", err)
	}

	if err := json.Unmarshal([]byte(geometryJSON), &entry.Geometry); err != nil {
		return nil, fmt.Errorf("failed to decode cached geometry: %w", err)
	}
	if orderJSON.Valid && orderJSON.String != "" {
		if err := json.Unmarshal([]byte(orderJSON.String), &entry.WaypointOrder); err != nil {
			return nil, fmt.Errorf("failed to decode cached waypoint order: %w", err)
		}
	}

	return &entry, nil
}

func (r *routeCacheRepository) Set(ctx context.Context, entry *models.RouteCacheEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.closed {
		return database.ErrClosed
	}

	geometryJSON, err := json.Marshal(entry.Geometry)
	if err != nil {
		return fmt.Errorf("failed to encode geometry: %w", err)
	}

	var orderJSON sql.NullString
	if len(entry.WaypointOrder) > 0 {
		b, err := json.Marshal(entry.WaypointOrder)
		if err != nil {
			return fmt.Errorf("failed to encode waypoint order: %w", err)
		}
		orderJSON = sql.NullString{String: string(b), Valid: true}
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `INSERT OR REPLACE INTO route_cache
	          (cache_key, optimize, geometry_json, distance_meters, duration_secs, waypoint_order_json, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = r.store.db.ExecContext(ctx, query,
		entry.Key, entry.Optimize, string(geometryJSON),
		entry.DistanceMeters, entry.DurationSecs,
		orderJSON, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set route cache entry: %w", err)
	}

	return nil
}

func (r *routeCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.closed {
		return database.ErrClosed
	}

	_, err := r.store.db.ExecContext(ctx, "DELETE FROM route_cache")
	if err != nil {
		return fmt.Errorf("failed to clear route cache: %w", err)
	}

	return nil
}

func (r *routeCacheRepository) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if r.store.closed {
		return 0, database.ErrClosed
	}

	var n int
	if err := r.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM route_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count route cache entries: %w", err)
	}
	return n, nil
}
