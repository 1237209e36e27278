package testutil

import (
	"context"
	"sync"

	"waypoint-router/internal/models"
)

// MockRouteCache is an in-memory implementation of RouteCacheRepository for testing
type MockRouteCache struct {
	mu      sync.Mutex
	entries map[string]*models.RouteCacheEntry
	Err     error
}

func NewMockRouteCache() *MockRouteCache {
	return &MockRouteCache{
		entries: make(map[string]*models.RouteCacheEntry),
	}
}

func (c *MockRouteCache) Get(ctx context.Context, key string) (*models.RouteCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if entry, ok := c.entries[key]; ok {
		return entry, nil
	}
	return nil, nil
}

func (c *MockRouteCache) Set(ctx context.Context, entry *models.RouteCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.entries[entry.Key] = entry
	return nil
}

func (c *MockRouteCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.RouteCacheEntry)
	return nil
}

func (c *MockRouteCache) Count(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), nil
}
