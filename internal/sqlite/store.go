package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"waypoint-router/internal/database"

	_ "modernc.org/sqlite"
)

const (
	// DefaultDSN keeps the cache in memory for the lifetime of the process
	DefaultDSN    = "file:routecache?mode=memory&cache=shared"
	schemaVersion = 1
)

// Store is a SQLite-based data store implementing database.DataStore
type Store struct {
	db     *sql.DB
	dsn    string
	mu     sync.RWMutex
	closed bool

	routeCacheRepo database.RouteCacheRepository
}

// New opens a SQLite store. dsn is either a file path or a "file:" URI.
func New(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}

	if !isMemoryDSN(dsn) && !strings.HasPrefix(dsn, "file:") {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Printf("[CACHE] Opening SQLite database: dsn=%s", dsn)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps in-memory databases alive and serializes writers
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000", // 16MB cache
		"PRAGMA busy_timeout = 5000",
	}
	if !isMemoryDSN(dsn) {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:  db,
		dsn: dsn,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.routeCacheRepo = &routeCacheRepository{store: store}

	return store, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// DSN returns the data source name the store was opened with
func (s *Store) DSN() string {
	return s.dsn
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return s.createSchema()
	}

	if version < schemaVersion {
		_, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion)
		return err
	}

	return nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT OR IGNORE INTO schema_version (version) VALUES (1);

	CREATE TABLE IF NOT EXISTS route_cache (
		cache_key TEXT PRIMARY KEY,
		optimize INTEGER NOT NULL DEFAULT 0,
		geometry_json TEXT NOT NULL,
		distance_meters REAL NOT NULL,
		duration_secs REAL NOT NULL,
		waypoint_order_json TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_route_cache_created ON route_cache(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("[CACHE] SQLite schema initialized (version %d)", schemaVersion)
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.db == nil {
		return nil
	}
	s.closed = true

	if !isMemoryDSN(s.dsn) {
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return database.ErrClosed
	}
	return s.db.PingContext(ctx)
}

// RouteCache returns the route cache repository
func (s *Store) RouteCache() database.RouteCacheRepository { return s.routeCacheRepo }
