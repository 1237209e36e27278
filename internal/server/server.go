package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"waypoint-router/internal/config"
	"waypoint-router/internal/database"
	"waypoint-router/internal/geocoding"
	"waypoint-router/internal/handlers"
	"waypoint-router/internal/itinerary"
	"waypoint-router/internal/logging"
	"waypoint-router/internal/routesync"
	"waypoint-router/internal/routing"
	"waypoint-router/internal/sqlite"
)

// RequestIDHeader carries the correlation id of a request
const RequestIDHeader = "X-Request-ID"

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	store      database.DataStore
	sync       *routesync.Synchronizer
	listener   net.Listener
	addr       string
}

// New creates and initializes a new server (does not start it)
func New(cfg *config.Config) (*Server, error) {
	var store database.DataStore
	var provider routing.Provider = routing.NewOSRMProvider(routing.OSRMConfig{
		BaseURL:     cfg.OSRM.BaseURL,
		Profile:     cfg.OSRM.Profile,
		Timeout:     cfg.OSRM.Timeout,
		MaxAttempts: cfg.OSRM.MaxAttempts,
	})

	if cfg.Cache.Enabled {
		log.Printf("Initializing route cache...")
		sqliteStore, err := sqlite.New(cfg.Cache.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize route cache: %w", err)
		}
		store = sqliteStore
		provider = routing.NewCachedProvider(provider, store.RouteCache(), cfg.OSRM.Profile)
	}

	geocoder, err := geocoding.NewNominatimGeocoder(geocoding.Config{
		BaseURL:   cfg.Nominatim.BaseURL,
		UserAgent: cfg.Nominatim.UserAgent,
		CacheSize: cfg.Nominatim.CacheSize,
	})
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("failed to initialize geocoder: %w", err)
	}

	collection := itinerary.NewCollection(itinerary.UUIDGenerator{}, cfg.Itinerary.DefaultName)
	synchronizer := routesync.New(collection, provider, routesync.Config{
		Timeout: cfg.Itinerary.SyncTimeout,
	})

	handler := &handlers.Handler{
		Store:     store,
		Geocoder:  geocoder,
		Itinerary: collection,
		Sync:      synchronizer,
	}

	mux := setupRoutes(handler)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      requestIDMiddleware(loggingMiddleware(corsMiddleware(mux))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		store:      store,
		sync:       synchronizer,
		addr:       cfg.Server.Addr,
	}, nil
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown stops accepting requests, abandons in-flight routing and closes the route cache
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.sync.Close()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", handler.HandleHealthCheck)

	mux.HandleFunc("GET /api/v1/itinerary", handler.HandleGetItinerary)
	mux.HandleFunc("PUT /api/v1/itinerary/name", handler.HandleSetName)

	mux.HandleFunc("POST /api/v1/waypoints", handler.HandleAddWaypoint)
	mux.HandleFunc("DELETE /api/v1/waypoints", handler.HandleClearWaypoints)
	mux.HandleFunc("DELETE /api/v1/waypoints/{id}", handler.HandleDeleteWaypoint)
	mux.HandleFunc("POST /api/v1/waypoints/reorder", handler.HandleReorderWaypoints)
	mux.HandleFunc("POST /api/v1/waypoints/search", handler.HandleSearchWaypoint)

	mux.HandleFunc("GET /api/v1/address-search", handler.HandleAddressSearch)

	mux.HandleFunc("POST /api/v1/route/optimize", handler.HandleOptimizeRoute)

	mux.HandleFunc("GET /api/v1/export", handler.HandleExport)
	mux.HandleFunc("GET /api/v1/export/geojson", handler.HandleExportGeoJSON)
	mux.HandleFunc("POST /api/v1/import", handler.HandleImport)

	return mux
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		duration := time.Since(start)
		log.Printf("%s %s %d %v req_id=%s", r.Method, r.URL.Path, lrw.statusCode, duration, logging.RequestID(r.Context()))
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only local front-ends may call the API
		if origin == "" ||
			strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
			w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, "+RequestIDHeader)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
