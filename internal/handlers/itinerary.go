package handlers

import (
	"log"
	"net/http"

	"waypoint-router/internal/export"
	"waypoint-router/internal/models"
)

// RouteStats is the human-readable summary of the current route
type RouteStats struct {
	Waypoints int    `json:"waypoints"`
	Distance  string `json:"distance,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// ItineraryResponse is the route state plus its formatted statistics
type ItineraryResponse struct {
	models.RouteState
	Stats RouteStats `json:"stats"`
}

func newItineraryResponse(state models.RouteState) ItineraryResponse {
	stats := RouteStats{Waypoints: len(state.Waypoints)}
	if state.DistanceMeters != nil && state.DurationSeconds != nil {
		stats.Distance = export.FormatDistance(*state.DistanceMeters)
		stats.Duration = export.FormatDuration(*state.DurationSeconds)
	}
	return ItineraryResponse{RouteState: state, Stats: stats}
}

// writeItinerary responds with the current route state
func (h *Handler) writeItinerary(w http.ResponseWriter, status int) {
	h.writeJSON(w, status, newItineraryResponse(h.Sync.State()))
}

// HandleGetItinerary handles GET /api/v1/itinerary
func (h *Handler) HandleGetItinerary(w http.ResponseWriter, r *http.Request) {
	h.writeItinerary(w, http.StatusOK)
}

// HandleSetName handles PUT /api/v1/itinerary/name
func (h *Handler) HandleSetName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := h.decodeJSON(w, r, &req); err != nil {
		log.Printf("[HTTP] PUT /api/v1/itinerary/name: invalid_body err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}

	if err := h.Itinerary.SetName(req.Name); err != nil {
		log.Printf("[HTTP] PUT /api/v1/itinerary/name: rejected err=%v", err)
		h.handleItineraryError(w, err)
		return
	}

	log.Printf("[HTTP] PUT /api/v1/itinerary/name: name=%q", h.Itinerary.Name())
	h.writeItinerary(w, http.StatusOK)
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	cacheStatus := "disabled"

	if h.Store != nil {
		cacheStatus = "connected"
		if err := h.Store.HealthCheck(r.Context()); err != nil {
			log.Printf("[ERROR] Route cache health check failed: err=%v", err)
			status = "degraded"
			cacheStatus = "error"
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":      status,
		"version":     "1.0.0",
		"route_cache": cacheStatus,
	})
}
