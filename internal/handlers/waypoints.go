package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"waypoint-router/internal/models"
)

var validate = validator.New()

// AddWaypointRequest is the body of POST /api/v1/waypoints
type AddWaypointRequest struct {
	Lat   *float64 `json:"lat" validate:"required"`
	Lng   *float64 `json:"lng" validate:"required"`
	Label string   `json:"label" validate:"max=500"`
	Role  string   `json:"role"`
}

// ReorderRequest is the body of POST /api/v1/waypoints/reorder
type ReorderRequest struct {
	FromIndex *int `json:"from_index" validate:"required"`
	ToIndex   *int `json:"to_index" validate:"required"`
}

// SearchWaypointRequest is the body of POST /api/v1/waypoints/search
type SearchWaypointRequest struct {
	Query string `json:"query" validate:"required,max=500"`
	Label string `json:"label" validate:"max=500"`
	Role  string `json:"role"`
}

// WaypointResponse is returned when a stop is created
type WaypointResponse struct {
	Waypoint  models.Waypoint   `json:"waypoint"`
	Itinerary ItineraryResponse `json:"itinerary"`
}

// HandleAddWaypoint handles POST /api/v1/waypoints
func (h *Handler) HandleAddWaypoint(w http.ResponseWriter, r *http.Request) {
	var req AddWaypointRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		log.Printf("[HTTP] POST /api/v1/waypoints: invalid_body err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		log.Printf("[HTTP] POST /api/v1/waypoints: missing_fields err=%v", err)
		h.handleValidationError(w, "lat and lng are required")
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		h.handleValidationError(w, err.Error())
		return
	}

	wp, err := h.Itinerary.Add(*req.Lat, *req.Lng, req.Label, role)
	if err != nil {
		log.Printf("[HTTP] POST /api/v1/waypoints: rejected lat=%v lng=%v err=%v", *req.Lat, *req.Lng, err)
		h.handleItineraryError(w, err)
		return
	}

	log.Printf("[HTTP] POST /api/v1/waypoints: id=%s order=%d", wp.ID, wp.Order)
	h.writeJSON(w, http.StatusCreated, WaypointResponse{
		Waypoint:  wp,
		Itinerary: newItineraryResponse(h.Sync.State()),
	})
}

// HandleClearWaypoints handles DELETE /api/v1/waypoints
func (h *Handler) HandleClearWaypoints(w http.ResponseWriter, r *http.Request) {
	log.Printf("[HTTP] DELETE /api/v1/waypoints")
	h.Itinerary.Clear()
	h.writeItinerary(w, http.StatusOK)
}

// HandleDeleteWaypoint handles DELETE /api/v1/waypoints/{id}
func (h *Handler) HandleDeleteWaypoint(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.handleValidationError(w, "Invalid waypoint ID")
		return
	}

	log.Printf("[HTTP] DELETE /api/v1/waypoints/{id}: id=%s", id)
	if err := h.Itinerary.Remove(id); err != nil {
		log.Printf("[HTTP] Waypoint not removed: id=%s err=%v", id, err)
		h.handleItineraryError(w, err)
		return
	}

	h.writeItinerary(w, http.StatusOK)
}

// HandleReorderWaypoints handles POST /api/v1/waypoints/reorder
func (h *Handler) HandleReorderWaypoints(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		log.Printf("[HTTP] POST /api/v1/waypoints/reorder: invalid_body err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		h.handleValidationError(w, "from_index and to_index are required")
		return
	}

	log.Printf("[HTTP] POST /api/v1/waypoints/reorder: from=%d to=%d", *req.FromIndex, *req.ToIndex)
	if err := h.Itinerary.Reorder(*req.FromIndex, *req.ToIndex); err != nil {
		h.handleItineraryError(w, err)
		return
	}

	h.writeItinerary(w, http.StatusOK)
}

// HandleSearchWaypoint handles POST /api/v1/waypoints/search.
// The best geocoding match is appended to the itinerary.
func (h *Handler) HandleSearchWaypoint(w http.ResponseWriter, r *http.Request) {
	var req SearchWaypointRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		log.Printf("[HTTP] POST /api/v1/waypoints/search: invalid_body err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if err := validate.Struct(req); err != nil {
		h.handleValidationError(w, "query is required")
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		h.handleValidationError(w, err.Error())
		return
	}

	log.Printf("[HTTP] POST /api/v1/waypoints/search: query=%s", req.Query)
	result, err := h.Geocoder.Geocode(r.Context(), req.Query)
	if err != nil {
		log.Printf("[ERROR] Failed to geocode waypoint: query=%s err=%v", req.Query, err)
		h.handleGeocodingError(w, err)
		return
	}

	label := req.Label
	if strings.TrimSpace(label) == "" {
		label = result.DisplayName
	}

	wp, err := h.Itinerary.Add(result.Coords.Lat, result.Coords.Lng, label, role)
	if err != nil {
		h.handleItineraryError(w, err)
		return
	}

	log.Printf("[HTTP] POST /api/v1/waypoints/search: id=%s lat=%.6f lng=%.6f", wp.ID, wp.Lat, wp.Lng)
	h.writeJSON(w, http.StatusCreated, WaypointResponse{
		Waypoint:  wp,
		Itinerary: newItineraryResponse(h.Sync.State()),
	})
}
