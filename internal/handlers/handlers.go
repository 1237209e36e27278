package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"waypoint-router/internal/database"
	"waypoint-router/internal/geocoding"
	"waypoint-router/internal/itinerary"
	"waypoint-router/internal/routesync"
	"waypoint-router/internal/routing"
)

// maxBodyBytes bounds JSON request bodies other than imports
const maxBodyBytes = 64 << 10

// Handler provides common handler utilities and dependencies
type Handler struct {
	Store     database.DataStore // nil when the route cache is disabled
	Geocoder  geocoding.Geocoder
	Itinerary *itinerary.Collection
	Sync      *routesync.Synchronizer
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[ERROR] Failed to encode response: err=%v", err)
	}
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details any) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// decodeJSON reads a bounded JSON body into dst
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleGeocodingError handles 422 errors for geocoding failures
func (h *Handler) handleGeocodingError(w http.ResponseWriter, err error) {
	var gerr *geocoding.ErrGeocodingFailed
	if errors.As(err, &gerr) {
		h.writeError(w, http.StatusUnprocessableEntity, "GEOCODING_FAILED", gerr.Reason, map[string]string{
			"address": gerr.Address,
		})
		return
	}
	h.writeError(w, http.StatusUnprocessableEntity, "GEOCODING_FAILED", err.Error(), nil)
}

// handleRoutingError handles 422 errors for routing failures
func (h *Handler) handleRoutingError(w http.ResponseWriter, err error) {
	var perr *routing.ErrProviderFailure
	if errors.As(err, &perr) {
		var details map[string]int
		if perr.StatusCode != 0 {
			details = map[string]int{"status_code": perr.StatusCode}
		}
		h.writeError(w, http.StatusUnprocessableEntity, "ROUTING_FAILED", perr.Reason, details)
		return
	}
	h.writeError(w, http.StatusUnprocessableEntity, "ROUTING_FAILED", err.Error(), nil)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	log.Printf("[ERROR] Internal error: %v", err)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// handleItineraryError maps collection errors onto API errors
func (h *Handler) handleItineraryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, itinerary.ErrInvalidCoordinate):
		h.writeError(w, http.StatusBadRequest, "INVALID_COORDINATE", err.Error(), nil)
	case errors.Is(err, itinerary.ErrIndexOutOfRange):
		h.writeError(w, http.StatusBadRequest, "INDEX_OUT_OF_RANGE", err.Error(), nil)
	case errors.Is(err, itinerary.ErrNotFound):
		h.handleNotFound(w, err.Error())
	case errors.Is(err, itinerary.ErrStaleRevision):
		h.writeError(w, http.StatusConflict, "CONFLICT", "The itinerary changed during the request", nil)
	case errors.Is(err, itinerary.ErrInvalidLabel),
		errors.Is(err, itinerary.ErrInvalidName),
		errors.Is(err, itinerary.ErrInvalidRole),
		errors.Is(err, itinerary.ErrInvalidPermutation):
		h.handleValidationError(w, err.Error())
	default:
		h.handleInternalError(w, err)
	}
}
