package handlers

import (
	"errors"
	"log"
	"net/http"

	"waypoint-router/internal/itinerary"
)

// OptimizeResponse reports the outcome of an optimization request
type OptimizeResponse struct {
	Changed   bool              `json:"changed"`
	Itinerary ItineraryResponse `json:"itinerary"`
}

// HandleOptimizeRoute handles POST /api/v1/route/optimize.
// The interior stops are reordered by the routing provider; endpoints stay fixed.
func (h *Handler) HandleOptimizeRoute(w http.ResponseWriter, r *http.Request) {
	log.Printf("[HTTP] POST /api/v1/route/optimize: waypoints=%d", h.Itinerary.Len())

	changed, err := h.Sync.Optimize(r.Context())
	if err != nil {
		log.Printf("[ERROR] Failed to optimize route: err=%v", err)
		if errors.Is(err, itinerary.ErrStaleRevision) {
			h.handleItineraryError(w, err)
			return
		}
		h.handleRoutingError(w, err)
		return
	}

	log.Printf("[HTTP] POST /api/v1/route/optimize: changed=%t", changed)
	h.writeJSON(w, http.StatusOK, OptimizeResponse{
		Changed:   changed,
		Itinerary: newItineraryResponse(h.Sync.State()),
	})
}
