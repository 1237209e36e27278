package handlers

import (
	"encoding/json"
	"log"
	"mime"
	"net/http"
	"strings"

	"waypoint-router/internal/export"
)

// HandleExport handles GET /api/v1/export
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	state := h.Sync.State()
	payload := export.GeneratePayload(state)

	filename := exportFilename(state.Name, ".json")
	log.Printf("[HTTP] GET /api/v1/export: waypoints=%d filename=%s", len(payload.Waypoints), filename)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	if err := export.WritePayload(w, payload); err != nil {
		log.Printf("[ERROR] Failed to write export: err=%v", err)
	}
}

// HandleExportGeoJSON handles GET /api/v1/export/geojson
func (h *Handler) HandleExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	state := h.Sync.State()
	fc := export.GeoJSON(state)

	body, err := json.Marshal(fc)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] GET /api/v1/export/geojson: features=%d", len(fc.Features))
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": exportFilename(state.Name, ".geojson"),
	}))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// HandleImport handles POST /api/v1/import.
// The current itinerary is replaced only if the whole payload is valid.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	payload, err := export.ParsePayload(r.Body)
	if err != nil {
		log.Printf("[HTTP] POST /api/v1/import: invalid_payload err=%v", err)
		h.handleValidationError(w, err.Error())
		return
	}

	if err := export.Restore(h.Itinerary, payload); err != nil {
		log.Printf("[HTTP] POST /api/v1/import: rejected err=%v", err)
		h.handleItineraryError(w, err)
		return
	}

	log.Printf("[HTTP] POST /api/v1/import: name=%q waypoints=%d", payload.Name, len(payload.Waypoints))
	h.writeItinerary(w, http.StatusOK)
}

// exportFilename derives a download name from the itinerary name
func exportFilename(name, ext string) string {
	base := strings.Join(strings.Fields(name), "_")
	if base == "" {
		base = "itinerary"
	}
	return base + ext
}
