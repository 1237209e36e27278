package handlers

import (
	"log"
	"net/http"
	"strings"
	"unicode/utf8"

	"waypoint-router/internal/geocoding"
)

// minSearchLength is the shortest query forwarded to the geocoder
const minSearchLength = 3

// HandleAddressSearch handles GET /api/v1/address-search
func (h *Handler) HandleAddressSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("address"))
	log.Printf("[HTTP] GET /api/v1/address-search: query=%s", query)

	if utf8.RuneCountInString(query) < minSearchLength {
		h.writeJSON(w, http.StatusOK, []geocoding.GeocodingResult{})
		return
	}

	results, err := h.Geocoder.Search(r.Context(), query, 5)
	if err != nil {
		// Suggestions are best effort
		log.Printf("[ERROR] Failed to search addresses: query=%s err=%v", query, err)
		h.writeJSON(w, http.StatusOK, []geocoding.GeocodingResult{})
		return
	}

	log.Printf("[HTTP] GET /api/v1/address-search: query=%s results_count=%d", query, len(results))
	h.writeJSON(w, http.StatusOK, results)
}
