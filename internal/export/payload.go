package export

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"waypoint-router/internal/itinerary"
	"waypoint-router/internal/models"
)

// MaxPayloadBytes bounds the size of an imported payload
const MaxPayloadBytes = 1 << 20

var validate = validator.New()

// GeneratePayload projects the route state onto the interchange format
func GeneratePayload(state models.RouteState) models.Payload {
	return models.Payload{
		Name: state.Name,
		Waypoints: lo.Map(state.Waypoints, func(wp models.Waypoint, _ int) models.PayloadWaypoint {
			return models.PayloadWaypoint{
				Lat:   wp.Lat,
				Lng:   wp.Lng,
				Label: wp.Label,
				Order: wp.Order,
				Role:  wp.Role,
			}
		}),
	}
}

// WritePayload encodes the payload as indented UTF-8 JSON
func WritePayload(w io.Writer, payload models.Payload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	return nil
}

// ParsePayload decodes and validates a payload
func ParsePayload(r io.Reader) (models.Payload, error) {
	var payload models.Payload

	dec := json.NewDecoder(io.LimitReader(r, MaxPayloadBytes))
	if err := dec.Decode(&payload); err != nil {
		return models.Payload{}, fmt.Errorf("failed to decode payload: %w", err)
	}
	if err := validate.Struct(payload); err != nil {
		return models.Payload{}, fmt.Errorf("invalid payload: %w", err)
	}

	return payload, nil
}

// Restore replaces the contents of the collection with the payload.
// Entries are applied in ascending order; only PAUSE and USER roles are kept
// as hints since the others are derived from position.
func Restore(c *itinerary.Collection, payload models.Payload) error {
	waypoints := append([]models.PayloadWaypoint(nil), payload.Waypoints...)
	sort.SliceStable(waypoints, func(i, j int) bool {
		return waypoints[i].Order < waypoints[j].Order
	})

	entries := lo.Map(waypoints, func(wp models.PayloadWaypoint, _ int) itinerary.Entry {
		return itinerary.Entry{
			Lat:   wp.Lat,
			Lng:   wp.Lng,
			Label: wp.Label,
			Role:  wp.Role,
		}
	})

	if err := c.Replace(payload.Name, entries); err != nil {
		return fmt.Errorf("failed to restore itinerary: %w", err)
	}

	log.Printf("[ITINERARY] Restored itinerary: name=%q waypoints=%d", payload.Name, len(entries))
	return nil
}
