package export

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"waypoint-router/internal/models"
)

// GeoJSON renders the route state as a FeatureCollection: one LineString for
// the route (when there is one) followed by one Point per waypoint.
func GeoJSON(state models.RouteState) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if len(state.Geometry) >= 2 {
		line := make(orb.LineString, len(state.Geometry))
		for i, c := range state.Geometry {
			line[i] = orb.Point{c.Lng, c.Lat}
		}

		f := geojson.NewFeature(line)
		f.Properties["name"] = state.Name
		f.Properties["status"] = string(state.Status)
		if state.DistanceMeters != nil && state.DurationSeconds != nil {
			f.Properties["distance_meters"] = *state.DistanceMeters
			f.Properties["duration_seconds"] = *state.DurationSeconds
			f.Properties["distance"] = FormatDistance(*state.DistanceMeters)
			f.Properties["duration"] = FormatDuration(*state.DurationSeconds)
		}
		fc.Append(f)
	}

	for _, wp := range state.Waypoints {
		f := geojson.NewFeature(orb.Point{wp.Lng, wp.Lat})
		f.ID = wp.ID
		f.Properties["label"] = wp.Label
		f.Properties["order"] = wp.Order
		f.Properties["role"] = string(wp.Role)
		f.Properties["marker-color"] = wp.Role.Color()
		fc.Append(f)
	}

	return fc
}
