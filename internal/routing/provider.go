package routing

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"waypoint-router/internal/models"
)

// RouteOptions tunes a route computation
type RouteOptions struct {
	// Optimize lets the provider reorder interior stops. Endpoints stay fixed.
	Optimize bool
}

// RouteResult is a computed route
type RouteResult struct {
	Geometry        []models.Coordinates `json:"geometry"`
	DistanceMeters  float64              `json:"distance_meters"`
	DurationSeconds float64              `json:"duration_seconds"`

	// WaypointOrder[i] is the position of input coordinate i in the optimized
	// trip. Only set when optimization was requested and applied.
	WaypointOrder []int `json:"waypoint_order,omitempty"`
}

// Provider computes a route geometry for an ordered list of coordinates.
// Implementations report every failure as an error, never a panic.
type Provider interface {
	ComputeRoute(ctx context.Context, coords []models.Coordinates, opts RouteOptions) (*RouteResult, error)
}

// ErrProviderFailure is returned when the routing provider cannot produce a route
type ErrProviderFailure struct {
	StatusCode int
	Reason     string
}

func (e *ErrProviderFailure) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("routing provider failed: HTTP %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("routing provider failed: %s", e.Reason)
}

// StraightLine returns the fallback geometry connecting coords in order
func StraightLine(coords []models.Coordinates) []models.Coordinates {
	return append([]models.Coordinates{}, coords...)
}

// CoordinatesOf projects waypoints onto their coordinates, preserving order
func CoordinatesOf(waypoints []models.Waypoint) []models.Coordinates {
	return lo.Map(waypoints, func(wp models.Waypoint, _ int) models.Coordinates {
		return wp.GetCoords()
	})
}
