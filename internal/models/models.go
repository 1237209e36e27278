package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Role is the semantic classification of a waypoint
type Role string

const (
	RoleExtremity Role = "EXTREMITY" // first or last stop of the itinerary
	RolePassage   Role = "PASSAGE"   // plain interior stop
	RolePause     Role = "PAUSE"     // interior stop declared as a break
	RoleUser      Role = "USER"      // interior stop declared by the user
)

var roleColors = map[Role]string{
	RolePause:     "#3b82f6",
	RolePassage:   "#10b981",
	RoleExtremity: "#ef4444",
	RoleUser:      "#f59e0b",
}

// ParseRole converts free text into a Role. An empty string yields an empty Role.
func ParseRole(s string) (Role, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	r := Role(s)
	if _, ok := roleColors[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// IsDeclarable reports whether the role survives renormalization on interior stops
func (r Role) IsDeclarable() bool {
	return r == RolePause || r == RoleUser
}

// Color returns the marker colour renderers use for the role
func (r Role) Color() string {
	return roleColors[r]
}

// Waypoint is a single stop in the itinerary
type Waypoint struct {
	ID    string  `json:"id"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
	Order int     `json:"order"`
	Role  Role    `json:"role"`

	// DeclaredRole is the PAUSE or USER hint supplied at creation, if any
	DeclaredRole Role `json:"-"`
}

// GetCoords returns the coordinates of the waypoint
func (w *Waypoint) GetCoords() Coordinates {
	return Coordinates{Lat: w.Lat, Lng: w.Lng}
}

// SyncStatus is the state of the route synchronizer for the current generation
type SyncStatus string

const (
	SyncIdle     SyncStatus = "IDLE"
	SyncPending  SyncStatus = "PENDING"
	SyncSettled  SyncStatus = "SETTLED"
	SyncFallback SyncStatus = "FALLBACK"
)

// RouteState is the observable snapshot of the itinerary and its derived route.
// DistanceMeters and DurationSeconds are either both nil or both set.
type RouteState struct {
	Name            string        `json:"name"`
	Waypoints       []Waypoint    `json:"waypoints"`
	Geometry        []Coordinates `json:"geometry"`
	DistanceMeters  *float64      `json:"distance_meters"`
	DurationSeconds *float64      `json:"duration_seconds"`
	Status          SyncStatus    `json:"status"`
	Generation      uint64        `json:"generation"`
}

// Clone returns a deep copy of the state
func (s RouteState) Clone() RouteState {
	out := s
	out.Waypoints = append([]Waypoint(nil), s.Waypoints...)
	out.Geometry = append([]Coordinates(nil), s.Geometry...)
	if s.DistanceMeters != nil {
		d := *s.DistanceMeters
		out.DistanceMeters = &d
	}
	if s.DurationSeconds != nil {
		d := *s.DurationSeconds
		out.DurationSeconds = &d
	}
	return out
}

// Payload is the interchange format of an itinerary
type Payload struct {
	Name      string            `json:"name"`
	Waypoints []PayloadWaypoint `json:"waypoints" validate:"dive"`
}

// PayloadWaypoint is one stop of an exported itinerary
type PayloadWaypoint struct {
	Lat   float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng   float64 `json:"lng" validate:"gte=-180,lte=180"`
	Label string  `json:"label" validate:"max=500"`
	Order int     `json:"order" validate:"gte=0"`
	Role  Role    `json:"role" validate:"omitempty,oneof=EXTREMITY PASSAGE PAUSE USER"`
}

// RouteCacheEntry is a cached route computation keyed by its rounded inputs
type RouteCacheEntry struct {
	Key            string
	Optimize       bool
	Geometry       []Coordinates
	DistanceMeters float64
	DurationSecs   float64
	WaypointOrder  []int
	CreatedAt      time.Time
}

// ValidateCoordinates checks that lat/lng are finite and within geographic bounds
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v outside [-90, 90]", lat)
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v outside [-180, 180]", lng)
	}
	return nil
}

// RoundCoordinate rounds to 5 decimal places (~1m precision)
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}
