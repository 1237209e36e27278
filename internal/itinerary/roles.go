package itinerary

import "waypoint-router/internal/models"

// ClassifyRoles assigns roles and orders to the sequence in place.
//
// The first and last stops are always EXTREMITY. Interior stops are PASSAGE
// unless they were created with a PAUSE or USER hint, which is kept only while
// the stop stays interior. The pass is total: it never depends on the roles
// the sequence held before, so running it twice yields the same result.
func ClassifyRoles(waypoints []models.Waypoint) {
	n := len(waypoints)
	for i := range waypoints {
		wp := &waypoints[i]
		wp.Order = i + 1

		switch {
		case i == 0 || i == n-1:
			wp.Role = models.RoleExtremity
		case wp.DeclaredRole.IsDeclarable():
			wp.Role = wp.DeclaredRole
		default:
			wp.Role = models.RolePassage
		}
	}
}
