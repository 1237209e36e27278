package itinerary

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"unicode"

	"waypoint-router/internal/models"
)

// DefaultName is the display name of a fresh itinerary
const DefaultName = "Nouveau trajet"

// Snapshot is an atomic, caller-owned copy of the collection.
//
// Version increases on every change. Revision increases only on structural
// changes (anything that alters the sequence), and is what the route
// synchronizer uses as its generation.
type Snapshot struct {
	Version   uint64
	Revision  uint64
	Name      string
	Waypoints []models.Waypoint
}

// Listener is notified after every successful change
type Listener func(Snapshot)

// Entry describes a waypoint to create in bulk
type Entry struct {
	Lat   float64
	Lng   float64
	Label string
	Role  models.Role
}

// Collection is the ordered, uniquely identified set of stops of an itinerary.
// All mutations are synchronous and atomic with respect to readers.
type Collection struct {
	mu        sync.RWMutex
	ids       IDGenerator
	name      string
	waypoints []models.Waypoint
	version   uint64
	revision  uint64
	listeners []Listener
}

// NewCollection creates an empty collection. A nil generator falls back to UUIDs.
func NewCollection(ids IDGenerator, name string) *Collection {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	return &Collection{
		ids:       ids,
		name:      name,
		waypoints: []models.Waypoint{},
	}
}

// Subscribe registers a listener for future changes
func (c *Collection) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Add appends a stop at the end of the itinerary.
// hint may be empty; only PAUSE and USER hints survive renormalization.
func (c *Collection) Add(lat, lng float64, label string, hint models.Role) (models.Waypoint, error) {
	wp, err := c.newWaypoint(Entry{Lat: lat, Lng: lng, Label: label, Role: hint})
	if err != nil {
		return models.Waypoint{}, err
	}

	c.mu.Lock()
	c.waypoints = append(c.waypoints, wp)
	ClassifyRoles(c.waypoints)
	added := c.waypoints[len(c.waypoints)-1]
	snap := c.commitLocked(true)
	c.mu.Unlock()

	log.Printf("[ITINERARY] Added waypoint: id=%s order=%d role=%s lat=%.6f lng=%.6f", added.ID, added.Order, added.Role, added.Lat, added.Lng)
	c.notify(snap)
	return added, nil
}

// Remove deletes the stop with the given id. Unknown ids yield ErrNotFound and leave the collection untouched.
func (c *Collection) Remove(id string) error {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("remove %q: %w", id, ErrNotFound)
	}

	c.waypoints = append(c.waypoints[:idx], c.waypoints[idx+1:]...)
	ClassifyRoles(c.waypoints)
	snap := c.commitLocked(true)
	c.mu.Unlock()

	log.Printf("[ITINERARY] Removed waypoint: id=%s remaining=%d", id, len(snap.Waypoints))
	c.notify(snap)
	return nil
}

// Reorder moves the element at from so that it ends up at index to.
// It is a relocation, not a swap.
func (c *Collection) Reorder(from, to int) error {
	c.mu.Lock()
	n := len(c.waypoints)
	if from < 0 || from >= n || to < 0 || to >= n {
		c.mu.Unlock()
		return fmt.Errorf("reorder %d -> %d with %d waypoints: %w", from, to, n, ErrIndexOutOfRange)
	}
	if from == to {
		c.mu.Unlock()
		return nil
	}

	moved := c.waypoints[from]
	rest := append(c.waypoints[:from:from], c.waypoints[from+1:]...)
	reordered := make([]models.Waypoint, 0, n)
	reordered = append(reordered, rest[:to]...)
	reordered = append(reordered, moved)
	reordered = append(reordered, rest[to:]...)

	c.waypoints = reordered
	ClassifyRoles(c.waypoints)
	snap := c.commitLocked(true)
	c.mu.Unlock()

	log.Printf("[ITINERARY] Reordered waypoint: id=%s from=%d to=%d", moved.ID, from, to)
	c.notify(snap)
	return nil
}

// Permute applies an optimized order where order[i] is the new index of the
// element currently at index i. First and last stops must stay in place.
func (c *Collection) Permute(order []int) error {
	return c.permute(0, false, order)
}

// ApplyOrder is Permute guarded by the structural revision the order was
// computed for. It fails with ErrStaleRevision if the sequence changed since.
func (c *Collection) ApplyOrder(revision uint64, order []int) error {
	return c.permute(revision, true, order)
}

func (c *Collection) permute(revision uint64, guarded bool, order []int) error {
	c.mu.Lock()
	if guarded && c.revision != revision {
		current := c.revision
		c.mu.Unlock()
		return fmt.Errorf("order computed for revision %d, current is %d: %w", revision, current, ErrStaleRevision)
	}
	n := len(c.waypoints)
	if err := validatePermutation(order, n); err != nil {
		c.mu.Unlock()
		return err
	}

	identity := true
	permuted := make([]models.Waypoint, n)
	for i, target := range order {
		permuted[target] = c.waypoints[i]
		if target != i {
			identity = false
		}
	}
	if identity {
		c.mu.Unlock()
		return nil
	}

	c.waypoints = permuted
	ClassifyRoles(c.waypoints)
	snap := c.commitLocked(true)
	c.mu.Unlock()

	log.Printf("[ITINERARY] Applied optimized order: waypoints=%d", n)
	c.notify(snap)
	return nil
}

func validatePermutation(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("permutation of length %d for %d waypoints: %w", len(order), n, ErrInvalidPermutation)
	}
	seen := make([]bool, n)
	for _, target := range order {
		if target < 0 || target >= n || seen[target] {
			return fmt.Errorf("permutation %v: %w", order, ErrInvalidPermutation)
		}
		seen[target] = true
	}
	if n > 0 && (order[0] != 0 || order[n-1] != n-1) {
		return fmt.Errorf("permutation %v moves an endpoint: %w", order, ErrInvalidPermutation)
	}
	return nil
}

// Clear empties the collection. It always succeeds.
func (c *Collection) Clear() {
	c.mu.Lock()
	if len(c.waypoints) == 0 {
		c.mu.Unlock()
		return
	}
	c.waypoints = []models.Waypoint{}
	snap := c.commitLocked(true)
	c.mu.Unlock()

	log.Printf("[ITINERARY] Cleared waypoints")
	c.notify(snap)
}

// Replace atomically swaps the whole itinerary. Every entry is validated
// before anything changes.
func (c *Collection) Replace(name string, entries []Entry) error {
	name, err := sanitizeName(name)
	if err != nil {
		return err
	}

	waypoints := make([]models.Waypoint, 0, len(entries))
	for i, e := range entries {
		wp, err := c.newWaypoint(e)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i+1, err)
		}
		waypoints = append(waypoints, wp)
	}
	ClassifyRoles(waypoints)

	c.mu.Lock()
	c.name = name
	c.waypoints = waypoints
	snap := c.commitLocked(true)
	c.mu.Unlock()

	log.Printf("[ITINERARY] Replaced itinerary: name=%q waypoints=%d", name, len(waypoints))
	c.notify(snap)
	return nil
}

// SetName replaces the display name. Control characters are rejected.
func (c *Collection) SetName(name string) error {
	name, err := sanitizeName(name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.name == name {
		c.mu.Unlock()
		return nil
	}
	c.name = name
	snap := c.commitLocked(false)
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// Name returns the display name
func (c *Collection) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Len returns the number of stops
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.waypoints)
}

// Get returns a copy of the stop with the given id
func (c *Collection) Get(id string) (models.Waypoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := c.indexLocked(id)
	if idx < 0 {
		return models.Waypoint{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	return c.waypoints[idx], nil
}

// Waypoints returns a copy of the ordered stops
func (c *Collection) Waypoints() []models.Waypoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Waypoint{}, c.waypoints...)
}

// Snapshot returns an atomic copy of the collection
func (c *Collection) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Renormalize re-runs role classification. It does not count as a change.
func (c *Collection) Renormalize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	ClassifyRoles(c.waypoints)
}

func (c *Collection) newWaypoint(e Entry) (models.Waypoint, error) {
	if err := models.ValidateCoordinates(e.Lat, e.Lng); err != nil {
		return models.Waypoint{}, fmt.Errorf("%w: %v", ErrInvalidCoordinate, err)
	}

	label := strings.TrimSpace(e.Label)
	if strings.IndexFunc(label, unicode.IsControl) >= 0 {
		return models.Waypoint{}, fmt.Errorf("label %q contains control characters: %w", label, ErrInvalidLabel)
	}
	if label == "" {
		label = fmt.Sprintf("Point (%.4f, %.4f)", e.Lat, e.Lng)
	}

	switch e.Role {
	case "", models.RoleExtremity, models.RolePassage, models.RolePause, models.RoleUser:
	default:
		return models.Waypoint{}, fmt.Errorf("role %q: %w", e.Role, ErrInvalidRole)
	}

	wp := models.Waypoint{
		ID:    c.ids.NewID(),
		Lat:   e.Lat,
		Lng:   e.Lng,
		Label: label,
	}
	if e.Role.IsDeclarable() {
		wp.DeclaredRole = e.Role
	}
	return wp, nil
}

func sanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("name contains control characters: %w", ErrInvalidName)
	}
	return name, nil
}

func (c *Collection) indexLocked(id string) int {
	for i := range c.waypoints {
		if c.waypoints[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Collection) commitLocked(structural bool) Snapshot {
	c.version++
	if structural {
		c.revision++
	}
	return c.snapshotLocked()
}

func (c *Collection) snapshotLocked() Snapshot {
	return Snapshot{
		Version:   c.version,
		Revision:  c.revision,
		Name:      c.name,
		Waypoints: append([]models.Waypoint{}, c.waypoints...),
	}
}

func (c *Collection) notify(snap Snapshot) {
	c.mu.RLock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.RUnlock()

	for _, l := range listeners {
		l(snap)
	}
}
