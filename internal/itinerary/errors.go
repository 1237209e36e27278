package itinerary

import "errors"

var (
	// ErrInvalidCoordinate is returned when lat/lng are not finite or out of range
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrIndexOutOfRange is returned when a reorder index is outside [0, N-1]
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNotFound is returned when a waypoint id does not exist. Callers may ignore it.
	ErrNotFound = errors.New("waypoint not found")

	ErrInvalidLabel       = errors.New("invalid label")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidPermutation = errors.New("invalid permutation")

	// ErrStaleRevision is returned when an optimized order no longer matches the sequence
	ErrStaleRevision = errors.New("itinerary changed")
)
