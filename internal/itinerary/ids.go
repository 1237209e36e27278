package itinerary

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces unique, never reused waypoint identifiers
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random v4 UUIDs
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// SequentialGenerator issues "<prefix><n>" ids starting at 1. Safe for concurrent use.
type SequentialGenerator struct {
	Prefix string
	next   atomic.Uint64
}

func (g *SequentialGenerator) NewID() string {
	return fmt.Sprintf("%s%d", g.Prefix, g.next.Add(1))
}
