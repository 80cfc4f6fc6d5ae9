package overlay

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultIDPrefix prefixes generated overlay identities.
const DefaultIDPrefix = "geojson-"

// IDGenerator produces overlay identities unique among live overlays.
type IDGenerator interface {
	NextID() string
}

// CounterGenerator hands out prefix-1, prefix-2, ... Share one instance
// between every overlay of a map.
type CounterGenerator struct {
	prefix string
	n      atomic.Uint64
}

// NewCounterGenerator creates a counter generator. An empty prefix falls back
// to DefaultIDPrefix.
func NewCounterGenerator(prefix string) *CounterGenerator {
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	return &CounterGenerator{prefix: prefix}
}

// NextID returns the next identity.
func (g *CounterGenerator) NextID() string {
	return g.prefix + strconv.FormatUint(g.n.Add(1), 10)
}

// RandomGenerator suffixes a prefix with a random UUID. It holds no state, so
// independent instances never need coordinating.
type RandomGenerator struct {
	Prefix string
}

// NextID returns a fresh identity.
func (g RandomGenerator) NextID() string {
	prefix := g.Prefix
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	return prefix + uuid.NewString()
}

// AllocateID returns requested when set, otherwise a generated identity.
func AllocateID(requested string, gen IDGenerator) string {
	if requested != "" {
		return requested
	}
	if gen == nil {
		gen = RandomGenerator{}
	}
	return gen.NextID()
}
