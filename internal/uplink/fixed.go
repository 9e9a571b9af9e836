package uplink

import "sync"

// FixedGenerator returns predetermined correlation ids for testing.
// Enables deterministic assertions on tracked ids and golden output.
//
// Safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
// Panics when all ids are consumed: fail fast on test misconfiguration.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all correlation ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
