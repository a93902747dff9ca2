package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out instance identities "<prefix>-1", "<prefix>-2", ...
// It satisfies atom.IDGenerator.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs returns a generator using prefix, or "inst" when prefix
// is empty.
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "inst"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next identity.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// FixedID returns the same identity every time.
type FixedID string

// Generate returns id.
func (id FixedID) Generate() string { return string(id) }
