package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDGenerator generates "<prefix>-1", "<prefix>-2", ... run ids.
//
// This enables deterministic test execution and golden trace comparison.
// The same scenario with a fresh SequentialRunIDGenerator produces
// byte-identical traces.
//
// Unlike engine.FixedGenerator, which panics once its list is exhausted,
// this generator never runs out.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialRunIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDGenerator creates a generator with the given prefix.
// If prefix is empty, "run" is used.
func NewSequentialRunIDGenerator(prefix string) *SequentialRunIDGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDGenerator{prefix: prefix}
}

// Generate returns the next run id.
//
// Implements engine.RunIDGenerator interface.
func (g *SequentialRunIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
