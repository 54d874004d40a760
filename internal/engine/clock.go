package engine

import (
	"math"
	"sync/atomic"
)

// Clock holds the simulated time of an engine.
//
// The clock only moves forward: Advance ignores earlier times. Events are
// expected to be scheduled at or after Now, but the engine does not enforce it.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations), so
// presentation code may read Now while a run is in progress.
type Clock struct {
	bits atomic.Uint64
}

// NewClock creates a new clock at time 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific time.
func NewClockAt(t float64) *Clock {
	c := &Clock{}
	c.bits.Store(math.Float64bits(t))
	return c
}

// Now returns the current simulated time.
func (c *Clock) Now() float64 {
	return math.Float64frombits(c.bits.Load())
}

// Advance moves the clock to t if t is later than Now.
// Returns true if the clock moved.
func (c *Clock) Advance(t float64) bool {
	for {
		old := c.bits.Load()
		if t <= math.Float64frombits(old) {
			return false
		}
		if c.bits.CompareAndSwap(old, math.Float64bits(t)) {
			return true
		}
	}
}

// Reset moves the clock back to 0.
func (c *Clock) Reset() {
	c.bits.Store(0)
}
