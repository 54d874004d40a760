package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_StartsAtZero(t *testing.T) {
	assert.Equal(t, 0.0, NewClock().Now())
}

func TestClock_AdvanceOnlyForward(t *testing.T) {
	c := NewClock()

	assert.True(t, c.Advance(2))
	assert.Equal(t, 2.0, c.Now())

	assert.False(t, c.Advance(1), "clock must never decrease")
	assert.Equal(t, 2.0, c.Now())

	assert.False(t, c.Advance(2))
	assert.True(t, c.Advance(2.5))
	assert.Equal(t, 2.5, c.Now())
}

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt(7)
	assert.Equal(t, 7.0, c.Now())
}

func TestClock_Reset(t *testing.T) {
	c := NewClockAt(5)
	c.Reset()
	assert.Equal(t, 0.0, c.Now())
}

func TestClock_ConcurrentAdvanceKeepsMaximum(t *testing.T) {
	c := NewClock()
	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			c.Advance(v)
		}(float64(i))
	}
	wg.Wait()

	assert.Equal(t, 100.0, c.Now())
}
