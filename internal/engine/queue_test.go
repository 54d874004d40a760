package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func popAll(t *testing.T, q *EventQueue) []Event {
	t.Helper()
	var out []Event
	for {
		ev, ok := q.PopMin()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestEventQueue_PopMinStableByTime(t *testing.T) {
	q := NewEventQueue()
	q.Push(Event{Time: 5, Channel: "five"})
	q.Push(Event{Time: 2, Channel: "two-first"})
	q.Push(Event{Time: 2, Channel: "two-second"})
	q.Push(Event{Time: 8, Channel: "eight"})

	got := popAll(t, q)
	require.Len(t, got, 4)
	assert.Equal(t, "two-first", got[0].Channel)
	assert.Equal(t, "two-second", got[1].Channel)
	assert.Equal(t, "five", got[2].Channel)
	assert.Equal(t, "eight", got[3].Channel)
}

func TestEventQueue_FIFOForManyEqualTimes(t *testing.T) {
	q := NewEventQueue()
	channels := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for _, ch := range channels {
		q.Push(Event{Time: 1, Channel: ch})
	}

	got := popAll(t, q)
	for i, ev := range got {
		assert.Equal(t, channels[i], ev.Channel)
	}
}

func TestEventQueue_InterleavedPushPop(t *testing.T) {
	q := NewEventQueue()
	q.Push(Event{Time: 0, Channel: "A"})

	ev, ok := q.PopMin()
	require.True(t, ok)
	assert.Equal(t, "A", ev.Channel)

	// Follow-on events pushed while processing become eligible in order
	q.Push(Event{Time: 3, Channel: "late"})
	q.Push(Event{Time: 1, Channel: "early"})
	q.Push(Event{Time: 1, Channel: "early-2"})

	got := popAll(t, q)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"early", "early-2", "late"},
		[]string{got[0].Channel, got[1].Channel, got[2].Channel})
}

func TestEventQueue_EmptyPop(t *testing.T) {
	q := NewEventQueue()
	assert.True(t, q.IsEmpty())

	_, ok := q.PopMin()
	assert.False(t, ok)

	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestEventQueue_PeekDoesNotRemove(t *testing.T) {
	q := NewEventQueue()
	q.Push(Event{Time: 4, Channel: "X"})
	q.Push(Event{Time: 1, Channel: "Y"})

	ev, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "Y", ev.Channel)
	assert.Equal(t, 2, q.Len())
}

func TestEventQueue_PendingInPopOrder(t *testing.T) {
	q := NewEventQueue()
	q.Push(Event{Time: 5, Channel: "c"})
	q.Push(Event{Time: 2, Channel: "a"})
	q.Push(Event{Time: 2, Channel: "b"})

	pending := q.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, "a", pending[0].Channel)
	assert.Equal(t, "b", pending[1].Channel)
	assert.Equal(t, "c", pending[2].Channel)

	assert.Equal(t, 3, q.Len(), "Pending must not drain the queue")
}

func TestEventQueue_Clear(t *testing.T) {
	q := NewEventQueue()
	q.Push(Event{Time: 1, Channel: "A"})
	q.Push(Event{Time: 2, Channel: "B"})

	q.Clear()
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 0, q.Len())

	// Queue remains usable after clearing
	q.Push(Event{Time: 9, Channel: "C"})
	ev, ok := q.PopMin()
	require.True(t, ok)
	assert.Equal(t, "C", ev.Channel)
}

func TestEventQueue_ImplementsScheduler(t *testing.T) {
	var s Scheduler = NewEventQueue()
	s.Push(Event{Time: 1, Channel: "A"})
	assert.Equal(t, 1, s.(*EventQueue).Len())
}
