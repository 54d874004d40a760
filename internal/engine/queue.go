package engine

import "container/heap"

// Event is a scheduled pulse: at logical Time, Channel is delivered to every
// trigger. SourceID names the trigger that produced it, or ir.ExternalSource;
// it is used for presentation only, never for routing.
type Event struct {
	Time     float64
	Channel  string
	SourceID string
}

// Scheduler accepts new events. Triggers push follow-on events through it
// while handling a pulse; EventQueue is the production implementation.
type Scheduler interface {
	Push(ev Event)
}

// queuedEvent pairs an event with its insertion sequence for FIFO tie-breaks.
type queuedEvent struct {
	ev  Event
	seq uint64
}

// eventHeap implements heap.Interface ordered by (time, insertion seq).
type eventHeap []queuedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].ev.Time != h[j].ev.Time {
		return h[i].ev.Time < h[j].ev.Time
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(queuedEvent)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = queuedEvent{}
	*h = old[:n-1]
	return item
}

// EventQueue is the pending-event collection of a simulation.
//
// PopMin returns the event with the smallest Time; events with equal Time
// come out in insertion order, so the queue behaves like a stable sort by
// time.
//
// EventQueue is not safe for concurrent use. The Engine owns its queue and
// serializes access under its own lock.
type EventQueue struct {
	events eventHeap
	next   uint64
}

// NewEventQueue creates an empty event queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{events: make(eventHeap, 0, 16)}
}

// Push adds an event to the queue.
func (q *EventQueue) Push(ev Event) {
	q.next++
	heap.Push(&q.events, queuedEvent{ev: ev, seq: q.next})
}

// PopMin removes and returns the earliest event.
// Returns (Event{}, false) if the queue is empty.
func (q *EventQueue) PopMin() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	item := heap.Pop(&q.events).(queuedEvent)
	return item.ev, true
}

// Peek returns the earliest event without removing it.
func (q *EventQueue) Peek() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	return q.events[0].ev, true
}

// IsEmpty reports whether no events are pending.
func (q *EventQueue) IsEmpty() bool {
	return len(q.events) == 0
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	return len(q.events)
}

// Pending returns the queued events in the order PopMin would return them.
// The queue is not modified.
func (q *EventQueue) Pending() []Event {
	cp := make(eventHeap, len(q.events))
	copy(cp, q.events)

	out := make([]Event, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(queuedEvent).ev)
	}
	return out
}

// Clear discards all pending events. Cancelling an in-flight delivery is
// the engine's responsibility; see Engine.Reset.
func (q *EventQueue) Clear() {
	clear(q.events)
	q.events = q.events[:0]
	q.next = 0
}
