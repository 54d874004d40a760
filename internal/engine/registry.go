package engine

import (
	"strings"

	"github.com/roach88/triggersim/internal/ir"
)

// Registry is the insertion-ordered collection of triggers, keyed by id.
//
// Iteration order is insertion order; it fixes the broadcast order within
// one event step. The registry also tracks which trigger, if any, the
// presentation layer has selected.
//
// Registry is not safe for concurrent use. Once handed to an Engine, go
// through the Engine's methods.
type Registry struct {
	order    []string
	byID     map[string]*Trigger
	selected string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Trigger)}
}

// Add creates a trigger from cfg and registers it.
//
// Fails with INVALID_ID if the id is empty, DUPLICATE_ID if it is already
// present, or INVALID_DELAY for a negative delay. Nothing is mutated on
// failure. Surrounding whitespace is trimmed from the id.
func (r *Registry) Add(cfg Config) (*Trigger, error) {
	cfg.ID = strings.TrimSpace(cfg.ID)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if _, exists := r.byID[cfg.ID]; exists {
		return nil, &SimError{
			Code:      ErrCodeDuplicateID,
			Message:   "trigger id already exists",
			TriggerID: cfg.ID,
		}
	}

	t := NewTrigger(cfg)
	r.order = append(r.order, cfg.ID)
	r.byID[cfg.ID] = t
	return t, nil
}

// Delete removes the trigger with the given id and clears the selection if
// it pointed at it. Returns false (a no-op) if the id is absent.
func (r *Registry) Delete(id string) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.selected == id {
		r.selected = ""
	}
	return true
}

// Get returns the trigger with the given id.
func (r *Registry) Get(id string) (*Trigger, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// Len returns the number of registered triggers.
func (r *Registry) Len() int {
	return len(r.order)
}

// IDs returns the registered ids in insertion order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Triggers returns the registered triggers in insertion order. The slice is
// a stable copy: later adds or deletes do not affect it.
func (r *Registry) Triggers() []*Trigger {
	out := make([]*Trigger, len(r.order))
	for i, id := range r.order {
		out[i] = r.byID[id]
	}
	return out
}

// Select marks a trigger as selected.
func (r *Registry) Select(id string) error {
	if _, ok := r.byID[id]; !ok {
		return newUnknownTriggerError(id)
	}
	r.selected = id
	return nil
}

// Selected returns the selected trigger id, or "" if none.
func (r *Registry) Selected() string {
	return r.selected
}

// Serialize returns one snapshot per trigger, in insertion order.
func (r *Registry) Serialize() []ir.TriggerSnapshot {
	out := make([]ir.TriggerSnapshot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Snapshot())
	}
	return out
}

// Clear removes all triggers and the selection.
func (r *Registry) Clear() {
	r.order = nil
	r.byID = make(map[string]*Trigger)
	r.selected = ""
}
