// Package engine implements the trigger-network discrete-event simulator.
//
// A network is a Registry of Triggers. Each trigger listens for pulses on
// named channels: a pulse can activate it, deactivate it, or (when active)
// make it fire, which schedules a new pulse on its output channel after a
// delay. The Engine drives the network from a time-ordered EventQueue.
//
// ARCHITECTURE:
//
// Idle/Running Gate:
// The engine is either idle or running one run. InjectPulse and ManualFire
// seed the queue and start a run; while running they are rejected, as are
// all trigger edits. Reset and Clear are always accepted and cancel the run.
//
// Run Loop:
//  1. Pop the earliest event (FIFO among equal times)
//  2. Advance the clock to the event's time
//  3. Issue flash cues (fire on the source, listen on every listener)
//  4. Wait on the Pacer
//  5. Broadcast the channel to every trigger in registry order
//  6. Stop when the queue is empty, or when the step quota is exceeded
//
// Determinism:
// The Pacer only controls wall-clock pacing. Delivery order, trigger
// evaluation order and the trace depend only on the layout and the
// stimuli. Trace entries are stamped with a logical seq counter, never with
// wall-clock time.
package engine
