// Package harness provides conformance testing for trigger networks.
//
// A scenario loads a layout, drives the engine through a sequence of steps
// and checks the resulting trace and final state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	layout: ../layouts/and_gate.json   # or an inline triggers: list
//	max_steps: 100                     # optional step quota
//	steps:
//	  - inject: go
//	    at: 0
//	  - fire: A
//	  - toggle: A
//	  - set: { trigger: A, field: delay, value: "2" }
//	  - reset: true
//	  - clear: true
//	  - fire: ghost
//	    expect_error: UNKNOWN_TRIGGER
//	assertions:
//	  - type: state
//	    trigger: A
//	    active: true
//	  - type: trace_contains
//	    kind: fire
//	    trigger: A
//	  - type: trace_count
//	    kind: deliver
//	    count: 3
//	  - type: trace_order
//	    entries:
//	      - { kind: fire, trigger: A }
//	      - { kind: fire, trigger: B }
//	  - type: clock
//	    time: 3
//	  - type: queue_empty
//
// # Assertion Types
//
//   - state: a trigger's final state
//   - trace_contains: some trace entry matches the given fields
//   - trace_count: exactly N trace entries match the given fields
//   - trace_order: matching entries appear in the given order
//   - clock: the final simulated time
//   - queue_empty: no events are pending
//
// # Deterministic Testing
//
// Every step runs to completion before the next one starts: the engine uses
// an immediate pacer and the harness waits for it to go idle. Run ids come
// from a sequential generator ("run-1", "run-2", ...), so the same scenario
// always produces the same trace. RunWithGolden compares that trace against
// testdata/golden/<name>.golden.
package harness
