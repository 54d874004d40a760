// Package ir provides the shared data shapes of triggersim: the persisted
// trigger snapshot, trace entries, run records, and their canonical JSON form.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Logical sequence numbers only, never wall-clock timestamps
//   - Snapshot JSON field names match the layout file format (camelCase)
//   - Trace and run JSON field names use snake_case
package ir
