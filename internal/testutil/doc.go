// Package testutil provides deterministic doubles for engine tests:
// run id generators, a recording observer and a step-by-step pacer.
package testutil
