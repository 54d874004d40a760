package compiler

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/triggersim/internal/channel"
	"github.com/roach88/triggersim/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrTriggerIDEmpty     = "E101" // trigger id is required
	ErrTriggerIDDuplicate = "E102" // trigger id declared twice
	ErrDelayInvalid       = "E103" // delay must be finite and >= 0
	ErrPositionInvalid    = "E104" // x/y must be finite
	ErrOutputUnheard      = "E110" // whenTriggered channel no trigger listens on
)

// ValidationError represents a layout validation problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Index   int    `json:"index"`
	Warning bool   `json:"warning,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] trigger %d: %s: %s", e.Code, e.Index, e.Field, e.Message)
}

// Validate checks a layout against the rules the registry enforces on
// load, plus lint warnings that point at likely wiring mistakes.
// Returns all problems found (does not fail-fast).
func Validate(layout []ir.TriggerSnapshot) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]int, len(layout))
	heard := make(map[string]bool)

	for _, s := range layout {
		for _, list := range []string{s.ActivateOn, s.DeactivateOn, s.TriggerOn} {
			for _, ch := range channel.Parse(list) {
				heard[ch] = true
			}
		}
	}

	for i, s := range layout {
		id := strings.TrimSpace(s.ID)
		field := fmt.Sprintf("trigger[%d]", i)
		if id != "" {
			field = id
		}

		if id == "" {
			errs = append(errs, ValidationError{
				Field: "id", Message: "trigger id is required", Code: ErrTriggerIDEmpty, Index: i,
			})
		} else if first, dup := seen[id]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate id %q (first declared at %d)", id, first),
				Code:    ErrTriggerIDDuplicate,
				Index:   i,
			})
		} else {
			seen[id] = i
		}

		if s.Delay < 0 || math.IsNaN(s.Delay) || math.IsInf(s.Delay, 0) {
			errs = append(errs, ValidationError{
				Field:   field + ".delay",
				Message: fmt.Sprintf("delay must be a non-negative number, got %v", s.Delay),
				Code:    ErrDelayInvalid,
				Index:   i,
			})
		}
		if math.IsNaN(s.X) || math.IsInf(s.X, 0) || math.IsNaN(s.Y) || math.IsInf(s.Y, 0) {
			errs = append(errs, ValidationError{
				Field:   field + ".position",
				Message: "x and y must be finite",
				Code:    ErrPositionInvalid,
				Index:   i,
			})
		}

		if s.WhenTriggered != nil {
			out := strings.TrimSpace(*s.WhenTriggered)
			if out != "" && !heard[out] {
				errs = append(errs, ValidationError{
					Field:   field + ".whenTriggered",
					Message: fmt.Sprintf("no trigger listens on %q", out),
					Code:    ErrOutputUnheard,
					Index:   i,
					Warning: true,
				})
			}
		}
	}
	return errs
}

// HasErrors reports whether any non-warning problem is present.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if !e.Warning {
			return true
		}
	}
	return false
}
