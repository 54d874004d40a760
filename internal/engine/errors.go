package engine

import (
	"errors"
	"fmt"
)

// SimError is an operation rejected by the engine or registry.
//
// None of these are fatal: the rejected operation leaves state untouched
// and the caller decides whether to surface it.
type SimError struct {
	// Code identifies the error category.
	Code SimErrorCode

	// Message is a human-readable description.
	Message string

	// TriggerID identifies the affected trigger, if any.
	TriggerID string

	// Channel identifies the affected channel, if any.
	Channel string
}

// SimErrorCode categorizes rejected operations.
type SimErrorCode string

const (
	// ErrCodeInvalidID indicates an empty trigger id on add.
	ErrCodeInvalidID SimErrorCode = "INVALID_ID"

	// ErrCodeDuplicateID indicates a trigger id already present in the registry.
	ErrCodeDuplicateID SimErrorCode = "DUPLICATE_ID"

	// ErrCodeInvalidDelay indicates a negative or non-finite delay.
	ErrCodeInvalidDelay SimErrorCode = "INVALID_DELAY"

	// ErrCodeRunInProgress indicates an operation that is only legal while idle.
	ErrCodeRunInProgress SimErrorCode = "RUN_IN_PROGRESS"

	// ErrCodeTriggerInactive indicates a manual fire on an inactive trigger.
	ErrCodeTriggerInactive SimErrorCode = "TRIGGER_INACTIVE"

	// ErrCodeUnknownTrigger indicates a trigger id that is not registered.
	ErrCodeUnknownTrigger SimErrorCode = "UNKNOWN_TRIGGER"

	// ErrCodeUnknownField indicates an update to a field that does not exist.
	ErrCodeUnknownField SimErrorCode = "UNKNOWN_FIELD"

	// ErrCodeInvalidValue indicates a field value that cannot be parsed.
	ErrCodeInvalidValue SimErrorCode = "INVALID_VALUE"

	// ErrCodeEngineClosed indicates an operation on a closed engine.
	ErrCodeEngineClosed SimErrorCode = "ENGINE_CLOSED"
)

// Error implements the error interface.
func (e *SimError) Error() string {
	switch {
	case e.TriggerID != "" && e.Channel != "":
		return fmt.Sprintf("%s: %s (trigger=%s, channel=%s)", e.Code, e.Message, e.TriggerID, e.Channel)
	case e.TriggerID != "":
		return fmt.Sprintf("%s: %s (trigger=%s)", e.Code, e.Message, e.TriggerID)
	case e.Channel != "":
		return fmt.Sprintf("%s: %s (channel=%s)", e.Code, e.Message, e.Channel)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another SimError by code, so errors.Is(err, &SimError{Code: c})
// finds a code anywhere in a wrapped or joined error tree.
func (e *SimError) Is(target error) bool {
	t, ok := target.(*SimError)
	return ok && t.Code == e.Code
}

// hasCode reports whether err is, or wraps, a SimError with the given code.
func hasCode(err error, code SimErrorCode) bool {
	return errors.Is(err, &SimError{Code: code})
}

// IsRunInProgress returns true if err rejected an operation because a run
// was in progress.
func IsRunInProgress(err error) bool { return hasCode(err, ErrCodeRunInProgress) }

// IsDuplicateID returns true if err is a duplicate trigger id.
func IsDuplicateID(err error) bool { return hasCode(err, ErrCodeDuplicateID) }

// IsInvalidID returns true if err is an empty trigger id.
func IsInvalidID(err error) bool { return hasCode(err, ErrCodeInvalidID) }

// IsTriggerInactive returns true if err rejected a manual fire on an inactive trigger.
func IsTriggerInactive(err error) bool { return hasCode(err, ErrCodeTriggerInactive) }

// IsUnknownTrigger returns true if err names a trigger that is not registered.
func IsUnknownTrigger(err error) bool { return hasCode(err, ErrCodeUnknownTrigger) }

// IsEngineClosed returns true if err was returned by a closed engine.
func IsEngineClosed(err error) bool { return hasCode(err, ErrCodeEngineClosed) }

func newRunInProgressError(op string) *SimError {
	return &SimError{
		Code:    ErrCodeRunInProgress,
		Message: fmt.Sprintf("%s rejected: a simulation run is in progress", op),
	}
}

func newUnknownTriggerError(id string) *SimError {
	return &SimError{
		Code:      ErrCodeUnknownTrigger,
		Message:   "no such trigger",
		TriggerID: id,
	}
}

func newClosedError() *SimError {
	return &SimError{Code: ErrCodeEngineClosed, Message: "engine is closed"}
}
