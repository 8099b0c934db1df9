// Package errors provides structured error handling for the steward service.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Change request errors
	CodeChangeInvalidKind  Code = "CHANGE_INVALID_KIND"
	CodeChangeEmptyPayload Code = "CHANGE_EMPTY_PAYLOAD"

	// Scheduler errors
	CodeVerdictNotApproved    Code = "SCHEDULER_VERDICT_NOT_APPROVED"
	CodeVerdictMissingWindow  Code = "SCHEDULER_VERDICT_MISSING_WINDOW"
	CodeChangeAlreadyTerminal Code = "SCHEDULER_CHANGE_ALREADY_TERMINAL"

	// Phase errors
	CodePhaseInvalidTransition Code = "PHASE_INVALID_TRANSITION"
	CodePhaseUnspecified       Code = "PHASE_UNSPECIFIED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)
