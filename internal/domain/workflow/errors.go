package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a stage transition is not allowed
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrInvalidState is returned when a stage does not belong to the machine
	ErrInvalidState = errors.New("invalid stage")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrInvalidTemplate is returned when a stage list cannot form a workflow
	ErrInvalidTemplate = errors.New("invalid workflow template")

	// ErrInvalidDecision is returned for an unrecognized reviewer decision
	ErrInvalidDecision = errors.New("invalid decision")

	// ErrNotFound is returned when an application, process state or template does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor's role does not authorize the current stage
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when the process state cannot take the requested transition
	ErrConflict = errors.New("conflict")

	// ErrUnavailable is returned when no current template exists
	ErrUnavailable = errors.New("workflow unavailable")

	// ErrDeliveryFailure is returned by delivery channels; it is logged and never propagated past the dispatcher
	ErrDeliveryFailure = errors.New("delivery failure")
)
