// internal/services/errors.go
package services

import "errors"

// Fulfillment error taxonomy. Callers classify with errors.Is.
var (
	// ErrInvalidTransition: the requested transition is not legal from the
	// order's current status. Recoverable; the caller should re-fetch state.
	ErrInvalidTransition = errors.New("invalid order transition")

	// ErrUnauthorizedActor: the caller is not the agent assigned to this
	// order for the attempted step. Not recoverable by retry.
	ErrUnauthorizedActor = errors.New("actor is not authorized for this order")

	// ErrInvalidVerificationCode: the presented code does not match any
	// accepted method. The caller may re-prompt for the correct code.
	ErrInvalidVerificationCode = errors.New("verification code does not match")

	// ErrAlreadyReleased: a release targeted a ledger entry that is already
	// released. This is an invariant violation, never a business state; the
	// surrounding transaction must abort.
	ErrAlreadyReleased = errors.New("commission ledger entry already released")

	ErrOrderNotFound = errors.New("order not found")
	ErrAgentNotFound = errors.New("agent not found")
)
