package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned for unknown order ids and for orders the actor
	// may not see.
	ErrNotFound = errors.New("order not found")
	// ErrConflict is returned when a transition lost a race with another
	// transition on the same order.
	ErrConflict = errors.New("order was modified concurrently")
	// ErrInvalidTransition is wrapped by every InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports a rejected status change. The order is left
// untouched.
type InvalidTransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s: %s", e.From, e.To, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidTransition) hold.
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}
