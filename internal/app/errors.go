package app

import "fmt"

// ValidationError reports malformed input to a constructor or to a merge:
// an unknown role, broken snippet line bounds, or a session loaded from an
// external source that violates a model invariant. The input is rejected and
// existing state is left untouched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// OrderingError reports a message append that would break timestamp
// monotonicity within a session. Existing messages are never reordered to
// accommodate the new one.
type OrderingError struct {
	Prev string
	Next string
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("message timestamp %s is earlier than last message timestamp %s", e.Next, e.Prev)
}

// StateError reports an operation that is invalid for the current state,
// e.g. a streaming update when the last message is not an assistant turn.
// This signals a bug in the calling panel, not a user-facing failure.
type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
