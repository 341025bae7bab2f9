package domain

import (
	"errors"
	"fmt"
)

// TransientError marks an external failure worth retrying with bounded
// backoff (network flaps, timeouts, 5xx).
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: transient: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks an external failure that retrying cannot fix (bad
// config, auth rejection, 4xx).
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("%s: permanent: %v", e.Op, e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// InvalidTransitionError rejects an illegal lifecycle move outright.
type InvalidTransitionError struct {
	RequestID string
	From      RequestStatus
	To        RequestStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("request %s: invalid transition %s -> %s", e.RequestID, e.From, e.To)
}

// LockContentionError surfaces a submission already in flight for the same
// request. It is a conflict, never auto-retried.
type LockContentionError struct {
	Key string
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("submission lock held for %s", e.Key)
}

// FatalConsistencyError means the delivery side effect happened but the
// artifact could not be persisted. It requires operator remediation and must
// never be silently retried.
type FatalConsistencyError struct {
	RequestID string
	Err       error
}

func (e *FatalConsistencyError) Error() string {
	return fmt.Sprintf("request %s: delivered but artifact persistence failed: %v", e.RequestID, e.Err)
}
func (e *FatalConsistencyError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Transient wraps err as retryable under op.
func Transient(op string, err error) error { return &TransientError{Op: op, Err: err} }

// Permanent wraps err as non-retryable under op.
func Permanent(op string, err error) error { return &PermanentError{Op: op, Err: err} }
