package core

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors
var (
	// ErrNotReady indicates a query arrived before the job's index is complete.
	ErrNotReady = errors.New("job not ready")

	// ErrJobFailed indicates a query arrived for a job in the failed state.
	ErrJobFailed = errors.New("job failed")

	// ErrMalformedInput indicates input that can never be processed
	// (unreadable media, empty transcript, zero segments). Not retried.
	ErrMalformedInput = errors.New("malformed input")

	// ErrConsistency indicates internal state that violates a pipeline
	// invariant, such as an index entry count mismatch. Never silently dropped.
	ErrConsistency = errors.New("consistency violation")

	// ErrUnsupportedMedia indicates a source file with an extension outside
	// the accepted set.
	ErrUnsupportedMedia = fmt.Errorf("%w: unsupported media type", ErrMalformedInput)

	// ErrEmptyTranscript indicates transcription produced no usable text.
	ErrEmptyTranscript = fmt.Errorf("%w: empty transcript", ErrMalformedInput)

	// ErrInvalidTransition indicates a ledger transition from a state the
	// job is not in.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransientError marks an error as retryable: network failures, timeouts,
// rate limits from external capabilities. Stage workers retry these with
// exponential backoff up to a bounded attempt count.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable. Returns nil if err is nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried. Deadline expiry on a
// capability call counts as transient per the pipeline timeout policy.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// ErrorKind classifies an error for dead-letter records and stage errors.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsTransient(err):
		return "transient"
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, ErrConsistency):
		return "consistency"
	default:
		return "internal"
	}
}
