package segment

import "errors"

var (
	// ErrTokenCounterRequired is returned when a token counter is not provided
	// and the default tokenizer cannot be constructed.
	ErrTokenCounterRequired = errors.New("token counter required")

	// ErrNoSegments is returned when chapter detection is asked to partition
	// an empty segment list.
	ErrNoSegments = errors.New("no segments to partition")
)
