package pipeline

import "errors"

var (
	// ErrLedgerRequired is returned when a job ledger is not provided.
	ErrLedgerRequired = errors.New("job ledger required")

	// ErrArtifactStoreRequired is returned when an artifact store is not provided.
	ErrArtifactStoreRequired = errors.New("artifact store required")

	// ErrBusRequired is returned when a message bus is not provided.
	ErrBusRequired = errors.New("message bus required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrCacheRequired is returned when a cache is not provided.
	ErrCacheRequired = errors.New("cache required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrInvalidMaxAttempts is returned when the retry budget is not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be > 0")
)
