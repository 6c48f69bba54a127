package answer

import "errors"

var (
	// ErrLedgerRequired is returned when a job ledger is not provided.
	ErrLedgerRequired = errors.New("job ledger required")

	// ErrArtifactStoreRequired is returned when an artifact store is not provided.
	ErrArtifactStoreRequired = errors.New("artifact store required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrCacheRequired is returned when a cache is not provided.
	ErrCacheRequired = errors.New("cache required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyQuery is returned when the query contains no content.
	ErrEmptyQuery = errors.New("empty query")
)
