package ai

import (
	"context"

	"github.com/poiesic/mediamind/core"
)

// Transcriber converts a media file into a timed transcript.
// Implementations must be thread-safe for concurrent use.
type Transcriber interface {
	// Transcribe reads the media file at sourceRef and returns its transcript
	// with per-utterance timing. The transcript's segments are ordered by
	// start time. Returns an error if the media cannot be decoded or the
	// transcription service fails.
	Transcribe(ctx context.Context, sourceRef string) (*core.Transcript, error)
}

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	// The embedding stage issues one call per novel content hash, so there
	// is no batch variant; per-job parallelism comes from the caller's pool.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator produces a grounded natural-language answer from a query
// and a set of supporting transcript excerpts.
// Implementations must be thread-safe for concurrent use.
type AnswerGenerator interface {
	// GenerateAnswer builds a prompt from the query and the supporting
	// excerpts (in the order given) and returns the generated answer text.
	// Returns an error if generation fails.
	GenerateAnswer(ctx context.Context, query string, excerpts []string) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Transcriber, Embedder and AnswerGenerator
// instances, ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Transcriber returns the media transcription service.
	Transcriber() Transcriber

	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// AnswerGenerator returns the answer generation service.
	AnswerGenerator() AnswerGenerator

	// ModelVersion identifies the embedding model in use. Embeddings produced
	// under different model versions are not comparable, so the version is
	// part of every embedding cache key.
	ModelVersion() string

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
