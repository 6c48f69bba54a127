package storage

import (
	"context"

	"github.com/poiesic/mediamind/core"
)

// Ledger tracks per-job stage status. It is the single source of truth for
// stage ordering: a stage commits its output artifacts first, then calls
// Transition, and only a successful transition permits publishing the
// next-stage message. Implementations must be thread-safe.
type Ledger interface {
	// CreateJob persists a new job record.
	// Returns ErrDuplicateKey if the job already exists.
	CreateJob(ctx context.Context, job *core.Job) error

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.Job, error)

	// Transition performs an atomic compare-and-swap of the job status.
	// Returns (false, nil) if the job's current status is not from;
	// the caller decides whether that means a concurrent writer won or a
	// redelivered message is a no-op.
	Transition(ctx context.Context, id string, from, to core.JobStatus) (bool, error)

	// Update applies fn to the job record inside a transaction.
	// fn sees the current record and may mutate it; the mutated record is
	// written back atomically. Returns ErrNotFound for unknown jobs.
	Update(ctx context.Context, id string, fn func(*core.Job) error) (*core.Job, error)

	// Close closes the ledger and releases resources.
	Close() error
}

// ArtifactStore is durable blob storage for derived artifacts, addressed by
// job ID and artifact kind. Artifacts are written once by the producing
// stage; downstream stages only read.
type ArtifactStore interface {
	// PutArtifact stores an artifact blob.
	PutArtifact(ctx context.Context, jobID, kind string, data []byte) error

	// GetArtifact retrieves an artifact blob.
	// Returns ErrNotFound if the artifact doesn't exist.
	GetArtifact(ctx context.Context, jobID, kind string) ([]byte, error)

	// HasArtifact reports whether an artifact exists. Stages use this for
	// idempotent redelivery: an existing output means the work is done.
	HasArtifact(ctx context.Context, jobID, kind string) (bool, error)

	// Close closes the store and releases resources.
	Close() error
}

// Artifact kinds, mirroring the /{job_id}/<kind> layout.
const (
	ArtifactTranscript    = "transcript.json"
	ArtifactTranscriptVTT = "transcript.vtt"
	ArtifactSegments      = "segments.json"
	ArtifactChapters      = "chapters.json"
	ArtifactEmbeddings    = "embeddings.json"
)

// MessageBus is a durable, ordered-per-topic, at-least-once delivery channel
// with per-stage consumer groups and a dead-letter path. Every handler must
// be idempotent: a redelivered message with an already-applied effect must
// detect it via the Ledger and no-op.
type MessageBus interface {
	// Publish appends a message to a topic.
	Publish(ctx context.Context, topic string, msg *core.Message) error

	// Subscribe returns a restartable subscription for a consumer group.
	// A new subscription resumes from the group's last committed position.
	Subscribe(ctx context.Context, topic, group string) (Subscription, error)

	// PublishDeadLetter records a message that exhausted its retry budget.
	PublishDeadLetter(ctx context.Context, dl *core.DeadLetter) error

	// DeadLetters lists recorded dead letters for operator inspection.
	DeadLetters(ctx context.Context) ([]*core.DeadLetter, error)

	// Close closes the bus and releases resources.
	Close() error
}

// Subscription is a consumer group's cursor into one topic.
//
// Next blocks until a message is available or ctx is done. Calling Next
// again without Commit redelivers the same message, which is what gives
// handlers their at-least-once semantics across crashes.
type Subscription interface {
	Next(ctx context.Context) (*core.Message, error)
	// Commit advances the group's committed position past the message most
	// recently returned by Next.
	Commit(ctx context.Context) error
	Close() error
}

// VectorIndex is the per-job similarity index. Each job's entries form a
// logical partition; a job's index is only complete when its entry count
// equals its segment count.
type VectorIndex interface {
	// Upsert inserts or replaces entries keyed by (jobID, segmentID).
	// Re-indexing after a retry is therefore idempotent.
	Upsert(ctx context.Context, entries ...*core.IndexEntry) error

	// Count returns the number of entries in a job's partition.
	Count(ctx context.Context, jobID string) (int, error)

	// Nearest returns up to k matches ordered by descending score,
	// ties broken by ascending segment ID for determinism.
	Nearest(ctx context.Context, jobID string, vector []float32, k int) ([]*core.IndexMatch, error)

	// DropPartition removes a job's entries, used when re-opening a failed job.
	DropPartition(ctx context.Context, jobID string) error

	// Close closes the index and releases resources.
	Close() error
}
