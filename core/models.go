package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for derived entities (segments, content hashes).
// It is generated deterministically from content so that reprocessing the
// same input yields the same IDs.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// JobStatus tracks which pipeline stage currently owns a job.
type JobStatus int

const (
	// JobCreated means the job is accepted but no stage has started.
	JobCreated JobStatus = iota + 1
	// JobTranscribing means the transcription stage owns the job.
	JobTranscribing
	// JobSegmenting means the segmentation stage owns the job.
	JobSegmenting
	// JobEmbedding means the embedding stage owns the job.
	JobEmbedding
	// JobIndexing means the indexing stage owns the job.
	JobIndexing
	// JobReady means the index is complete and the job is queryable.
	JobReady
	// JobFailed means a stage failed fatally or exhausted its retry budget.
	JobFailed
)

// String returns the lowercase status name used in logs and CLI output.
func (s JobStatus) String() string {
	switch s {
	case JobCreated:
		return "created"
	case JobTranscribing:
		return "transcribing"
	case JobSegmenting:
		return "segmenting"
	case JobEmbedding:
		return "embedding"
	case JobIndexing:
		return "indexing"
	case JobReady:
		return "ready"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is immutable absent an explicit retry.
func (s JobStatus) Terminal() bool {
	return s == JobReady || s == JobFailed
}

// Job is the ledger record for one upload moving through the pipeline.
// Only the stage owning the current transition mutates it.
type Job struct {
	ID               string
	SourceRef        string // path or URI of the uploaded media artifact
	OriginalFilename string
	Size             int64 // upload size in bytes, zero when the source is not a local file
	Status           JobStatus
	SegmentCount     int // populated by segmentation, checked by indexing
	CreatedAt        time.Time
	UpdatedAt        time.Time
	StageErrors      []StageError
}

// StageError records a stage failure on the job ledger for diagnostics.
type StageError struct {
	Stage    Stage
	Kind     string
	Message  string
	Attempts int
	At       time.Time
}

// Stage identifies a pipeline stage. Stage names double as bus topic names.
type Stage int

const (
	StageTranscription Stage = iota + 1
	StageSegmentation
	StageEmbedding
	StageIndexing
)

// String returns the stage's topic name.
func (s Stage) String() string {
	switch s {
	case StageTranscription:
		return "transcription"
	case StageSegmentation:
		return "segmentation"
	case StageEmbedding:
		return "embedding"
	case StageIndexing:
		return "indexing"
	default:
		return "unknown"
	}
}

// Message is the bus envelope for one stage hop. Payloads stay in the
// artifact store; the message carries only references so redelivery is cheap.
type Message struct {
	JobID       string
	Stage       Stage
	ArtifactRef string
	Attempt     int
	EnqueuedAt  time.Time
}

// DeadLetter captures a message that exhausted its retry budget.
type DeadLetter struct {
	JobID     string
	Stage     Stage
	ErrorKind string
	Attempts  int
	LastError string
	At        time.Time
}

// TranscriptSegment is one timestamped utterance from the ASR service.
type TranscriptSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcript is the transcription stage's output artifact.
// It is written once per job and immutable afterwards.
type Transcript struct {
	JobID    string              `json:"job_id"`
	Text     string              `json:"text"`
	Language string              `json:"language"`
	Segments []TranscriptSegment `json:"segments"`
}

// Segment is a sentence-aligned batch of transcript text under the token
// budget. ContentHash is the embedding cache key component: identical
// normalized text across jobs shares cached embeddings.
type Segment struct {
	ID          ID     `json:"segment_id"`
	JobID       string `json:"job_id"`
	OrderIndex  int    `json:"order_index"`
	Text        string `json:"text"`
	TokenCount  int    `json:"token_count"`
	ContentHash ID     `json:"content_hash"`
}

// Chapter is a contiguous span of segments between two change points.
type Chapter struct {
	JobID        string `json:"job_id"`
	Index        int    `json:"chapter_index"`
	StartSegment int    `json:"start_segment"` // order index, inclusive
	EndSegment   int    `json:"end_segment"`   // order index, inclusive
	Title        string `json:"title,omitempty"`
}

// EmbeddingVector is the resolved embedding for a content hash under one
// model version. Cached entries are immutable and eviction-eligible.
type EmbeddingVector struct {
	ContentHash  ID        `json:"content_hash"`
	SegmentID    ID        `json:"segment_id"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// IndexEntry is one row of a job's similarity index partition.
type IndexEntry struct {
	JobID     string
	SegmentID ID
	Vector    []float32
}

// IndexMatch is one nearest-neighbor result.
type IndexMatch struct {
	SegmentID ID
	Score     float32
}

// Answer is the retrieval stage's result for one query.
type Answer struct {
	JobID               string
	Query               string
	RetrievedSegmentIDs []ID
	Text                string
	PromptHash          string
	Cached              bool
}
