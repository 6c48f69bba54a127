package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := Job{
		ID:               "job-1",
		SourceRef:        "/uploads/meeting.mp3",
		OriginalFilename: "meeting.mp3",
		Size:             1 << 21,
		Status:           JobEmbedding,
		SegmentCount:     17,
		CreatedAt:        now,
		UpdatedAt:        now.Add(time.Minute),
		StageErrors: []StageError{
			{Stage: StageTranscription, Kind: "transient", Message: "timeout", Attempts: 2, At: now},
		},
	}

	buf := make([]byte, JobMUS.Size(job))
	n := JobMUS.Marshal(job, buf)
	require.Equal(t, len(buf), n, "Size must match Marshal")

	decoded, n, err := JobMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, job, decoded)
}

func TestJobRoundTripEmptyStageErrors(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := Job{ID: "job-2", SourceRef: "a.wav", Status: JobCreated, CreatedAt: now, UpdatedAt: now}

	buf := make([]byte, JobMUS.Size(job))
	JobMUS.Marshal(job, buf)

	decoded, _, err := JobMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, job.ID, decoded.ID)
	assert.Empty(t, decoded.StageErrors)
}

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		JobID:       "job-1",
		Stage:       StageSegmentation,
		ArtifactRef: "transcript.json",
		Attempt:     3,
		EnqueuedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}

	buf := make([]byte, MessageMUS.Size(msg))
	MessageMUS.Marshal(msg, buf)

	decoded, n, err := MessageMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, msg, decoded)
}

func TestDeadLetterRoundTrip(t *testing.T) {
	dl := DeadLetter{
		JobID:     "job-1",
		Stage:     StageEmbedding,
		ErrorKind: "transient",
		Attempts:  3,
		LastError: "transient: connection refused",
		At:        time.Now().UTC().Truncate(time.Microsecond),
	}

	buf := make([]byte, DeadLetterMUS.Size(dl))
	DeadLetterMUS.Marshal(dl, buf)

	decoded, _, err := DeadLetterMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, dl, decoded)
}

func TestIndexEntryRoundTrip(t *testing.T) {
	entry := IndexEntry{
		JobID:     "job-1",
		SegmentID: SegmentIDFor("job-1", 4),
		Vector:    []float32{0.25, -0.5, 0.75},
	}

	buf := make([]byte, IndexEntryMUS.Size(entry))
	IndexEntryMUS.Marshal(entry, buf)

	decoded, _, err := IndexEntryMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)
}

func TestEmbeddingVectorRoundTrip(t *testing.T) {
	vec := EmbeddingVector{
		ContentHash:  ContentHash("some segment text"),
		SegmentID:    SegmentIDFor("job-1", 0),
		Vector:       []float32{0.1, 0.2, 0.3, 0.4},
		ModelVersion: "embeddinggemma",
	}

	buf := make([]byte, EmbeddingVectorMUS.Size(vec))
	EmbeddingVectorMUS.Marshal(vec, buf)

	decoded, _, err := EmbeddingVectorMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)
}

func TestUnmarshalTruncatedJob(t *testing.T) {
	job := Job{ID: "job-1", SourceRef: "a.mp3", Status: JobCreated}
	buf := make([]byte, JobMUS.Size(job))
	JobMUS.Marshal(job, buf)

	_, _, err := JobMUS.Unmarshal(buf[:2])
	assert.Error(t, err)
}
