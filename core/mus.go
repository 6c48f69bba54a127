package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the records that live in BadgerDB
// (ledger jobs, bus messages, dead letters, index entries, cached vectors).
// Artifacts with a JSON wire format are serialized with encoding/json
// instead; see storage/serialization.go.

var (
	// IDMUS serializes an ID.
	IDMUS = idMUS{}
	// StageErrorMUS serializes a StageError.
	StageErrorMUS = stageErrorMUS{}
	// JobMUS serializes a Job ledger record.
	JobMUS = jobMUS{}
	// MessageMUS serializes a bus Message.
	MessageMUS = messageMUS{}
	// DeadLetterMUS serializes a DeadLetter record.
	DeadLetterMUS = deadLetterMUS{}
	// IndexEntryMUS serializes an IndexEntry.
	IndexEntryMUS = indexEntryMUS{}
	// EmbeddingVectorMUS serializes an EmbeddingVector cache value.
	EmbeddingVectorMUS = embeddingVectorMUS{}

	float32SliceMUS = ord.NewSliceSer[float32](raw.Float32)
	stageErrSlice   = ord.NewSliceSer[StageError](StageErrorMUS)
)

type idMUS struct{}

func (s idMUS) Marshal(id ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (s idMUS) Unmarshal(bs []byte) (id ID, n int, err error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (s idMUS) Size(id ID) (size int) {
	return varint.Uint64.Size(uint64(id))
}

func (s idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

// Timestamps are stored as Unix microseconds.

func marshalTime(t time.Time, bs []byte) (n int) {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (t time.Time, n int, err error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeTime(t time.Time) (size int) {
	return varint.Int64.Size(t.UnixMicro())
}

func skipTime(bs []byte) (n int, err error) {
	return varint.Int64.Skip(bs)
}

type stageErrorMUS struct{}

func (s stageErrorMUS) Marshal(e StageError, bs []byte) (n int) {
	n = varint.Int.Marshal(int(e.Stage), bs)
	n += ord.String.Marshal(e.Kind, bs[n:])
	n += ord.String.Marshal(e.Message, bs[n:])
	n += varint.Int.Marshal(e.Attempts, bs[n:])
	n += marshalTime(e.At, bs[n:])
	return
}

func (s stageErrorMUS) Unmarshal(bs []byte) (e StageError, n int, err error) {
	var (
		n1    int
		stage int
	)
	stage, n, err = varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	e.Stage = Stage(stage)
	e.Kind, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Message, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Attempts, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.At, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (s stageErrorMUS) Size(e StageError) (size int) {
	size = varint.Int.Size(int(e.Stage))
	size += ord.String.Size(e.Kind)
	size += ord.String.Size(e.Message)
	size += varint.Int.Size(e.Attempts)
	size += sizeTime(e.At)
	return
}

func (s stageErrorMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = varint.Int.Skip(bs)
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = skipTime(bs[n:])
	n += n1
	return
}

type jobMUS struct{}

func (s jobMUS) Marshal(j Job, bs []byte) (n int) {
	n = ord.String.Marshal(j.ID, bs)
	n += ord.String.Marshal(j.SourceRef, bs[n:])
	n += ord.String.Marshal(j.OriginalFilename, bs[n:])
	n += varint.Int64.Marshal(j.Size, bs[n:])
	n += varint.Int.Marshal(int(j.Status), bs[n:])
	n += varint.Int.Marshal(j.SegmentCount, bs[n:])
	n += marshalTime(j.CreatedAt, bs[n:])
	n += marshalTime(j.UpdatedAt, bs[n:])
	n += stageErrSlice.Marshal(j.StageErrors, bs[n:])
	return
}

func (s jobMUS) Unmarshal(bs []byte) (j Job, n int, err error) {
	var (
		n1     int
		status int
	)
	j.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	j.SourceRef, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.OriginalFilename, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.Size, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	status, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.Status = JobStatus(status)
	j.SegmentCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	j.StageErrors, n1, err = stageErrSlice.Unmarshal(bs[n:])
	n += n1
	return
}

func (s jobMUS) Size(j Job) (size int) {
	size = ord.String.Size(j.ID)
	size += ord.String.Size(j.SourceRef)
	size += ord.String.Size(j.OriginalFilename)
	size += varint.Int64.Size(j.Size)
	size += varint.Int.Size(int(j.Status))
	size += varint.Int.Size(j.SegmentCount)
	size += sizeTime(j.CreatedAt)
	size += sizeTime(j.UpdatedAt)
	size += stageErrSlice.Size(j.StageErrors)
	return
}

type messageMUS struct{}

func (s messageMUS) Marshal(m Message, bs []byte) (n int) {
	n = ord.String.Marshal(m.JobID, bs)
	n += varint.Int.Marshal(int(m.Stage), bs[n:])
	n += ord.String.Marshal(m.ArtifactRef, bs[n:])
	n += varint.Int.Marshal(m.Attempt, bs[n:])
	n += marshalTime(m.EnqueuedAt, bs[n:])
	return
}

func (s messageMUS) Unmarshal(bs []byte) (m Message, n int, err error) {
	var (
		n1    int
		stage int
	)
	m.JobID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	stage, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	m.Stage = Stage(stage)
	m.ArtifactRef, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	m.Attempt, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	m.EnqueuedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (s messageMUS) Size(m Message) (size int) {
	size = ord.String.Size(m.JobID)
	size += varint.Int.Size(int(m.Stage))
	size += ord.String.Size(m.ArtifactRef)
	size += varint.Int.Size(m.Attempt)
	size += sizeTime(m.EnqueuedAt)
	return
}

type deadLetterMUS struct{}

func (s deadLetterMUS) Marshal(d DeadLetter, bs []byte) (n int) {
	n = ord.String.Marshal(d.JobID, bs)
	n += varint.Int.Marshal(int(d.Stage), bs[n:])
	n += ord.String.Marshal(d.ErrorKind, bs[n:])
	n += varint.Int.Marshal(d.Attempts, bs[n:])
	n += ord.String.Marshal(d.LastError, bs[n:])
	n += marshalTime(d.At, bs[n:])
	return
}

func (s deadLetterMUS) Unmarshal(bs []byte) (d DeadLetter, n int, err error) {
	var (
		n1    int
		stage int
	)
	d.JobID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	stage, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Stage = Stage(stage)
	d.ErrorKind, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Attempts, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.LastError, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.At, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (s deadLetterMUS) Size(d DeadLetter) (size int) {
	size = ord.String.Size(d.JobID)
	size += varint.Int.Size(int(d.Stage))
	size += ord.String.Size(d.ErrorKind)
	size += varint.Int.Size(d.Attempts)
	size += ord.String.Size(d.LastError)
	size += sizeTime(d.At)
	return
}

type indexEntryMUS struct{}

func (s indexEntryMUS) Marshal(e IndexEntry, bs []byte) (n int) {
	n = ord.String.Marshal(e.JobID, bs)
	n += IDMUS.Marshal(e.SegmentID, bs[n:])
	n += float32SliceMUS.Marshal(e.Vector, bs[n:])
	return
}

func (s indexEntryMUS) Unmarshal(bs []byte) (e IndexEntry, n int, err error) {
	var n1 int
	e.JobID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	e.SegmentID, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Vector, n1, err = float32SliceMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (s indexEntryMUS) Size(e IndexEntry) (size int) {
	size = ord.String.Size(e.JobID)
	size += IDMUS.Size(e.SegmentID)
	size += float32SliceMUS.Size(e.Vector)
	return
}

type embeddingVectorMUS struct{}

func (s embeddingVectorMUS) Marshal(v EmbeddingVector, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ContentHash, bs)
	n += IDMUS.Marshal(v.SegmentID, bs[n:])
	n += float32SliceMUS.Marshal(v.Vector, bs[n:])
	n += ord.String.Marshal(v.ModelVersion, bs[n:])
	return
}

func (s embeddingVectorMUS) Unmarshal(bs []byte) (v EmbeddingVector, n int, err error) {
	var n1 int
	v.ContentHash, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.SegmentID, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = float32SliceMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ModelVersion, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s embeddingVectorMUS) Size(v EmbeddingVector) (size int) {
	size = IDMUS.Size(v.ContentHash)
	size += IDMUS.Size(v.SegmentID)
	size += float32SliceMUS.Size(v.Vector)
	size += ord.String.Size(v.ModelVersion)
	return
}
