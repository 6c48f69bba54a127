// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/mediamind/core"
)

// MarshalJob serializes a Job ledger record to bytes.
func MarshalJob(job *core.Job) []byte {
	buf := make([]byte, core.JobMUS.Size(*job))
	core.JobMUS.Marshal(*job, buf)
	return buf
}

// UnmarshalJob deserializes a Job ledger record from bytes.
func UnmarshalJob(data []byte) (*core.Job, error) {
	job, _, err := core.JobMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarshalMessage serializes a bus Message to bytes.
func MarshalMessage(msg *core.Message) []byte {
	buf := make([]byte, core.MessageMUS.Size(*msg))
	core.MessageMUS.Marshal(*msg, buf)
	return buf
}

// UnmarshalMessage deserializes a bus Message from bytes.
func UnmarshalMessage(data []byte) (*core.Message, error) {
	msg, _, err := core.MessageMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarshalDeadLetter serializes a DeadLetter to bytes.
func MarshalDeadLetter(dl *core.DeadLetter) []byte {
	buf := make([]byte, core.DeadLetterMUS.Size(*dl))
	core.DeadLetterMUS.Marshal(*dl, buf)
	return buf
}

// UnmarshalDeadLetter deserializes a DeadLetter from bytes.
func UnmarshalDeadLetter(data []byte) (*core.DeadLetter, error) {
	dl, _, err := core.DeadLetterMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &dl, nil
}

// MarshalIndexEntry serializes an IndexEntry to bytes.
func MarshalIndexEntry(entry *core.IndexEntry) []byte {
	buf := make([]byte, core.IndexEntryMUS.Size(*entry))
	core.IndexEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalIndexEntry deserializes an IndexEntry from bytes.
func UnmarshalIndexEntry(data []byte) (*core.IndexEntry, error) {
	entry, _, err := core.IndexEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarshalEmbeddingVector serializes an EmbeddingVector cache value to bytes.
func MarshalEmbeddingVector(v *core.EmbeddingVector) []byte {
	buf := make([]byte, core.EmbeddingVectorMUS.Size(*v))
	core.EmbeddingVectorMUS.Marshal(*v, buf)
	return buf
}

// UnmarshalEmbeddingVector deserializes an EmbeddingVector from bytes.
func UnmarshalEmbeddingVector(data []byte) (*core.EmbeddingVector, error) {
	v, _, err := core.EmbeddingVectorMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// MarshalOffset serializes a consumer group offset to bytes.
func MarshalOffset(pos uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, pos)
	return buf
}

// UnmarshalOffset deserializes a consumer group offset from bytes.
func UnmarshalOffset(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: offset record has %d bytes", ErrSerializationFailed, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
