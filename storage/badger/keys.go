package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/mediamind/core"
)

// Key prefixes for different data types
const (
	jobPrefix        = "job"
	artifactPrefix   = "art"
	busTopicPrefix   = "bus"
	busOffsetPrefix  = "busoff"
	deadLetterPrefix = "dlq"
	deadLetterSeq    = "dlqseq"
	indexPrefix      = "idx"
)

// makeJobKey generates a key for a job ledger record.
func makeJobKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", jobPrefix, id))
}

// makeArtifactKey generates a key for an artifact blob.
// Format: prefix:jobID:kind
func makeArtifactKey(jobID, kind string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", artifactPrefix, jobID, kind))
}

// makeTopicKey generates a composite key for one message in a topic log.
// The sequence number is written BigEndian so lexicographic iteration
// yields publish order.
func makeTopicKey(topic string, seq uint64) []byte {
	prefix := makeTopicPrefix(topic)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeTopicPrefix generates the iteration prefix for a topic log.
func makeTopicPrefix(topic string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", busTopicPrefix, topic))
}

// topicKeySeq extracts the sequence number from a topic log key.
func topicKeySeq(key []byte, topic string) uint64 {
	prefixLen := len(makeTopicPrefix(topic))
	if len(key) < prefixLen+8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[prefixLen:])
}

// makeOffsetKey generates a key for a consumer group's committed position.
func makeOffsetKey(topic, group string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", busOffsetPrefix, topic, group))
}

// makeDeadLetterKey generates a key for one dead letter record.
func makeDeadLetterKey(seq uint64) []byte {
	prefix := []byte(deadLetterPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeIndexEntryKey generates a composite key for one index entry.
// Format: prefix:jobID:segmentID, segment ID BigEndian so partition scans
// visit entries in ascending segment order.
func makeIndexEntryKey(jobID string, segmentID core.ID) []byte {
	prefix := makeIndexPartitionPrefix(jobID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(segmentID))
	return buf
}

// makeIndexPartitionPrefix generates the iteration prefix for a job's
// index partition.
func makeIndexPartitionPrefix(jobID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", indexPrefix, jobID))
}
