package core

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// NormalizeText canonicalizes text before hashing so that formatting
// differences (case, whitespace runs) do not defeat cache sharing.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// ContentHash returns the deterministic hash of normalized text. Identical
// text across jobs produces the same hash and therefore shares cached
// embeddings.
func ContentHash(text string) ID {
	return IDFromContent(NormalizeText(text))
}

// EmbeddingCacheKey builds the cache key for an embedding vector.
// Format: hash(normalized_text) + "|" + model_version.
func EmbeddingCacheKey(contentHash ID, modelVersion string) string {
	return fmt.Sprintf("%016x|%s", uint64(contentHash), modelVersion)
}

// PromptHash fingerprints the full context that determines an answer's cache
// identity: job, normalized query, the retrieved segment set, and the prompt
// template version. Segment IDs are sorted so retrieval order does not
// change the key.
func PromptHash(jobID, query string, segmentIDs []ID, templateVersion string) string {
	sorted := slices.Clone(segmentIDs)
	slices.Sort(sorted)

	h, _ := blake2b.New(16, nil)
	h.Write([]byte(jobID))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeText(query)))
	h.Write([]byte{0})
	for _, id := range sorted {
		fmt.Fprintf(h, "%016x", uint64(id))
	}
	h.Write([]byte{0})
	h.Write([]byte(templateVersion))
	return hex.EncodeToString(h.Sum(nil))
}

// SegmentIDFor derives the deterministic segment ID for a job position.
// Reprocessing the same transcript yields identical IDs, which makes index
// upserts idempotent across retries.
func SegmentIDFor(jobID string, orderIndex int) ID {
	return IDFromContent(fmt.Sprintf("%s#%d", jobID, orderIndex))
}
