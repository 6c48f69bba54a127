package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Hello World", "hello world"},
		{"collapses whitespace runs", "hello   \t world", "hello world"},
		{"trims edges", "  hello world  ", "hello world"},
		{"newlines count as whitespace", "hello\nworld", "hello world"},
		{"empty input", "", ""},
		{"whitespace only", "   \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeText(tt.input))
		})
	}
}

func TestContentHashSharesAcrossFormatting(t *testing.T) {
	a := ContentHash("The quarterly review went well.")
	b := ContentHash("the   quarterly REVIEW went well.")
	c := ContentHash("the quarterly review went badly.")

	assert.Equal(t, a, b, "formatting variants must hash identically")
	assert.NotEqual(t, a, c)
}

func TestIDFromContentIsDeterministic(t *testing.T) {
	first := IDFromContent("some content")
	second := IDFromContent("some content")
	assert.Equal(t, first, second)
	assert.NotZero(t, first)
}

func TestEmbeddingCacheKey(t *testing.T) {
	hash := ContentHash("shared text")
	key := EmbeddingCacheKey(hash, "embeddinggemma")
	assert.Equal(t, fmt.Sprintf("%016x|embeddinggemma", uint64(hash)), key)

	other := EmbeddingCacheKey(hash, "text-embedding-3-small")
	assert.NotEqual(t, key, other, "different model versions must not share entries")
}

func TestPromptHashIgnoresRetrievalOrder(t *testing.T) {
	ids := []ID{42, 7, 1000}
	reversed := []ID{1000, 7, 42}

	a := PromptHash("job-1", "what happened?", ids, "answer-v1")
	b := PromptHash("job-1", "What  Happened?", reversed, "answer-v1")
	assert.Equal(t, a, b, "segment order and query formatting must not change the key")
}

func TestPromptHashSensitivity(t *testing.T) {
	ids := []ID{1, 2, 3}
	base := PromptHash("job-1", "query", ids, "answer-v1")

	assert.NotEqual(t, base, PromptHash("job-2", "query", ids, "answer-v1"))
	assert.NotEqual(t, base, PromptHash("job-1", "other query", ids, "answer-v1"))
	assert.NotEqual(t, base, PromptHash("job-1", "query", []ID{1, 2}, "answer-v1"))
	assert.NotEqual(t, base, PromptHash("job-1", "query", ids, "answer-v2"))
}

func TestPromptHashDoesNotMutateInput(t *testing.T) {
	ids := []ID{9, 3, 6}
	PromptHash("job-1", "query", ids, "answer-v1")
	assert.Equal(t, []ID{9, 3, 6}, ids)
}

func TestSegmentIDFor(t *testing.T) {
	require.Equal(t, SegmentIDFor("job-1", 0), SegmentIDFor("job-1", 0),
		"reprocessing must yield identical IDs")
	assert.NotEqual(t, SegmentIDFor("job-1", 0), SegmentIDFor("job-1", 1))
	assert.NotEqual(t, SegmentIDFor("job-1", 0), SegmentIDFor("job-2", 0))
}
