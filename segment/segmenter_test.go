package segment

import (
	"strings"
	"testing"

	"github.com/poiesic/mediamind/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCounter counts whitespace-separated words, giving tests a budget unit
// that needs no tokenizer data files.
type wordCounter struct{}

func (wordCounter) Count(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

func makeTranscript(lines ...string) *core.Transcript {
	t := &core.Transcript{
		Text:     strings.Join(lines, " "),
		Language: "en",
	}
	for i, line := range lines {
		t.Segments = append(t.Segments, core.TranscriptSegment{
			Start: float64(i) * 5,
			End:   float64(i)*5 + 4.5,
			Text:  line,
		})
	}
	return t
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "basic terminators",
			text: "Hello world. How are you? Fine!",
			want: []string{"Hello world.", "How are you?", "Fine!"},
		},
		{
			name: "decimal point is not a boundary",
			text: "Version 3.5 shipped today. Everyone cheered.",
			want: []string{"Version 3.5 shipped today.", "Everyone cheered."},
		},
		{
			name: "terminator runs stay attached",
			text: "Really?! Yes.",
			want: []string{"Really?!", "Yes."},
		},
		{
			name: "closing quote stays with its sentence",
			text: `He said "stop." Then he left.`,
			want: []string{`He said "stop."`, "Then he left."},
		},
		{
			name: "no trailing terminator",
			text: "First point. second point without punctuation",
			want: []string{"First point.", "second point without punctuation"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.text))
		})
	}
}

func TestSegmentBatchesUnderTokenBudget(t *testing.T) {
	seg, err := NewSegmenter(WithTokenCounter(wordCounter{}), WithTokenBudget(12))
	require.NoError(t, err)

	transcript := makeTranscript(
		"The quick brown fox jumps over the lazy dog.", // 9 words
		"It was a bright cold day in April.",           // 8 words
		"The clocks were striking thirteen.",           // 5 words
	)

	segments, err := seg.Segment("job-1", transcript)
	require.NoError(t, err)
	require.Len(t, segments, 3, "no two sentences fit in a 12-word budget together")

	for i, s := range segments {
		assert.Equal(t, i, s.OrderIndex)
		assert.Equal(t, "job-1", s.JobID)
		assert.Equal(t, core.SegmentIDFor("job-1", i), s.ID)
		assert.Equal(t, core.ContentHash(s.Text), s.ContentHash)
		assert.LessOrEqual(t, s.TokenCount, 12)
	}
	assert.Equal(t, "The quick brown fox jumps over the lazy dog.", segments[0].Text)
	assert.Equal(t, "The clocks were striking thirteen.", segments[2].Text)
}

func TestSegmentMergesSentencesWithinBudget(t *testing.T) {
	seg, err := NewSegmenter(WithTokenCounter(wordCounter{}), WithTokenBudget(15))
	require.NoError(t, err)

	transcript := makeTranscript(
		"One two three.",  // 3 words
		"Four five six.",  // 3 words
		"Seven eight.",    // 2 words
		"Nine ten eleven twelve thirteen fourteen fifteen sixteen.", // 8 words
	)

	segments, err := seg.Segment("job-1", transcript)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "One two three. Four five six. Seven eight. Nine ten eleven twelve thirteen fourteen fifteen sixteen.", segments[0].Text+" "+segments[1].Text)
	assert.Equal(t, 8, segments[0].TokenCount)
	assert.Equal(t, 8, segments[1].TokenCount)
}

func TestSegmentNeverSplitsOversizedSentence(t *testing.T) {
	seg, err := NewSegmenter(WithTokenCounter(wordCounter{}), WithTokenBudget(3))
	require.NoError(t, err)

	transcript := makeTranscript("This single sentence is far longer than the budget allows.")

	segments, err := seg.Segment("job-1", transcript)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Greater(t, segments[0].TokenCount, 3)
}

func TestSegmentIsDeterministic(t *testing.T) {
	seg, err := NewSegmenter(WithTokenCounter(wordCounter{}), WithTokenBudget(10))
	require.NoError(t, err)

	transcript := makeTranscript(
		"Alpha beta gamma delta.",
		"Epsilon zeta eta theta.",
		"Iota kappa lambda mu.",
	)

	first, err := seg.Segment("job-1", transcript)
	require.NoError(t, err)
	second, err := seg.Segment("job-1", transcript)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSegmentRejectsEmptyTranscript(t *testing.T) {
	seg, err := NewSegmenter(WithTokenCounter(wordCounter{}))
	require.NoError(t, err)

	_, err = seg.Segment("job-1", &core.Transcript{Text: "   "})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedInput)

	_, err = seg.Segment("job-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}
