package segment

import (
	"log/slog"
	"strings"

	"github.com/poiesic/mediamind/core"
)

// DefaultTokenBudget is the maximum token count of a segment unless a
// sentence alone exceeds it.
const DefaultTokenBudget = 256

// DefaultEncoding is the tiktoken encoding used when no counter is injected.
const DefaultEncoding = "cl100k_base"

// Segmenter batches transcript sentences into ordered segments under a token
// budget. Batching is greedy and order-preserving: sentences are appended to
// the current segment until the next one would overflow the budget. A single
// sentence larger than the budget becomes a segment of its own rather than
// being split.
type Segmenter struct {
	counter TokenCounter
	budget  int
	logger  *slog.Logger
}

// Option configures a Segmenter.
type Option func(*Segmenter) error

// WithTokenCounter sets the token counter.
// Default is a tiktoken counter for DefaultEncoding.
func WithTokenCounter(counter TokenCounter) Option {
	return func(s *Segmenter) error {
		if counter == nil {
			return ErrTokenCounterRequired
		}
		s.counter = counter
		return nil
	}
}

// WithTokenBudget sets the per-segment token budget.
// Default is DefaultTokenBudget. Values below 1 are ignored.
func WithTokenBudget(budget int) Option {
	return func(s *Segmenter) error {
		if budget >= 1 {
			s.budget = budget
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Segmenter) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSegmenter creates a segmenter. If no token counter is injected, a
// tiktoken counter for DefaultEncoding is constructed.
func NewSegmenter(opts ...Option) (*Segmenter, error) {
	s := &Segmenter{
		budget: DefaultTokenBudget,
		logger: slog.Default().With("component", "segmenter"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.counter == nil {
		counter, err := NewTiktokenCounter(DefaultEncoding)
		if err != nil {
			return nil, err
		}
		s.counter = counter
	}
	return s, nil
}

// Segment validates the transcript and batches its sentences into segments.
// Segment IDs and content hashes are derived deterministically, so repeating
// the call for the same job and transcript yields identical segments.
func (s *Segmenter) Segment(jobID string, transcript *core.Transcript) ([]*core.Segment, error) {
	if err := core.ValidateTranscript(transcript); err != nil {
		return nil, err
	}

	var parts []string
	for _, utterance := range transcript.Segments {
		if t := strings.TrimSpace(utterance.Text); t != "" {
			parts = append(parts, t)
		}
	}
	sentences := SplitSentences(strings.Join(parts, " "))
	if len(sentences) == 0 {
		return nil, core.ErrEmptyTranscript
	}

	var segments []*core.Segment
	var batch []string
	batchTokens := 0

	flush := func() {
		if len(batch) == 0 {
			return
		}
		text := strings.Join(batch, " ")
		idx := len(segments)
		segments = append(segments, &core.Segment{
			ID:          core.SegmentIDFor(jobID, idx),
			JobID:       jobID,
			OrderIndex:  idx,
			Text:        text,
			TokenCount:  batchTokens,
			ContentHash: core.ContentHash(text),
		})
		batch = nil
		batchTokens = 0
	}

	for _, sentence := range sentences {
		tokens, err := s.counter.Count(sentence)
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 && batchTokens+tokens > s.budget {
			flush()
		}
		batch = append(batch, sentence)
		batchTokens += tokens
	}
	flush()

	s.logger.Debug("transcript segmented",
		"job_id", jobID,
		"sentences", len(sentences),
		"segments", len(segments))
	return segments, nil
}
