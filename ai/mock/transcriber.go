package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/mediamind/core"
)

// MockTranscriber is a test double for ai.Transcriber.
// It allows custom behavior injection via function fields.
type MockTranscriber struct {
	// TranscribeFunc is called by Transcribe if set.
	// If nil, uses default deterministic behavior.
	TranscribeFunc func(ctx context.Context, sourceRef string) (*core.Transcript, error)

	mu        sync.Mutex
	callCount int
}

// NewMockTranscriber creates a mock transcriber with default deterministic behavior.
// Note: Returns concrete type to allow test assertions via call counters.
func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{}
}

// Transcribe returns a synthetic three-utterance transcript derived from the
// source ref, so the same input always produces the same transcript.
func (m *MockTranscriber) Transcribe(ctx context.Context, sourceRef string) (*core.Transcript, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, sourceRef)
	}

	lines := []string{
		"Welcome, and thanks for joining the session.",
		"Today we walk through the architecture of the ingestion service.",
		"Questions are welcome at any point.",
	}
	transcript := &core.Transcript{
		Text:     strings.Join(lines, " "),
		Language: "en",
	}
	for i, line := range lines {
		transcript.Segments = append(transcript.Segments, core.TranscriptSegment{
			Start: float64(i) * 5,
			End:   float64(i)*5 + 4.5,
			Text:  line,
		})
	}
	return transcript, nil
}

// CallCount returns the number of times Transcribe was called.
func (m *MockTranscriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockTranscriber) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.TranscribeFunc = nil
}
