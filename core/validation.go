package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// supportedMediaExtensions is the accepted upload set.
var supportedMediaExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".mp4":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
}

// ValidateSourceRef checks that the source media has a supported extension.
// Anything else is malformed input and is rejected at submit time.
func ValidateSourceRef(sourceRef string) error {
	ext := strings.ToLower(filepath.Ext(sourceRef))
	if !supportedMediaExtensions[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedMedia, ext)
	}
	return nil
}

// ValidateTranscript validates the transcription stage's output.
// An empty transcript is fatal for the job.
func ValidateTranscript(t *Transcript) error {
	if t == nil {
		return fmt.Errorf("%w: transcript is nil", ErrMalformedInput)
	}
	if len(t.Segments) == 0 || strings.TrimSpace(t.Text) == "" {
		return ErrEmptyTranscript
	}
	for i, seg := range t.Segments {
		if seg.End < seg.Start {
			return fmt.Errorf("%w: transcript segment %d ends before it starts", ErrMalformedInput, i)
		}
	}
	return nil
}

// ValidateChapters checks the chapter coverage invariant: chapters are
// contiguous, non-overlapping, and cover all segment order indices from 0
// to segmentCount-1 with no gaps.
func ValidateChapters(chapters []Chapter, segmentCount int) error {
	if segmentCount == 0 {
		return fmt.Errorf("%w: zero segments", ErrMalformedInput)
	}
	if len(chapters) == 0 {
		return fmt.Errorf("%w: no chapters for %d segments", ErrConsistency, segmentCount)
	}
	if chapters[0].StartSegment != 0 {
		return fmt.Errorf("%w: first chapter starts at %d", ErrConsistency, chapters[0].StartSegment)
	}
	for i, ch := range chapters {
		if ch.EndSegment < ch.StartSegment {
			return fmt.Errorf("%w: chapter %d ends before it starts", ErrConsistency, i)
		}
		if i > 0 && ch.StartSegment != chapters[i-1].EndSegment+1 {
			return fmt.Errorf("%w: gap or overlap between chapters %d and %d", ErrConsistency, i-1, i)
		}
	}
	if last := chapters[len(chapters)-1].EndSegment; last != segmentCount-1 {
		return fmt.Errorf("%w: last chapter ends at %d, want %d", ErrConsistency, last, segmentCount-1)
	}
	return nil
}
