package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSourceRef(t *testing.T) {
	tests := []struct {
		name      string
		sourceRef string
		wantErr   bool
	}{
		{"mp3 accepted", "/uploads/meeting.mp3", false},
		{"wav accepted", "recording.wav", false},
		{"mp4 accepted", "/media/talk.mp4", false},
		{"m4a accepted", "voice-memo.m4a", false},
		{"flac accepted", "session.flac", false},
		{"uppercase extension accepted", "/uploads/MEETING.MP3", false},
		{"pdf rejected", "/uploads/report.pdf", true},
		{"no extension rejected", "/uploads/mystery", true},
		{"empty rejected", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSourceRef(tt.sourceRef)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedMedia)
				assert.ErrorIs(t, err, ErrMalformedInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTranscript(t *testing.T) {
	valid := &Transcript{
		JobID: "job-1",
		Text:  "hello world",
		Segments: []TranscriptSegment{
			{Start: 0, End: 1.5, Text: "hello world"},
		},
	}
	assert.NoError(t, ValidateTranscript(valid))

	t.Run("nil transcript", func(t *testing.T) {
		assert.ErrorIs(t, ValidateTranscript(nil), ErrMalformedInput)
	})

	t.Run("no segments", func(t *testing.T) {
		err := ValidateTranscript(&Transcript{Text: "hello"})
		assert.ErrorIs(t, err, ErrEmptyTranscript)
	})

	t.Run("blank text", func(t *testing.T) {
		err := ValidateTranscript(&Transcript{
			Text:     "   ",
			Segments: []TranscriptSegment{{Start: 0, End: 1}},
		})
		assert.ErrorIs(t, err, ErrEmptyTranscript)
	})

	t.Run("segment ends before it starts", func(t *testing.T) {
		err := ValidateTranscript(&Transcript{
			Text:     "hello",
			Segments: []TranscriptSegment{{Start: 2.0, End: 1.0, Text: "hello"}},
		})
		assert.ErrorIs(t, err, ErrMalformedInput)
	})
}

func TestValidateChapters(t *testing.T) {
	tests := []struct {
		name         string
		chapters     []Chapter
		segmentCount int
		wantErr      error
	}{
		{
			name:         "single chapter covers everything",
			chapters:     []Chapter{{StartSegment: 0, EndSegment: 4}},
			segmentCount: 5,
		},
		{
			name: "contiguous chapters",
			chapters: []Chapter{
				{StartSegment: 0, EndSegment: 2},
				{StartSegment: 3, EndSegment: 6},
			},
			segmentCount: 7,
		},
		{
			name:         "zero segments",
			chapters:     nil,
			segmentCount: 0,
			wantErr:      ErrMalformedInput,
		},
		{
			name:         "no chapters",
			chapters:     nil,
			segmentCount: 3,
			wantErr:      ErrConsistency,
		},
		{
			name:         "first chapter starts late",
			chapters:     []Chapter{{StartSegment: 1, EndSegment: 2}},
			segmentCount: 3,
			wantErr:      ErrConsistency,
		},
		{
			name: "gap between chapters",
			chapters: []Chapter{
				{StartSegment: 0, EndSegment: 1},
				{StartSegment: 3, EndSegment: 4},
			},
			segmentCount: 5,
			wantErr:      ErrConsistency,
		},
		{
			name: "overlapping chapters",
			chapters: []Chapter{
				{StartSegment: 0, EndSegment: 2},
				{StartSegment: 2, EndSegment: 4},
			},
			segmentCount: 5,
			wantErr:      ErrConsistency,
		},
		{
			name:         "last chapter falls short",
			chapters:     []Chapter{{StartSegment: 0, EndSegment: 2}},
			segmentCount: 5,
			wantErr:      ErrConsistency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChapters(tt.chapters, tt.segmentCount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
