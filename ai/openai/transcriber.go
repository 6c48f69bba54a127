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


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/mediamind/ai"
	"github.com/poiesic/mediamind/core"
)

// Transcriber implements ai.Transcriber against a whisper-compatible
// OpenAI audio transcription endpoint (POST {host}/audio/transcriptions
// with verbose_json output).
type Transcriber struct {
	host   string
	model  string
	client *http.Client
	logger *slog.Logger
}

// transcriptionResponse mirrors the verbose_json response shape.
type transcriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// newTranscriber is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newTranscriber(config *ai.Config) (*Transcriber, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Transcriber{
		host:  config.TranscriptionHost,
		model: config.TranscriptionModel,
		// Transcription of long media is slow; the per-request context still
		// bounds individual calls.
		client: &http.Client{Timeout: 30 * time.Minute},
		logger: slog.Default().With("component", "openai-transcriber"),
	}, nil
}

// NewTranscriber creates a new transcriber using the provided configuration.
//
// Returns ai.Transcriber interface to enforce abstraction.
func NewTranscriber(config *ai.Config) (ai.Transcriber, error) {
	return newTranscriber(config)
}

// Transcribe uploads the media file and parses the timed transcript.
// Network and server-side failures are reported as transient so callers
// can retry; client-side rejections are not.
func (t *Transcriber) Transcribe(ctx context.Context, sourceRef string) (*core.Transcript, error) {
	file, err := os.Open(sourceRef)
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	defer file.Close()

	// Stream the multipart body instead of buffering the media in memory.
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			part, err := form.CreateFormFile("file", filepath.Base(sourceRef))
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, file); err != nil {
				return err
			}
			if err := form.WriteField("model", t.model); err != nil {
				return err
			}
			if err := form.WriteField("response_format", "verbose_json"); err != nil {
				return err
			}
			return form.Close()
		}()
		pw.CloseWithError(err)
	}()

	url := t.host + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	t.logger.Debug("uploading media for transcription", "source", sourceRef)
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, core.Transient(fmt.Errorf("transcription request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, core.Transient(err)
		}
		return nil, err
	}

	var parsed transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}

	transcript := &core.Transcript{
		Text:     parsed.Text,
		Language: parsed.Language,
		Segments: make([]core.TranscriptSegment, 0, len(parsed.Segments)),
	}
	for _, s := range parsed.Segments {
		transcript.Segments = append(transcript.Segments, core.TranscriptSegment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}

	t.logger.Debug("transcription complete",
		"source", sourceRef,
		"language", transcript.Language,
		"segments", len(transcript.Segments))
	return transcript, nil
}
