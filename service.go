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


package mediamind

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/mediamind/ai"
	"github.com/poiesic/mediamind/ai/openai"
	"github.com/poiesic/mediamind/answer"
	"github.com/poiesic/mediamind/cache"
	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/pipeline"
	"github.com/poiesic/mediamind/storage"
	"github.com/poiesic/mediamind/storage/badger"
)

// DefaultCacheCapacity bounds the shared embedding/answer cache.
const DefaultCacheCapacity = cache.DefaultCapacity

// Service is the embedded gateway surface: submit media, watch status, ask
// questions. It owns the storage backend, the stage workers and the shared
// cache.
type Service struct {
	backend   *badger.Backend
	ledger    storage.Ledger
	artifacts storage.ArtifactStore
	bus       storage.MessageBus
	index     storage.VectorIndex
	cache     *cache.Cache
	provider  ai.AIProvider
	pipeline  *pipeline.Pipeline
	answerer  *answer.Answerer
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig      *ai.Config
	provider      ai.AIProvider
	cacheCapacity int64
	cacheOpts     []cache.Option
	pipelineOpts  []pipeline.Option
	answerOpts    []answer.Option
	inMemory      bool
}

// WithAIConfig sets the configuration for the OpenAI-compatible provider.
// Ignored when WithProvider is also given.
func WithAIConfig(cfg *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithProvider injects a pre-built AI provider, bypassing the OpenAI client
// construction. Tests use this with ai/mock.
func WithProvider(provider ai.AIProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithCacheCapacity sets the cache size bound in bytes.
// Default is DefaultCacheCapacity.
func WithCacheCapacity(capacity int64) ServiceOption {
	return func(o *serviceOptions) {
		if capacity > 0 {
			o.cacheCapacity = capacity
		}
	}
}

// WithCacheOptions forwards options to the shared cache.
func WithCacheOptions(opts ...cache.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}

// WithPipelineOptions forwards options to the stage workers.
func WithPipelineOptions(opts ...pipeline.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// WithAnswerOptions forwards options to the answerer.
func WithAnswerOptions(opts ...answer.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.answerOpts = append(o.answerOpts, opts...)
	}
}

// WithInMemory opens the storage backend in memory, used by tests.
func WithInMemory() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// NewService opens the storage backend at filePath and wires the ledger,
// artifact store, bus, index, cache, stage workers and answerer.
func NewService(filePath string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig:      ai.DefaultConfig(),
		cacheCapacity: DefaultCacheCapacity,
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	ledger, err := badger.NewLedger(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	artifacts, err := badger.NewArtifactStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	bus, err := badger.NewBus(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	index, err := badger.NewVectorIndex(backend)
	if err != nil {
		bus.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			bus.Close()
			backend.Close()
			return nil, err
		}
	}

	c := cache.New(options.cacheCapacity, options.cacheOpts...)

	pipe, err := pipeline.NewPipeline(ledger, artifacts, bus, index, c, provider, options.pipelineOpts...)
	if err != nil {
		provider.Close()
		bus.Close()
		backend.Close()
		return nil, err
	}

	answerer, err := answer.NewAnswerer(ledger, artifacts, index, c, provider, options.answerOpts...)
	if err != nil {
		pipe.Release()
		provider.Close()
		bus.Close()
		backend.Close()
		return nil, err
	}

	return &Service{
		backend:   backend,
		ledger:    ledger,
		artifacts: artifacts,
		bus:       bus,
		index:     index,
		cache:     c,
		provider:  provider,
		pipeline:  pipe,
		answerer:  answerer,
		logger:    slog.Default().With("component", "service"),
	}, nil
}

// Start launches the stage workers. Jobs submitted before Start are picked
// up from the durable bus once the workers subscribe.
func (s *Service) Start(ctx context.Context) error {
	return s.pipeline.Start(ctx)
}

// SubmitJob accepts a media file for processing and returns the new job ID.
// Unsupported extensions are rejected as malformed input before anything is
// persisted.
func (s *Service) SubmitJob(ctx context.Context, sourceRef string) (string, error) {
	if err := core.ValidateSourceRef(sourceRef); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	job := &core.Job{
		ID:               uuid.NewString(),
		SourceRef:        sourceRef,
		OriginalFilename: filepath.Base(sourceRef),
		Size:             sourceSize(sourceRef),
		Status:           core.JobCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.ledger.CreateJob(ctx, job); err != nil {
		return "", err
	}

	if err := s.bus.Publish(ctx, core.StageTranscription.String(), &core.Message{
		JobID:       job.ID,
		Stage:       core.StageTranscription,
		ArtifactRef: sourceRef,
		Attempt:     1,
		EnqueuedAt:  now,
	}); err != nil {
		return "", err
	}

	s.logger.Info("job submitted", "job_id", job.ID, "source", sourceRef)
	return job.ID, nil
}

// RetryJob re-opens a failed job at the stage that failed. The stage error
// history is kept; a fresh message is published so the running workers pick
// the job up again. Only failed jobs can be retried.
func (s *Service) RetryJob(ctx context.Context, jobID string) error {
	job, err := s.ledger.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != core.JobFailed {
		return fmt.Errorf("%w: job %s is %s, only failed jobs retry", core.ErrInvalidTransition, jobID, job.Status)
	}

	stage := core.StageTranscription
	if n := len(job.StageErrors); n > 0 {
		stage = job.StageErrors[n-1].Stage
	}

	var (
		restart     core.JobStatus
		artifactRef string
	)
	switch stage {
	case core.StageTranscription:
		restart = core.JobCreated
		artifactRef = job.SourceRef
	case core.StageSegmentation:
		restart = core.JobSegmenting
	case core.StageEmbedding:
		restart = core.JobEmbedding
	case core.StageIndexing:
		// A failed indexing pass may have written part of the partition.
		if err := s.index.DropPartition(ctx, jobID); err != nil {
			return err
		}
		restart = core.JobIndexing
	default:
		return fmt.Errorf("%w: job %s failed in unknown stage %d", core.ErrConsistency, jobID, stage)
	}

	if _, err := s.ledger.Update(ctx, jobID, func(job *core.Job) error {
		job.Status = restart
		return nil
	}); err != nil {
		return err
	}

	if err := s.bus.Publish(ctx, stage.String(), &core.Message{
		JobID:       jobID,
		Stage:       stage,
		ArtifactRef: artifactRef,
		Attempt:     1,
		EnqueuedAt:  time.Now().UTC(),
	}); err != nil {
		return err
	}

	s.logger.Info("job retried", "job_id", jobID, "stage", stage.String())
	return nil
}

// sourceSize returns the upload's size in bytes. Non-local source refs
// (remote URIs, fixtures) record zero.
func sourceSize(sourceRef string) int64 {
	info, err := os.Stat(sourceRef)
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

// GetStatus returns the job's ledger record, including stage errors for
// failed jobs.
func (s *Service) GetStatus(ctx context.Context, jobID string) (*core.Job, error) {
	return s.ledger.GetJob(ctx, jobID)
}

// Ask answers a query against a ready job. Unready jobs yield
// core.ErrNotReady, failed jobs core.ErrJobFailed.
func (s *Service) Ask(ctx context.Context, jobID, query string) (*core.Answer, error) {
	return s.answerer.Ask(ctx, jobID, query)
}

// DeadLetters lists messages that exhausted their retry budget, for
// operator inspection.
func (s *Service) DeadLetters(ctx context.Context) ([]*core.DeadLetter, error) {
	return s.bus.DeadLetters(ctx)
}

// Chapters returns the detected chapter spans for a job whose segmentation
// has completed.
func (s *Service) Chapters(ctx context.Context, jobID string) ([]core.Chapter, error) {
	data, err := s.artifacts.GetArtifact(ctx, jobID, storage.ArtifactChapters)
	if err != nil {
		return nil, err
	}
	var chapters []core.Chapter
	if err := json.Unmarshal(data, &chapters); err != nil {
		return nil, err
	}
	return chapters, nil
}

// Transcript returns a job's transcript artifact.
func (s *Service) Transcript(ctx context.Context, jobID string) (*core.Transcript, error) {
	data, err := s.artifacts.GetArtifact(ctx, jobID, storage.ArtifactTranscript)
	if err != nil {
		return nil, err
	}
	var transcript core.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, err
	}
	return &transcript, nil
}

// CacheStats returns cumulative cache hit and miss counts.
func (s *Service) CacheStats() (hits, misses uint64) {
	return s.cache.Stats()
}

// Close stops the stage workers and releases all owned resources.
func (s *Service) Close() error {
	s.pipeline.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.bus.Close(); err != nil {
		s.logger.Error("error closing message bus", "err", err)
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
