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


package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/mediamind/ai"
	"github.com/poiesic/mediamind/cache"
	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/segment"
	"github.com/poiesic/mediamind/storage"
)

// consumerGroup is the stage workers' shared consumer group name. Committed
// offsets persist under it, so a restarted pipeline resumes where it left off.
const consumerGroup = "pipeline"

// Pipeline owns the four stage workers and the embedding fan-out pool.
// Stages run independently; per-job ordering comes solely from ledger
// transitions gating each next-stage publish.
type Pipeline struct {
	ledger    storage.Ledger
	artifacts storage.ArtifactStore
	bus       storage.MessageBus
	index     storage.VectorIndex
	cache     *cache.Cache
	provider  ai.AIProvider

	segmenter *segment.Segmenter
	detector  *segment.ChapterDetector
	embedPool *ants.Pool

	maxAttempts       int
	baseDelay         time.Duration
	capabilityTimeout time.Duration
	embeddingTTL      time.Duration
	logger            *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the embedding fan-out pool size, which bounds per-job
// embedding parallelism. Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.embedPool != nil {
			p.embedPool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embedPool = pool
		return nil
	}
}

// WithMaxAttempts sets the per-message retry budget for transient failures.
// Default is 3.
func WithMaxAttempts(attempts int) Option {
	return func(p *Pipeline) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the base backoff delay between retries.
// Default is 200ms.
func WithBaseDelay(delay time.Duration) Option {
	return func(p *Pipeline) error {
		if delay > 0 {
			p.baseDelay = delay
		}
		return nil
	}
}

// WithCapabilityTimeout bounds each external capability call (transcription,
// embedding). An expired deadline counts as a transient failure.
// Default is 5 minutes.
func WithCapabilityTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) error {
		if timeout > 0 {
			p.capabilityTimeout = timeout
		}
		return nil
	}
}

// WithEmbeddingTTL sets the cache TTL for embedding vectors.
// Default is 24 hours.
func WithEmbeddingTTL(ttl time.Duration) Option {
	return func(p *Pipeline) error {
		p.embeddingTTL = ttl
		return nil
	}
}

// WithSegmenter replaces the default segmenter.
func WithSegmenter(s *segment.Segmenter) Option {
	return func(p *Pipeline) error {
		if s != nil {
			p.segmenter = s
		}
		return nil
	}
}

// WithChapterDetector replaces the default chapter detector.
func WithChapterDetector(d *segment.ChapterDetector) Option {
	return func(p *Pipeline) error {
		if d != nil {
			p.detector = d
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline over the given services. If no segmenter is
// injected, the default tiktoken-backed one is constructed.
func NewPipeline(
	ledger storage.Ledger,
	artifacts storage.ArtifactStore,
	bus storage.MessageBus,
	index storage.VectorIndex,
	cache *cache.Cache,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if artifacts == nil {
		return nil, ErrArtifactStoreRequired
	}
	if bus == nil {
		return nil, ErrBusRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if cache == nil {
		return nil, ErrCacheRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	embedPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		ledger:            ledger,
		artifacts:         artifacts,
		bus:               bus,
		index:             index,
		cache:             cache,
		provider:          provider,
		detector:          segment.NewChapterDetector(),
		embedPool:         embedPool,
		maxAttempts:       3,
		baseDelay:         200 * time.Millisecond,
		capabilityTimeout: 5 * time.Minute,
		embeddingTTL:      24 * time.Hour,
		logger:            slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.embedPool.Release()
			return nil, optErr
		}
	}

	if p.segmenter == nil {
		segmenter, err := segment.NewSegmenter(segment.WithLogger(p.logger))
		if err != nil {
			p.embedPool.Release()
			return nil, err
		}
		p.segmenter = segmenter
	}

	return p, nil
}

// handlerFunc processes one stage message. It must be idempotent under
// redelivery.
type handlerFunc func(ctx context.Context, msg *core.Message) error

// Start subscribes each stage worker to its topic and launches the consume
// loops. It returns after all subscriptions are established; workers run
// until ctx is canceled or Release is called.
func (p *Pipeline) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	stages := []struct {
		stage core.Stage
		fn    handlerFunc
	}{
		{core.StageTranscription, p.handleTranscription},
		{core.StageSegmentation, p.handleSegmentation},
		{core.StageEmbedding, p.handleEmbedding},
		{core.StageIndexing, p.handleIndexing},
	}

	for _, st := range stages {
		sub, err := p.bus.Subscribe(ctx, st.stage.String(), consumerGroup)
		if err != nil {
			cancel()
			return err
		}
		p.wg.Add(1)
		go p.consume(ctx, sub, st.stage, st.fn)
	}

	p.logger.Info("pipeline started", "stages", len(stages))
	return nil
}

// Release stops the stage workers and releases the embedding pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.embedPool.Release()
}
