package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/mediamind/ai"
	"github.com/poiesic/mediamind/cache"
	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/storage"
)

// Answerer serves retrieval-augmented answers for ready jobs.
type Answerer struct {
	ledger    storage.Ledger
	artifacts storage.ArtifactStore
	index     storage.VectorIndex
	cache     *cache.Cache
	embedder  ai.Embedder
	generator ai.AnswerGenerator
	provider  ai.AIProvider

	topK              int
	maxExcerpts       int
	answerTTL         time.Duration
	embeddingTTL      time.Duration
	capabilityTimeout time.Duration
	logger            *slog.Logger
}

// Option configures an Answerer.
type Option func(*Answerer) error

// WithTopK sets how many index matches are retrieved per query.
// Default is 8.
func WithTopK(k int) Option {
	return func(a *Answerer) error {
		if k >= 1 {
			a.topK = k
		}
		return nil
	}
}

// WithMaxExcerpts bounds the number of retrieved segments assembled into the
// generation context. Default is 6.
func WithMaxExcerpts(n int) Option {
	return func(a *Answerer) error {
		if n >= 1 {
			a.maxExcerpts = n
		}
		return nil
	}
}

// WithAnswerTTL sets the cache TTL for generated answers.
// Default is 1 hour.
func WithAnswerTTL(ttl time.Duration) Option {
	return func(a *Answerer) error {
		a.answerTTL = ttl
		return nil
	}
}

// WithEmbeddingTTL sets the cache TTL for query embeddings.
// Default is 24 hours.
func WithEmbeddingTTL(ttl time.Duration) Option {
	return func(a *Answerer) error {
		a.embeddingTTL = ttl
		return nil
	}
}

// WithCapabilityTimeout bounds each embedding and generation call.
// Default is 2 minutes.
func WithCapabilityTimeout(timeout time.Duration) Option {
	return func(a *Answerer) error {
		if timeout > 0 {
			a.capabilityTimeout = timeout
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Answerer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAnswerer creates an answerer over the given services.
func NewAnswerer(
	ledger storage.Ledger,
	artifacts storage.ArtifactStore,
	index storage.VectorIndex,
	c *cache.Cache,
	provider ai.AIProvider,
	opts ...Option,
) (*Answerer, error) {
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if artifacts == nil {
		return nil, ErrArtifactStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if c == nil {
		return nil, ErrCacheRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	a := &Answerer{
		ledger:            ledger,
		artifacts:         artifacts,
		index:             index,
		cache:             c,
		embedder:          provider.Embedder(),
		generator:         provider.AnswerGenerator(),
		provider:          provider,
		topK:              8,
		maxExcerpts:       6,
		answerTTL:         time.Hour,
		embeddingTTL:      24 * time.Hour,
		capabilityTimeout: 2 * time.Minute,
		logger:            slog.Default().With("component", "answerer"),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Ask answers a query against a ready job. Jobs that are still processing
// yield core.ErrNotReady and failed jobs yield core.ErrJobFailed; a partial
// answer is never produced.
func (a *Answerer) Ask(ctx context.Context, jobID, query string) (*core.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	job, err := a.ledger.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch {
	case job.Status == core.JobFailed:
		return nil, core.ErrJobFailed
	case job.Status != core.JobReady:
		return nil, core.ErrNotReady
	}

	queryVector, err := a.queryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := a.index.Nearest(ctx, jobID, queryVector, a.topK)
	if err != nil {
		return nil, err
	}

	segments, err := a.loadSegments(ctx, jobID)
	if err != nil {
		return nil, err
	}

	selected := matches
	if len(selected) > a.maxExcerpts {
		selected = selected[:a.maxExcerpts]
	}
	// Relevance first; equal relevance falls back to transcript order.
	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Score != selected[j].Score {
			return selected[i].Score > selected[j].Score
		}
		si, iok := segments[selected[i].SegmentID]
		sj, jok := segments[selected[j].SegmentID]
		if iok && jok {
			return si.OrderIndex < sj.OrderIndex
		}
		return selected[i].SegmentID < selected[j].SegmentID
	})

	ids := make([]core.ID, 0, len(selected))
	excerpts := make([]string, 0, len(selected))
	for _, match := range selected {
		seg, ok := segments[match.SegmentID]
		if !ok {
			return nil, fmt.Errorf("%w: retrieved segment %d has no stored text", core.ErrConsistency, match.SegmentID)
		}
		ids = append(ids, seg.ID)
		excerpts = append(excerpts, seg.Text)
	}

	promptHash := core.PromptHash(jobID, query, ids, ai.AnswerTemplateVersion)
	if data, ok := a.cache.Get(promptHash); ok {
		var cached core.Answer
		uerr := json.Unmarshal(data, &cached)
		if uerr == nil {
			cached.Cached = true
			a.logger.Debug("answer served from cache", "job_id", jobID, "prompt_hash", promptHash)
			return &cached, nil
		}
		a.logger.Warn("dropping undecodable cached answer", "prompt_hash", promptHash, "err", uerr)
	}

	gctx, cancel := context.WithTimeout(ctx, a.capabilityTimeout)
	text, err := a.generator.GenerateAnswer(gctx, query, excerpts)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	ans := &core.Answer{
		JobID:               jobID,
		Query:               query,
		RetrievedSegmentIDs: ids,
		Text:                text,
		PromptHash:          promptHash,
	}
	if data, err := json.Marshal(ans); err == nil {
		a.cache.Put(promptHash, data, a.answerTTL)
	}

	a.logger.Debug("answer generated",
		"job_id", jobID,
		"excerpts", len(excerpts),
		"prompt_hash", promptHash)
	return ans, nil
}

// queryEmbedding resolves the query's vector, sharing the embedding cache
// with the pipeline: an ask for text the pipeline already embedded is free.
func (a *Answerer) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	hash := core.ContentHash(query)
	modelVersion := a.provider.ModelVersion()
	key := core.EmbeddingCacheKey(hash, modelVersion)

	if data, ok := a.cache.Get(key); ok {
		if vec, err := storage.UnmarshalEmbeddingVector(data); err == nil {
			return vec.Vector, nil
		}
	}

	ectx, cancel := context.WithTimeout(ctx, a.capabilityTimeout)
	raw, err := a.embedder.EmbedText(ectx, query)
	cancel()
	if err != nil {
		return nil, err
	}

	a.cache.Put(key, storage.MarshalEmbeddingVector(&core.EmbeddingVector{
		ContentHash:  hash,
		Vector:       raw,
		ModelVersion: modelVersion,
	}), a.embeddingTTL)
	return raw, nil
}

func (a *Answerer) loadSegments(ctx context.Context, jobID string) (map[core.ID]*core.Segment, error) {
	data, err := a.artifacts.GetArtifact(ctx, jobID, storage.ArtifactSegments)
	if err != nil {
		return nil, fmt.Errorf("loading segments: %w", err)
	}
	var list []*core.Segment
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	segments := make(map[core.ID]*core.Segment, len(list))
	for _, seg := range list {
		segments[seg.ID] = seg
	}
	return segments, nil
}
