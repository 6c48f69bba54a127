package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/storage"
)

// handleEmbedding resolves an embedding vector for every segment, reading
// the cache first and fanning novel content out across the worker pool. The
// stage only completes when every segment has a vector; a partial result
// never reaches the artifact store, so no partial index can be built from it.
func (p *Pipeline) handleEmbedding(ctx context.Context, msg *core.Message) error {
	job, err := p.ledger.GetJob(ctx, msg.JobID)
	if err != nil {
		return err
	}
	if job.Status == core.JobFailed {
		return nil
	}
	if job.Status > core.JobEmbedding {
		return p.advance(ctx, msg.JobID, core.JobEmbedding, core.JobIndexing, core.StageIndexing)
	}

	has, err := p.artifacts.HasArtifact(ctx, msg.JobID, storage.ArtifactEmbeddings)
	if err != nil {
		return err
	}
	if !has {
		data, err := p.artifacts.GetArtifact(ctx, msg.JobID, storage.ArtifactSegments)
		if err != nil {
			return fmt.Errorf("loading segments: %w", err)
		}
		var segments []*core.Segment
		if err := json.Unmarshal(data, &segments); err != nil {
			return fmt.Errorf("%w: decoding segments: %v", core.ErrMalformedInput, err)
		}

		vectors, err := p.embedSegments(ctx, segments)
		if err != nil {
			return err
		}

		embeddingsData, err := json.Marshal(vectors)
		if err != nil {
			return err
		}
		ok, err := p.commitGate(ctx, msg.JobID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := p.artifacts.PutArtifact(ctx, msg.JobID, storage.ArtifactEmbeddings, embeddingsData); err != nil {
			return err
		}

		p.logger.Info("embedding complete", "job_id", msg.JobID, "vectors", len(vectors))
	}

	return p.advance(ctx, msg.JobID, core.JobEmbedding, core.JobIndexing, core.StageIndexing)
}

// novelContent is one cache-missed content hash and the segments waiting on it.
type novelContent struct {
	key     string
	text    string
	hash    core.ID
	indices []int
}

// embedSegments resolves vectors for all segments. Cache hits are filled in
// directly; each novel content hash is embedded exactly once on the pool,
// bounding per-job parallelism at the pool size. If any content fails after
// the per-call timeout, the whole stage fails listing the unresolved
// segments; the error stays transient-classified when the underlying
// failures were, so the dispatch retry re-runs it (cache hits make the rerun
// cheap).
func (p *Pipeline) embedSegments(ctx context.Context, segments []*core.Segment) ([]*core.EmbeddingVector, error) {
	modelVersion := p.provider.ModelVersion()
	embedder := p.provider.Embedder()

	vectors := make([]*core.EmbeddingVector, len(segments))
	var novel []*novelContent
	byKey := make(map[string]*novelContent)

	for i, seg := range segments {
		key := core.EmbeddingCacheKey(seg.ContentHash, modelVersion)
		if data, ok := p.cache.Get(key); ok {
			vec, err := storage.UnmarshalEmbeddingVector(data)
			if err == nil {
				vec.SegmentID = seg.ID
				vectors[i] = vec
				continue
			}
			p.logger.Warn("dropping undecodable cached embedding", "key", key, "err", err)
		}
		nc, ok := byKey[key]
		if !ok {
			nc = &novelContent{key: key, text: seg.Text, hash: seg.ContentHash}
			byKey[key] = nc
			novel = append(novel, nc)
		}
		nc.indices = append(nc.indices, i)
	}

	if len(novel) == 0 {
		return vectors, nil
	}

	errs := make([]error, len(novel))
	var wg sync.WaitGroup
	for i, nc := range novel {
		i, nc := i, nc
		wg.Add(1)
		task := func() {
			defer wg.Done()

			cctx, cancel := context.WithTimeout(ctx, p.capabilityTimeout)
			raw, err := embedder.EmbedText(cctx, nc.text)
			cancel()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					errs[i] = err
					return
				}
				// Capability failures are retryable unless already classified.
				if !core.IsTransient(err) {
					err = core.Transient(err)
				}
				errs[i] = err
				return
			}

			vec := &core.EmbeddingVector{
				ContentHash:  nc.hash,
				Vector:       raw,
				ModelVersion: modelVersion,
			}
			p.cache.Put(nc.key, storage.MarshalEmbeddingVector(vec), p.embeddingTTL)
			for _, idx := range nc.indices {
				v := *vec
				v.SegmentID = segments[idx].ID
				vectors[idx] = &v
			}
		}
		if err := p.embedPool.Submit(task); err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	var unresolved []core.ID
	var lastErr error
	transient := false
	for i, err := range errs {
		if err == nil {
			continue
		}
		for _, idx := range novel[i].indices {
			unresolved = append(unresolved, segments[idx].ID)
		}
		lastErr = err
		if core.IsTransient(err) {
			transient = true
		}
	}
	if len(unresolved) > 0 {
		err := fmt.Errorf("embedding unresolved for segments %v: %w", unresolved, lastErr)
		if transient && !core.IsTransient(err) {
			err = core.Transient(err)
		}
		return nil, err
	}
	return vectors, nil
}
