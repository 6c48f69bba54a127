package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/storage"
)

// handleIndexing upserts one index entry per embedding vector and declares
// the job ready once the partition is complete. Upserts are keyed by
// (job, segment), so redelivered messages re-write the same rows.
func (p *Pipeline) handleIndexing(ctx context.Context, msg *core.Message) error {
	job, err := p.ledger.GetJob(ctx, msg.JobID)
	if err != nil {
		return err
	}
	if job.Status == core.JobFailed || job.Status == core.JobReady {
		return nil
	}

	data, err := p.artifacts.GetArtifact(ctx, msg.JobID, storage.ArtifactEmbeddings)
	if err != nil {
		return fmt.Errorf("loading embeddings: %w", err)
	}
	var vectors []*core.EmbeddingVector
	if err := json.Unmarshal(data, &vectors); err != nil {
		return fmt.Errorf("%w: decoding embeddings: %v", core.ErrMalformedInput, err)
	}

	entries := make([]*core.IndexEntry, len(vectors))
	for i, vec := range vectors {
		entries[i] = &core.IndexEntry{
			JobID:     msg.JobID,
			SegmentID: vec.SegmentID,
			Vector:    vec.Vector,
		}
	}
	if err := p.index.Upsert(ctx, entries...); err != nil {
		return err
	}

	// The index is only trustworthy when every segment is represented.
	count, err := p.index.Count(ctx, msg.JobID)
	if err != nil {
		return err
	}
	if count != job.SegmentCount {
		return fmt.Errorf("%w: index has %d entries, want %d", core.ErrConsistency, count, job.SegmentCount)
	}

	p.logger.Info("indexing complete", "job_id", msg.JobID, "entries", count)

	return p.advance(ctx, msg.JobID, core.JobIndexing, core.JobReady, 0)
}
