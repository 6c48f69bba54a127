package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/storage"
)

// handleSegmentation batches the transcript into token-bounded segments,
// detects chapter boundaries, and hands the job to embedding. Both outputs
// are pure functions of the transcript, so a redelivered message simply
// recomputes identical artifacts.
func (p *Pipeline) handleSegmentation(ctx context.Context, msg *core.Message) error {
	job, err := p.ledger.GetJob(ctx, msg.JobID)
	if err != nil {
		return err
	}
	if job.Status == core.JobFailed {
		return nil
	}
	if job.Status > core.JobSegmenting {
		return p.advance(ctx, msg.JobID, core.JobSegmenting, core.JobEmbedding, core.StageEmbedding)
	}

	data, err := p.artifacts.GetArtifact(ctx, msg.JobID, storage.ArtifactTranscript)
	if err != nil {
		return fmt.Errorf("loading transcript: %w", err)
	}
	var transcript core.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return fmt.Errorf("%w: decoding transcript: %v", core.ErrMalformedInput, err)
	}

	segments, err := p.segmenter.Segment(msg.JobID, &transcript)
	if err != nil {
		return err
	}
	chapters, err := p.detector.Detect(msg.JobID, segments)
	if err != nil {
		return err
	}

	segmentsData, err := json.Marshal(segments)
	if err != nil {
		return err
	}
	chaptersData, err := json.Marshal(chapters)
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
	if err := p.artifacts.PutArtifact(ctx, msg.JobID, storage.ArtifactSegments, segmentsData); err != nil {
		return err
	}
	if err := p.artifacts.PutArtifact(ctx, msg.JobID, storage.ArtifactChapters, chaptersData); err != nil {
		return err
	}

	if _, err := p.ledger.Update(ctx, msg.JobID, func(job *core.Job) error {
		job.SegmentCount = len(segments)
		return nil
	}); err != nil {
		return err
	}

	p.logger.Info("segmentation complete",
		"job_id", msg.JobID,
		"segments", len(segments),
		"chapters", len(chapters))

	return p.advance(ctx, msg.JobID, core.JobSegmenting, core.JobEmbedding, core.StageEmbedding)
}
