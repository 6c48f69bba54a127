package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/storage"
)

// handleTranscription turns the job's source media into transcript.json and
// transcript.vtt artifacts, then hands the job to segmentation.
//
// Redelivery is detected through the ledger status and the transcript
// artifact: an existing transcript skips the capability call entirely.
func (p *Pipeline) handleTranscription(ctx context.Context, msg *core.Message) error {
	job, err := p.ledger.GetJob(ctx, msg.JobID)
	if err != nil {
		return err
	}
	if job.Status == core.JobFailed {
		return nil
	}
	if job.Status > core.JobTranscribing {
		// Output already committed; re-run the gate so a crash between
		// transition and publish cannot strand the job.
		return p.advance(ctx, msg.JobID, core.JobTranscribing, core.JobSegmenting, core.StageSegmentation)
	}

	if job.Status == core.JobCreated {
		if _, err := p.ledger.Transition(ctx, msg.JobID, core.JobCreated, core.JobTranscribing); err != nil {
			return err
		}
	}

	has, err := p.artifacts.HasArtifact(ctx, msg.JobID, storage.ArtifactTranscript)
	if err != nil {
		return err
	}
	if !has {
		tctx, cancel := context.WithTimeout(ctx, p.capabilityTimeout)
		transcript, err := p.provider.Transcriber().Transcribe(tctx, job.SourceRef)
		cancel()
		if err != nil {
			return fmt.Errorf("transcribing %s: %w", job.SourceRef, err)
		}
		transcript.JobID = msg.JobID

		if err := core.ValidateTranscript(transcript); err != nil {
			return err
		}

		data, err := json.Marshal(transcript)
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
		if err := p.artifacts.PutArtifact(ctx, msg.JobID, storage.ArtifactTranscript, data); err != nil {
			return err
		}
		if err := p.artifacts.PutArtifact(ctx, msg.JobID, storage.ArtifactTranscriptVTT, []byte(FormatVTT(transcript))); err != nil {
			return err
		}

		p.logger.Info("transcription complete",
			"job_id", msg.JobID,
			"language", transcript.Language,
			"utterances", len(transcript.Segments))
	}

	return p.advance(ctx, msg.JobID, core.JobTranscribing, core.JobSegmenting, core.StageSegmentation)
}
