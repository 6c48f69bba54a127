package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/storage"
)

// consume is one stage worker's loop: receive, handle, commit. A message is
// committed after it is fully handled or after its job has been failed, so a
// crash mid-handle leads to redelivery, never loss.
func (p *Pipeline) consume(ctx context.Context, sub storage.Subscription, stage core.Stage, fn handlerFunc) {
	defer p.wg.Done()
	defer sub.Close()

	logger := p.logger.With("stage", stage.String())
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) ||
				errors.Is(err, storage.ErrSubscriptionClosed) ||
				errors.Is(err, storage.ErrStorageClosed) {
				return
			}
			logger.Error("receiving stage message", "err", err)
			return
		}

		if err := p.dispatch(ctx, stage, fn, msg); err != nil {
			// Shutdown mid-handle: leave the message uncommitted so it is
			// redelivered on restart.
			return
		}
		if err := sub.Commit(ctx); err != nil {
			logger.Error("committing stage message", "job_id", msg.JobID, "err", err)
		}
	}
}

// dispatch runs the handler with the retry budget, moving the job to the
// failed state when the budget is exhausted or the error is fatal. A nil
// return means the message is fully accounted for and may be committed.
func (p *Pipeline) dispatch(ctx context.Context, stage core.Stage, fn handlerFunc, msg *core.Message) error {
	attempts := 0
	err := RetryWithBackoff(ctx, func() error {
		attempts++
		return fn(ctx, msg)
	}, p.maxAttempts, p.baseDelay)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.logger.Error("stage failed",
		"stage", stage.String(),
		"job_id", msg.JobID,
		"attempts", attempts,
		"kind", core.ErrorKind(err),
		"err", err)
	p.failJob(ctx, stage, msg, attempts, err)
	return nil
}

// failJob records a dead letter and moves the job to the failed state with a
// stage error entry. Failed jobs stay queryable for status.
func (p *Pipeline) failJob(ctx context.Context, stage core.Stage, msg *core.Message, attempts int, cause error) {
	now := time.Now().UTC()
	dl := &core.DeadLetter{
		JobID:     msg.JobID,
		Stage:     stage,
		ErrorKind: core.ErrorKind(cause),
		Attempts:  attempts,
		LastError: cause.Error(),
		At:        now,
	}
	if err := p.bus.PublishDeadLetter(ctx, dl); err != nil {
		p.logger.Error("recording dead letter", "job_id", msg.JobID, "err", err)
	}

	_, err := p.ledger.Update(ctx, msg.JobID, func(job *core.Job) error {
		job.Status = core.JobFailed
		job.StageErrors = append(job.StageErrors, core.StageError{
			Stage:    stage,
			Kind:     core.ErrorKind(cause),
			Message:  cause.Error(),
			Attempts: attempts,
			At:       now,
		})
		return nil
	})
	if err != nil {
		p.logger.Error("marking job failed", "job_id", msg.JobID, "err", err)
	}
}

// commitGate is the cooperative-cancellation checkpoint before artifact
// commit: the context must still be live and the job must not have been
// failed at the ledger while the stage was working. A false return means
// the stage discards its output and treats the message as handled.
func (p *Pipeline) commitGate(ctx context.Context, jobID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	job, err := p.ledger.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.Status == core.JobFailed {
		p.logger.Info("discarding stage output for failed job", "job_id", jobID)
		return false, nil
	}
	return true, nil
}

// advance transitions the job and publishes the next-stage message. When the
// transition was already performed by an earlier delivery, the publish is
// repeated anyway: a crash between transition and publish must not strand
// the job, and downstream handlers tolerate duplicates.
func (p *Pipeline) advance(ctx context.Context, jobID string, from, to core.JobStatus, next core.Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	swapped, err := p.ledger.Transition(ctx, jobID, from, to)
	if err != nil {
		return err
	}
	if !swapped {
		job, err := p.ledger.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status != to {
			return nil
		}
	}

	if next == 0 {
		return nil
	}
	return p.bus.Publish(ctx, next.String(), &core.Message{
		JobID:      jobID,
		Stage:      next,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	})
}
