package mediamind

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/mediamind/ai/mock"
	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/pipeline"
	"github.com/poiesic/mediamind/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wordCounter struct{}

func (wordCounter) Count(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

func newTestService(t *testing.T) (*Service, *mock.MockProvider) {
	t.Helper()

	provider := mock.NewMockProvider().(*mock.MockProvider)
	segmenter, err := segment.NewSegmenter(
		segment.WithTokenCounter(wordCounter{}),
		segment.WithTokenBudget(12),
	)
	require.NoError(t, err)

	svc, err := NewService("",
		WithInMemory(),
		WithProvider(provider),
		WithPipelineOptions(
			pipeline.WithSegmenter(segmenter),
			pipeline.WithMaxAttempts(2),
			pipeline.WithBaseDelay(time.Millisecond),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, provider
}

func waitForStatus(t *testing.T, svc *Service, jobID string, want core.JobStatus) *core.Job {
	t.Helper()
	ctx := context.Background()
	deadline := time.After(10 * time.Second)
	for {
		job, err := svc.GetStatus(ctx, jobID)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		if want != core.JobFailed {
			require.NotEqual(t, core.JobFailed, job.Status, "stage errors: %v", job.StageErrors)
		}
		select {
		case <-deadline:
			t.Fatalf("job %s stuck in status %s, want %s", jobID, job.Status, want)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestSubmitRejectsUnsupportedMedia(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SubmitJob(context.Background(), "/uploads/report.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnsupportedMedia)
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}

func TestEndToEndSubmitProcessAsk(t *testing.T) {
	svc, provider := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, svc.Start(ctx))

	source := filepath.Join(t.TempDir(), "standup-recording.mp3")
	media := []byte("not really audio, but it has a length")
	require.NoError(t, os.WriteFile(source, media, 0o644))

	jobID, err := svc.SubmitJob(ctx, source)
	require.NoError(t, err)

	job := waitForStatus(t, svc, jobID, core.JobReady)
	assert.Equal(t, "standup-recording.mp3", job.OriginalFilename)
	assert.Equal(t, int64(len(media)), job.Size, "upload size is recorded at submit")
	assert.Greater(t, job.SegmentCount, 0)

	transcript, err := svc.Transcript(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, transcript.JobID)
	assert.NotEmpty(t, transcript.Segments)

	chapters, err := svc.Chapters(ctx, jobID)
	require.NoError(t, err)
	require.NoError(t, core.ValidateChapters(chapters, job.SegmentCount))

	first, err := svc.Ask(ctx, jobID, "What is the session about?")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.NotEmpty(t, first.Text)

	second, err := svc.Ask(ctx, jobID, "What is the session about?")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, 1, provider.GetMockGenerator().CallCount(),
		"repeated question must be served from the answer cache")
}

func TestAskBeforeReady(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Workers not started: the job stays in created.
	jobID, err := svc.SubmitJob(ctx, "/uploads/talk.mp4")
	require.NoError(t, err)

	_, err = svc.Ask(ctx, jobID, "too early?")
	assert.ErrorIs(t, err, core.ErrNotReady)
}

func TestRetryFailedJobReachesReady(t *testing.T) {
	svc, provider := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider.GetMockTranscriber().TranscribeFunc = func(ctx context.Context, sourceRef string) (*core.Transcript, error) {
		return nil, core.Transient(assert.AnError)
	}

	require.NoError(t, svc.Start(ctx))
	jobID, err := svc.SubmitJob(ctx, "/uploads/flaky.mp3")
	require.NoError(t, err)
	job := waitForStatus(t, svc, jobID, core.JobFailed)
	require.NotEmpty(t, job.StageErrors)

	// The upstream outage clears; retry picks the job up where it failed.
	provider.GetMockTranscriber().TranscribeFunc = nil
	require.NoError(t, svc.RetryJob(ctx, jobID))

	job = waitForStatus(t, svc, jobID, core.JobReady)
	assert.NotEmpty(t, job.StageErrors, "stage error history survives the retry")
}

func TestRetryRequiresFailedJob(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	jobID, err := svc.SubmitJob(ctx, "/uploads/fine.mp3")
	require.NoError(t, err)

	err = svc.RetryJob(ctx, jobID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestFailedJobStaysQueryable(t *testing.T) {
	svc, provider := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider.GetMockTranscriber().TranscribeFunc = func(ctx context.Context, sourceRef string) (*core.Transcript, error) {
		return nil, core.Transient(assert.AnError)
	}

	require.NoError(t, svc.Start(ctx))
	jobID, err := svc.SubmitJob(ctx, "/uploads/broken.wav")
	require.NoError(t, err)

	job := waitForStatus(t, svc, jobID, core.JobFailed)
	require.NotEmpty(t, job.StageErrors)
	assert.Equal(t, core.StageTranscription, job.StageErrors[0].Stage)
	assert.Equal(t, "transient", job.StageErrors[0].Kind)

	_, err = svc.Ask(ctx, jobID, "anything?")
	assert.ErrorIs(t, err, core.ErrJobFailed)

	letters, err := svc.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, jobID, letters[0].JobID)
}
