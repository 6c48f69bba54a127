package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) storage.MessageBus {
	t.Helper()
	bus, err := NewBus(newTestBackend(t))
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })
	return bus
}

func makeMessage(jobID string, stage core.Stage) *core.Message {
	return &core.Message{
		JobID:      jobID,
		Stage:      stage,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, "transcription", makeMessage("job-1", core.StageTranscription)))
	require.NoError(t, bus.Publish(ctx, "transcription", makeMessage("job-2", core.StageTranscription)))

	sub, err := bus.Subscribe(ctx, "transcription", "pipeline")
	require.NoError(t, err)
	defer sub.Close()

	first, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", first.JobID)
	require.NoError(t, sub.Commit(ctx))

	second, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-2", second.JobID, "messages arrive in publish order")
}

func TestRedeliveryWithoutCommit(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, "embedding", makeMessage("job-1", core.StageEmbedding)))

	sub, err := bus.Subscribe(ctx, "embedding", "pipeline")
	require.NoError(t, err)
	defer sub.Close()

	first, err := sub.Next(ctx)
	require.NoError(t, err)

	// No commit: the same message comes back.
	again, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.JobID, again.JobID)

	require.NoError(t, sub.Commit(ctx))

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = sub.Next(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "committed message must not redeliver")
}

func TestSubscriptionResumesFromCommittedOffset(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, "segmentation", makeMessage("job-1", core.StageSegmentation)))
	require.NoError(t, bus.Publish(ctx, "segmentation", makeMessage("job-2", core.StageSegmentation)))

	sub, err := bus.Subscribe(ctx, "segmentation", "pipeline")
	require.NoError(t, err)
	msg, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", msg.JobID)
	require.NoError(t, sub.Commit(ctx))
	require.NoError(t, sub.Close())

	// A fresh subscription for the same group picks up after the commit.
	resumed, err := bus.Subscribe(ctx, "segmentation", "pipeline")
	require.NoError(t, err)
	defer resumed.Close()

	msg, err = resumed.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-2", msg.JobID)
}

func TestIndependentConsumerGroups(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, "indexing", makeMessage("job-1", core.StageIndexing)))

	a, err := bus.Subscribe(ctx, "indexing", "group-a")
	require.NoError(t, err)
	defer a.Close()
	b, err := bus.Subscribe(ctx, "indexing", "group-b")
	require.NoError(t, err)
	defer b.Close()

	msg, err := a.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", msg.JobID)
	require.NoError(t, a.Commit(ctx))

	// Group A's commit does not advance group B.
	msg, err = b.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", msg.JobID)
}

func TestNextBlocksUntilPublish(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "transcription", "pipeline")
	require.NoError(t, err)
	defer sub.Close()

	done := make(chan *core.Message, 1)
	go func() {
		msg, err := sub.Next(ctx)
		if err == nil {
			done <- msg
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, bus.Publish(ctx, "transcription", makeMessage("job-1", core.StageTranscription)))

	select {
	case msg := <-done:
		assert.Equal(t, "job-1", msg.JobID)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never woke up after publish")
	}
}

func TestNextRespectsContextCancel(t *testing.T) {
	bus := newTestBus(t)

	sub, err := bus.Subscribe(context.Background(), "transcription", "pipeline")
	require.NoError(t, err)
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClosedSubscription(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "transcription", "pipeline")
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, storage.ErrSubscriptionClosed)
}

func TestDeadLetters(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	letters, err := bus.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, letters)

	require.NoError(t, bus.PublishDeadLetter(ctx, &core.DeadLetter{
		JobID:     "job-1",
		Stage:     core.StageEmbedding,
		ErrorKind: "transient",
		Attempts:  3,
		LastError: "transient: connection refused",
		At:        time.Now().UTC(),
	}))
	require.NoError(t, bus.PublishDeadLetter(ctx, &core.DeadLetter{
		JobID:     "job-2",
		Stage:     core.StageTranscription,
		ErrorKind: "malformed_input",
		Attempts:  1,
		LastError: "malformed input: empty transcript",
		At:        time.Now().UTC(),
	}))

	letters, err = bus.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 2)
	assert.Equal(t, "job-1", letters[0].JobID, "dead letters list in arrival order")
	assert.Equal(t, "job-2", letters[1].JobID)
	assert.Equal(t, 3, letters[0].Attempts)
}

func TestPublishAfterClose(t *testing.T) {
	bus, err := NewBus(newTestBackend(t))
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	err = bus.Publish(context.Background(), "transcription", makeMessage("job-1", core.StageTranscription))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
