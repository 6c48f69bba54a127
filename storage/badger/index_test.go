package badger

import (
	"context"
	"testing"

	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) storage.VectorIndex {
	t.Helper()
	index, err := NewVectorIndex(newTestBackend(t))
	require.NoError(t, err)
	return index
}

func TestUpsertAndCount(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx,
		&core.IndexEntry{JobID: "job-1", SegmentID: 1, Vector: []float32{1, 0}},
		&core.IndexEntry{JobID: "job-1", SegmentID: 2, Vector: []float32{0, 1}},
		&core.IndexEntry{JobID: "job-2", SegmentID: 1, Vector: []float32{1, 1}},
	))

	count, err := index.Count(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "partitions are per job")

	count, err = index.Count(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertIsIdempotent(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	entry := &core.IndexEntry{JobID: "job-1", SegmentID: 7, Vector: []float32{1, 0}}
	require.NoError(t, index.Upsert(ctx, entry))
	require.NoError(t, index.Upsert(ctx, entry))

	count, err := index.Count(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-indexing the same segment must not duplicate")
}

func TestNearestOrdering(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx,
		&core.IndexEntry{JobID: "job-1", SegmentID: 1, Vector: []float32{1, 0, 0}},
		&core.IndexEntry{JobID: "job-1", SegmentID: 2, Vector: []float32{0.5, 0.5, 0}},
		&core.IndexEntry{JobID: "job-1", SegmentID: 3, Vector: []float32{0, 1, 0}},
	))

	matches, err := index.Nearest(ctx, "job-1", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, core.ID(1), matches[0].SegmentID)
	assert.Equal(t, core.ID(2), matches[1].SegmentID)
	assert.Equal(t, core.ID(3), matches[2].SegmentID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.GreaterOrEqual(t, matches[1].Score, matches[2].Score)
}

func TestNearestTieBreaksOnSegmentID(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	// Identical vectors: scores tie exactly.
	require.NoError(t, index.Upsert(ctx,
		&core.IndexEntry{JobID: "job-1", SegmentID: 9, Vector: []float32{1, 0}},
		&core.IndexEntry{JobID: "job-1", SegmentID: 4, Vector: []float32{1, 0}},
	))

	matches, err := index.Nearest(ctx, "job-1", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, core.ID(4), matches[0].SegmentID)
	assert.Equal(t, core.ID(9), matches[1].SegmentID)
}

func TestNearestTruncatesToK(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, index.Upsert(ctx, &core.IndexEntry{
			JobID:     "job-1",
			SegmentID: core.ID(i),
			Vector:    []float32{float32(i), 0},
		}))
	}

	matches, err := index.Nearest(ctx, "job-1", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, core.ID(5), matches[0].SegmentID)
	assert.Equal(t, core.ID(4), matches[1].SegmentID)
}

func TestNearestEmptyPartition(t *testing.T) {
	index := newTestIndex(t)

	matches, err := index.Nearest(context.Background(), "job-1", []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDropPartition(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx,
		&core.IndexEntry{JobID: "job-1", SegmentID: 1, Vector: []float32{1, 0}},
		&core.IndexEntry{JobID: "job-2", SegmentID: 1, Vector: []float32{1, 0}},
	))

	require.NoError(t, index.DropPartition(ctx, "job-1"))

	count, err := index.Count(ctx, "job-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = index.Count(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "other partitions untouched")
}
