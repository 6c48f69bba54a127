package badger

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/storage"
)

// VectorIndex implements storage.VectorIndex as per-job key partitions in
// BadgerDB. Partitions are small enough (one entry per segment) that
// Nearest is a full partition scan with an exact dot-product ranking.
type VectorIndex struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex creates a vector index on the given backend.
//
// Returns the storage.VectorIndex interface to enforce abstraction.
func NewVectorIndex(backend *Backend) (storage.VectorIndex, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &VectorIndex{
		backend: backend,
		logger:  slog.Default().With("component", "index"),
	}, nil
}

// Upsert inserts or replaces entries keyed by (jobID, segmentID).
func (v *VectorIndex) Upsert(ctx context.Context, entries ...*core.IndexEntry) error {
	return v.backend.WithUpdate(func(tx *badger.Txn) error {
		for _, entry := range entries {
			key := makeIndexEntryKey(entry.JobID, entry.SegmentID)
			if err := tx.Set(key, storage.MarshalIndexEntry(entry)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of entries in a job's partition.
func (v *VectorIndex) Count(ctx context.Context, jobID string) (int, error) {
	count := 0
	err := v.backend.WithView(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeIndexPartitionPrefix(jobID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Nearest returns up to k matches ordered by descending score, ties broken
// by ascending segment ID for determinism.
func (v *VectorIndex) Nearest(ctx context.Context, jobID string, vector []float32, k int) ([]*core.IndexMatch, error) {
	var matches []*core.IndexMatch
	err := v.backend.WithView(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeIndexPartitionPrefix(jobID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				entry, err := storage.UnmarshalIndexEntry(val)
				if err != nil {
					return err
				}
				matches = append(matches, &core.IndexMatch{
					SegmentID: entry.SegmentID,
					Score:     dotProduct(vector, entry.Vector),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b *core.IndexMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		// Equal scores: ascending segment ID keeps results deterministic.
		if a.SegmentID < b.SegmentID {
			return -1
		}
		if a.SegmentID > b.SegmentID {
			return 1
		}
		return 0
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// DropPartition removes a job's entries.
func (v *VectorIndex) DropPartition(ctx context.Context, jobID string) error {
	var keys [][]byte
	err := v.backend.WithView(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeIndexPartitionPrefix(jobID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return v.backend.WithUpdate(func(tx *badger.Txn) error {
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the index. The shared backend is closed by its owner.
func (v *VectorIndex) Close() error {
	return nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
