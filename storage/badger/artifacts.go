package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mediamind/storage"
)

// ArtifactStore implements storage.ArtifactStore on a shared BadgerDB
// backend. Blobs are keyed by (jobID, kind) and written once per job.
type ArtifactStore struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.ArtifactStore = (*ArtifactStore)(nil)

// NewArtifactStore creates an artifact store on the given backend.
//
// Returns the storage.ArtifactStore interface to enforce abstraction.
func NewArtifactStore(backend *Backend) (storage.ArtifactStore, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &ArtifactStore{
		backend: backend,
		logger:  slog.Default().With("component", "artifacts"),
	}, nil
}

// PutArtifact stores an artifact blob.
func (s *ArtifactStore) PutArtifact(ctx context.Context, jobID, kind string, data []byte) error {
	err := s.backend.WithUpdate(func(tx *badger.Txn) error {
		return tx.Set(makeArtifactKey(jobID, kind), data)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("artifact written", "job", jobID, "kind", kind, "bytes", len(data))
	return nil
}

// GetArtifact retrieves an artifact blob.
func (s *ArtifactStore) GetArtifact(ctx context.Context, jobID, kind string) ([]byte, error) {
	var data []byte
	err := s.backend.WithView(func(tx *badger.Txn) error {
		item, err := tx.Get(makeArtifactKey(jobID, kind))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: artifact %s/%s", storage.ErrNotFound, jobID, kind)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// HasArtifact reports whether an artifact exists.
func (s *ArtifactStore) HasArtifact(ctx context.Context, jobID, kind string) (bool, error) {
	exists := false
	err := s.backend.WithView(func(tx *badger.Txn) error {
		_, err := tx.Get(makeArtifactKey(jobID, kind))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// Close closes the store. The shared backend is closed by its owner.
func (s *ArtifactStore) Close() error {
	return nil
}
