package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/storage"
)

// Ledger implements storage.Ledger on a shared BadgerDB backend.
// Transitions run inside badger transactions, so two stages racing to move
// the same job conflict at commit and exactly one wins.
type Ledger struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.Ledger = (*Ledger)(nil)

// NewLedger creates a job ledger on the given backend.
//
// Returns the storage.Ledger interface to enforce abstraction.
func NewLedger(backend *Backend) (storage.Ledger, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &Ledger{
		backend: backend,
		logger:  slog.Default().With("component", "ledger"),
	}, nil
}

// CreateJob persists a new job record.
func (l *Ledger) CreateJob(ctx context.Context, job *core.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job ID required", storage.ErrSerializationFailed)
	}
	key := makeJobKey(job.ID)
	return l.backend.WithUpdate(func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return fmt.Errorf("%w: job %s", storage.ErrDuplicateKey, job.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return tx.Set(key, storage.MarshalJob(job))
	})
}

// GetJob retrieves a job by ID.
func (l *Ledger) GetJob(ctx context.Context, id string) (*core.Job, error) {
	var job *core.Job
	err := l.backend.WithView(func(tx *badger.Txn) error {
		item, err := tx.Get(makeJobKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: job %s", storage.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			job, err = storage.UnmarshalJob(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Transition performs an atomic compare-and-swap of the job status.
func (l *Ledger) Transition(ctx context.Context, id string, from, to core.JobStatus) (bool, error) {
	swapped := false
	err := l.backend.WithUpdate(func(tx *badger.Txn) error {
		swapped = false
		job, err := getJobTx(tx, id)
		if err != nil {
			return err
		}
		if job.Status != from {
			return nil
		}
		job.Status = to
		job.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makeJobKey(id), storage.MarshalJob(job)); err != nil {
			return err
		}
		swapped = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if swapped {
		l.logger.Debug("job transitioned", "job", id, "from", from, "to", to)
	}
	return swapped, nil
}

// Update applies fn to the job record inside a transaction.
func (l *Ledger) Update(ctx context.Context, id string, fn func(*core.Job) error) (*core.Job, error) {
	var updated *core.Job
	err := l.backend.WithUpdate(func(tx *badger.Txn) error {
		job, err := getJobTx(tx, id)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		job.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makeJobKey(id), storage.MarshalJob(job)); err != nil {
			return err
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Close closes the ledger. The shared backend is closed by its owner.
func (l *Ledger) Close() error {
	return nil
}

func getJobTx(tx *badger.Txn, id string) (*core.Job, error) {
	item, err := tx.Get(makeJobKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: job %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var job *core.Job
	err = item.Value(func(val []byte) error {
		job, err = storage.UnmarshalJob(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}
