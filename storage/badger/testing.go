package badger

import "github.com/poiesic/mediamind/storage"

// NewMemoryServices creates in-memory ledger, artifact store, bus and index
// for testing. Caller must close the bus and backend when done.
func NewMemoryServices() (storage.Ledger, storage.ArtifactStore, storage.MessageBus, storage.VectorIndex, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	ledger, err := NewLedger(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, nil, nil, err
	}

	artifacts, err := NewArtifactStore(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, nil, nil, err
	}

	bus, err := NewBus(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, nil, nil, err
	}

	index, err := NewVectorIndex(backend)
	if err != nil {
		bus.Close()
		backend.Close()
		return nil, nil, nil, nil, nil, err
	}

	return ledger, artifacts, bus, index, backend, nil
}
