// Package storage defines the durable-state abstraction layer for mediamind.
//
// It declares the four shared services every pipeline stage depends on:
//
//   - Ledger: per-job stage status with atomic compare-and-swap transitions
//   - ArtifactStore: write-once blobs addressed by job ID and artifact kind
//   - MessageBus: durable at-least-once topics with consumer groups and a
//     dead-letter path
//   - VectorIndex: per-job similarity index partitions
//
// Concrete implementations live in subpackages (storage/badger). Public
// constructors return these interfaces rather than concrete types so stage
// workers can be tested against fakes without modification.
//
// All implementations must be thread-safe; all methods accept a
// context.Context for cancellation.
package storage
