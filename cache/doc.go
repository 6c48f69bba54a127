// Package cache provides the shared content-addressed cache for the two
// externally billed cost centers: embedding vectors keyed by
// (content hash, model version) and generated answers keyed by prompt hash.
//
// The eviction policy is least-recently-used restricted to entries older
// than a minimum-retention window, with TTL expiry as an independent hard
// bound. Per-key operations are linearizable, so concurrent stages never
// observe lost updates on the same key.
package cache
