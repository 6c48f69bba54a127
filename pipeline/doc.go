// Package pipeline runs the asynchronous stage workers that move a job from
// upload to queryable index: transcription, segmentation, embedding and
// indexing.
//
// Each stage consumes its own bus topic, commits output artifacts before
// advancing the job ledger, and only a successful ledger transition gates
// publishing the next-stage message. Handlers are idempotent, so the bus's
// at-least-once redelivery is safe. Transient capability failures are
// retried with exponential backoff; exhausted or fatal failures move the job
// to the failed state and record a dead letter.
package pipeline
