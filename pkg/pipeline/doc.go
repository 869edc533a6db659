// Package pipeline turns queued batches of raw browser events into
// persisted metric and error rows. It aggregates events per page,
// resolves website/page identity via idempotent upserts, and writes
// each job inside a single transaction.
package pipeline
