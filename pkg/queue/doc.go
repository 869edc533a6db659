// Package queue implements a Redis-list-backed job queue for the
// ingestion pipeline.
//
// Producers LPUSH JSON job envelopes onto a named list; workers BRPOP
// from the same list, giving FIFO delivery with blocking consumption
// and durability across worker restarts. Failed handlers are retried
// in-process with exponential backoff before the job is dropped.
package queue
