// Package ingest defines the wire types accepted by the ingestion API
// and validates incoming batches before they are enqueued.
package ingest
