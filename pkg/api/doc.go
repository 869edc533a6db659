// Package api implements beacon's HTTP surface: the write-side ingest
// endpoints that validate payloads and hand them to the queue, and the
// read-side query endpoints backed by the metrics service.
package api
