// Package observability bundles the operational concerns shared by the
// beacon binaries: structured JSON logging, Prometheus metrics, health
// probes, graceful shutdown, and panic recovery helpers.
//
// Each binary creates one Logger and one Metrics registry at startup
// and threads them through its components; nothing in this package
// holds global state.
package observability
