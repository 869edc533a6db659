// Package httputil provides HTTP handler utilities shared by the
// ingest and query APIs: JSON encoding/decoding, consistent error
// bodies, and the common middleware chain.
package httputil
