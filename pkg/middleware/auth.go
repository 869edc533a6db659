package middleware

import (
	"net/http"

	"github.com/platinummonkey/beacon/pkg/httputil"
)

// APIKeyHeader carries the client's key on ingest requests.
const APIKeyHeader = "x-api-key"

// APIKeyAuth requires a non-empty API key header. Keys are not yet
// verified against a registry; the header gate keeps anonymous noise
// out and reserves the slot for real verification.
//
// TODO: verify keys against the websites table once keys are issued
// per project.
func APIKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(APIKeyHeader) == "" {
			httputil.WriteUnauthorized(w, "missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
