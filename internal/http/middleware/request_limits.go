package middleware

import (
	"net/http"

	"github.com/tendant/tour-auth/internal/httputil"
)

// RequestSizeLimit caps request bodies at maxBytes. Requests that declare a
// larger Content-Length are rejected with 413 before the handler runs; others
// fail when the handler reads past the limit. A non-positive maxBytes
// disables the limit.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		return passthrough
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
