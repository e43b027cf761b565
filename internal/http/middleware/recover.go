package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/tendant/tour-auth/internal/httputil"
)

// Recover turns panics into a generic 500 and logs the stack.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				httputil.Error(w, http.StatusInternalServerError, "something went wrong")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
