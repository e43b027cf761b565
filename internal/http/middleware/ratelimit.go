package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/tour-auth/internal/config"
	"github.com/tendant/tour-auth/internal/httputil"
)

const msgTooManyRequests = "too many requests from this IP, please try again later"

// RouteLimits holds the per-IP limiter for each group of public auth routes.
type RouteLimits struct {
	Auth   func(http.Handler) http.Handler // register, login, google-login
	Verify func(http.Handler) http.Handler // email verification
	Reset  func(http.Handler) http.Handler // forgot and reset password
}

// NewRouteLimits builds the limiters for cfg. When rate limiting is
// disabled every group passes requests through.
func NewRouteLimits(cfg config.RateLimitConfig, logger *slog.Logger) RouteLimits {
	if !cfg.Enabled {
		return RouteLimits{Auth: passthrough, Verify: passthrough, Reset: passthrough}
	}
	return RouteLimits{
		Auth:   RateLimit("auth", cfg.AuthRequestsPerMinute, minutes(cfg.AuthWindowMinutes), logger),
		Verify: RateLimit("verify", cfg.VerifyRequestsPerWindow, minutes(cfg.VerifyWindowMinutes), logger),
		Reset:  RateLimit("reset", cfg.ResetRequestsPerWindow, minutes(cfg.ResetWindowMinutes), logger),
	}
}

// RateLimit allows requests per window from each client IP. The key is the
// connection address; forwarded headers are not trusted.
func RateLimit(group string, requests int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if logger != nil {
				logger.Warn("rate limit exceeded",
					"group", group,
					"ip", r.RemoteAddr,
					"method", r.Method,
					"path", r.URL.Path,
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, msgTooManyRequests)
		}),
	)
}

func passthrough(next http.Handler) http.Handler { return next }

func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }
