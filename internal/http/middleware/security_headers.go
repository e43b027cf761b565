package middleware

import (
	"net/http"
	"strconv"

	"github.com/tendant/tour-auth/internal/config"
)

type header struct{ name, value string }

// securityHeaderSet resolves cfg to the headers written on every response.
// Empty values are omitted.
func securityHeaderSet(cfg config.SecurityHeadersConfig) []header {
	all := []header{
		{"Content-Security-Policy", cfg.CSP},
		{"X-Frame-Options", cfg.FrameOptions},
		{"X-Content-Type-Options", cfg.ContentTypeOptions},
		{"X-XSS-Protection", cfg.XSSProtection},
		{"Referrer-Policy", cfg.ReferrerPolicy},
		{"Permissions-Policy", cfg.PermissionsPolicy},
		// Responses carry tokens and account data.
		{"Cache-Control", "no-store"},
	}
	if cfg.HSTSMaxAge > 0 {
		all = append(all, header{"Strict-Transport-Security", "max-age=" + strconv.Itoa(cfg.HSTSMaxAge) + "; includeSubDomains"})
	}

	set := all[:0]
	for _, h := range all {
		if h.value != "" {
			set = append(set, h)
		}
	}
	return set
}

// SecurityHeaders sets the configured response security headers.
func SecurityHeaders(cfg config.SecurityHeadersConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return passthrough
	}
	headers := securityHeaderSet(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, h := range headers {
				w.Header().Set(h.name, h.value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
