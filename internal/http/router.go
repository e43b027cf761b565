package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/tour-auth/internal/config"
	"github.com/tendant/tour-auth/internal/http/features/email"
	"github.com/tendant/tour-auth/internal/http/features/google"
	"github.com/tendant/tour-auth/internal/http/features/me"
	"github.com/tendant/tour-auth/internal/http/features/password"
	"github.com/tendant/tour-auth/internal/http/features/session"
	"github.com/tendant/tour-auth/internal/http/middleware"
	"github.com/tendant/tour-auth/internal/httputil"
	"github.com/tendant/tour-auth/pkg/auth"
	"github.com/tendant/tour-auth/pkg/domain"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	AuthService     *auth.Service
	TokenService    *auth.TokenService
	Cookie          httputil.CookieConfig
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	CORS            config.CORSConfig
}

// AccessConfig returns the access gate configuration for cfg.
func (cfg RouterConfig) AccessConfig() middleware.AccessConfig {
	return middleware.AccessConfig{
		Tokens:   cfg.TokenService,
		Accounts: cfg.AuthService,
		Cookie:   cfg.Cookie,
		Logger:   cfg.Logger,
	}
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusNotFound, "can't find "+r.URL.Path+" on this server")
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	Mount(r, cfg)
	return r
}

// Mount registers the /auth and /admin routes on r.
func Mount(r chi.Router, cfg RouterConfig) {
	r.Route("/auth", func(r chi.Router) { AuthRoutes(r, cfg) })
	r.Route("/admin", func(r chi.Router) { AdminRoutes(r, cfg) })
}

// AuthRoutes registers the account routes relative to r.
func AuthRoutes(r chi.Router, cfg RouterConfig) {
	limits := middleware.NewRouteLimits(cfg.RateLimitConfig, cfg.Logger)
	access := cfg.AccessConfig()

	passwordHandler := password.NewHandler(cfg.Logger, cfg.AuthService, cfg.Cookie)
	emailHandler := email.NewHandler(cfg.Logger, cfg.AuthService, cfg.Cookie)
	googleHandler := google.NewHandler(cfg.Logger, cfg.AuthService, cfg.Cookie)
	meHandler := me.NewHandler(cfg.Logger, cfg.AuthService)
	sessionHandler := session.NewHandler(cfg.Cookie)

	r.Group(func(r chi.Router) {
		r.Use(limits.Auth)
		r.Post("/register", passwordHandler.Register)
		r.Post("/login", passwordHandler.Login)
		r.Post("/google-login", googleHandler.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(limits.Verify)
		r.Post("/verifyEmailOTP", emailHandler.VerifyOTP)
		r.Post("/resend-verification", emailHandler.Resend)
	})

	r.Group(func(r chi.Router) {
		r.Use(limits.Reset)
		r.Post("/forgot-password", passwordHandler.ForgotPassword)
		r.Post("/verify-reset-otp", passwordHandler.VerifyResetOTP)
		r.Post("/reset-password", passwordHandler.ResetPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Protect(access))
		r.Patch("/update-password", passwordHandler.UpdatePassword)
		r.Get("/me", meHandler.GetMe)
	})

	r.With(middleware.IsLoggedIn(access)).Get("/status", meHandler.Status)
	r.Get("/logout", sessionHandler.Logout)
}

// AdminRoutes registers the admin-only routes relative to r.
func AdminRoutes(r chi.Router, cfg RouterConfig) {
	meHandler := me.NewHandler(cfg.Logger, cfg.AuthService)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Protect(cfg.AccessConfig()))
		r.Use(middleware.RequireRole(domain.RoleAdmin))
		r.Get("/accounts/{id}", meHandler.GetAccount)
	})
}
