// Package idm embeds the tour account service in a host application.
//
// Setup:
//
//  1. Create the accounts table (RunMigrations, or MigrateOnStart in Config)
//  2. Create an IDM instance and mount its routes
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/natours?sslmode=disable")
//
//	accounts, err := idm.New(idm.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if the accounts table is missing
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/auth", accounts.Router())
//	r.Mount("/admin", accounts.AdminRouter())
//
// Protecting booking routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(accounts.Protect())
//	    r.Use(accounts.RequireRole(idm.RoleAdmin, idm.RoleGuide))
//	    r.Post("/tours", createTour)
//	})
package idm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	httpapi "github.com/tendant/tour-auth/internal/http"
	"github.com/tendant/tour-auth/internal/http/middleware"
	"github.com/tendant/tour-auth/internal/httputil"
	"github.com/tendant/tour-auth/internal/notification"
	"github.com/tendant/tour-auth/pkg/auth"
	"github.com/tendant/tour-auth/pkg/domain"
	"github.com/tendant/tour-auth/pkg/repository"
)

// Roles accepted by RequireRole.
const (
	RoleUser  = domain.RoleUser
	RoleGuide = domain.RoleGuide
	RoleAdmin = domain.RoleAdmin
)

// Config holds the configuration for the IDM library.
type Config struct {
	// DB is a Postgres connection. Either DB or Store is required.
	DB *sql.DB

	// Store overrides the Postgres account store.
	Store auth.AccountStore

	// MigrateOnStart applies the embedded migrations to DB in New.
	MigrateOnStart bool

	// JWTSecret is the secret key for signing tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in tokens (default: "tour-auth").
	JWTIssuer string

	// AccessTokenTTL is the lifetime of login tokens (default: 90 days).
	AccessTokenTTL time.Duration

	// ResetTokenTTL is the lifetime of password reset tokens (default: 15 minutes).
	ResetTokenTTL time.Duration

	// Google enables Google sign-in (optional).
	Google *GoogleConfig

	// Notifier delivers verification and reset codes (default: log only).
	Notifier auth.NotificationSink

	// BootstrapAdminEmail is reserved for EnsureBootstrapAdmin; public
	// registration with it is refused.
	BootstrapAdminEmail string

	// CookieSecure sets the Secure flag on the token cookie.
	CookieSecure bool

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// GoogleConfig holds the OAuth client ids whose ID tokens are accepted.
type GoogleConfig struct {
	ClientID        string
	MobileClientIDs []string
}

// IDM is the main account service instance.
type IDM struct {
	config  Config
	tokens  *auth.TokenService
	service *auth.Service
	router  httpapi.RouterConfig
}

// New creates a new IDM instance with the given configuration.
// Returns an error if the accounts table doesn't exist.
func New(cfg Config) (*IDM, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	store := cfg.Store
	if store == nil {
		if cfg.MigrateOnStart {
			if err := repository.RunMigrations(context.Background(), cfg.DB); err != nil {
				return nil, fmt.Errorf("idm: %w", err)
			}
		}
		if err := validateSchema(cfg.DB); err != nil {
			return nil, err
		}
		store = repository.NewAccountsRepository(cfg.DB)
	}

	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret:         []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
		AccessTokenTTL: cfg.AccessTokenTTL,
		ResetTokenTTL:  cfg.ResetTokenTTL,
	})

	var provider auth.IdentityProvider
	if cfg.Google != nil {
		provider = auth.NewGoogleVerifier(auth.GoogleConfig{
			ClientID:        cfg.Google.ClientID,
			MobileClientIDs: cfg.Google.MobileClientIDs,
		})
	}

	service := auth.NewService(auth.ServiceConfig{
		Store:               store,
		Tokens:              tokens,
		Provider:            provider,
		Notifier:            cfg.Notifier,
		BootstrapAdminEmail: cfg.BootstrapAdminEmail,
		StrictEmail:         true,
		Logger:              cfg.Logger,
	})

	cookie := httputil.DefaultCookieConfig()
	cookie.Secure = cfg.CookieSecure

	return &IDM{
		config:  cfg,
		tokens:  tokens,
		service: service,
		router: httpapi.RouterConfig{
			Logger:       cfg.Logger,
			AuthService:  service,
			TokenService: tokens,
			Cookie:       cookie,
		},
	}, nil
}

// Router returns a chi router with the account routes.
// Mount this on your main router:
//
//	r.Mount("/auth", accounts.Router())
//
// Routes:
//
//	POST  /register             - Register with email/password
//	POST  /login                - Login with email/password
//	POST  /google-login         - Login with a Google ID token
//	POST  /verifyEmailOTP       - Verify email with the emailed code
//	POST  /resend-verification  - Send a new verification code
//	POST  /forgot-password      - Send a password reset code
//	POST  /verify-reset-otp     - Exchange the reset code for a reset token
//	POST  /reset-password       - Set a new password with the reset token
//	PATCH /update-password      - Change password (protected)
//	GET   /me                   - Current account (protected)
//	GET   /status               - Login status
//	GET   /logout               - Clear the token cookie
func (i *IDM) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recover(i.config.Logger))
	httpapi.AuthRoutes(r, i.router)
	return r
}

// AdminRouter returns a router with the admin-only account lookup.
//
//	r.Mount("/admin", accounts.AdminRouter())  // GET /admin/accounts/{id}
func (i *IDM) AdminRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recover(i.config.Logger))
	httpapi.AdminRoutes(r, i.router)
	return r
}

// Service returns the account service for advanced usage.
func (i *IDM) Service() *auth.Service {
	return i.service
}

// Protect returns middleware that rejects requests without a valid login token.
func (i *IDM) Protect() func(http.Handler) http.Handler {
	return middleware.Protect(i.router.AccessConfig())
}

// IsLoggedIn returns middleware that attaches the account when present and
// never rejects.
func (i *IDM) IsLoggedIn() func(http.Handler) http.Handler {
	return middleware.IsLoggedIn(i.router.AccessConfig())
}

// RequireRole returns middleware allowing only the given roles.
// Use after Protect.
func (i *IDM) RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return middleware.RequireRole(roles...)
}

// CurrentAccount returns the account attached by Protect or IsLoggedIn.
func CurrentAccount(r *http.Request) (*domain.Account, bool) {
	return middleware.CurrentAccount(r.Context())
}

// EnsureBootstrapAdmin creates or promotes the admin account for email.
func (i *IDM) EnsureBootstrapAdmin(ctx context.Context, email, password string) (*domain.Account, error) {
	return i.service.EnsureBootstrapAdmin(ctx, email, password)
}

// HealthHandler returns a simple health check handler.
func (i *IDM) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil && cfg.Store == nil {
		return errors.New("idm: DB or Store is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("idm: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("idm: JWTSecret must be at least 32 characters")
	}
	if cfg.Google != nil && cfg.Google.ClientID == "" {
		return errors.New("idm: Google ClientID is required when Google is configured")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = auth.DefaultIssuer
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if cfg.ResetTokenTTL == 0 {
		cfg.ResetTokenTTL = auth.DefaultResetTokenTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notification.NewLogSink(cfg.Logger)
	}
}

// validateSchema checks that the accounts table exists.
func validateSchema(db *sql.DB) error {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	var name string
	err := db.QueryRow(query, "accounts").Scan(&name)
	if err == sql.ErrNoRows {
		return errors.New("idm: missing table 'accounts' - run migrations first")
	}
	if err != nil {
		return fmt.Errorf("idm: failed to check schema: %w", err)
	}
	return nil
}
