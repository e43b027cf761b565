package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/tour-auth/internal/config"
	httpserver "github.com/tendant/tour-auth/internal/http"
	"github.com/tendant/tour-auth/internal/httputil"
	"github.com/tendant/tour-auth/internal/limiter"
	"github.com/tendant/tour-auth/internal/notification"
	"github.com/tendant/tour-auth/pkg/auth"
	"github.com/tendant/tour-auth/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// Account store
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open account store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Per-email throttles
	var loginThrottle, forgotThrottle auth.Throttle
	switch {
	case cfg.HasRedis():
		client, err := limiter.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		loginThrottle = limiter.NewRedisLimiter(client, "throttle:", cfg.Throttle.LoginAttempts, cfg.Throttle.Window)
		forgotThrottle = limiter.NewRedisLimiter(client, "throttle:", cfg.Throttle.ForgotAttempts, cfg.Throttle.Window)
		logger.Info("redis throttles enabled")
	case cfg.Throttle.Enabled:
		loginThrottle = limiter.NewMemoryLimiter(cfg.Throttle.LoginAttempts, cfg.Throttle.Window)
		forgotThrottle = limiter.NewMemoryLimiter(cfg.Throttle.ForgotAttempts, cfg.Throttle.Window)
		logger.Info("in-process throttles enabled")
	}

	// Initialize notification sink
	var notifier auth.NotificationSink = notification.NewLogSink(logger)
	if cfg.HasSMTP() {
		notifier = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			Mode:     cfg.SMTPMode,
		})
		logger.Info("email service enabled")
	}

	// Initialize Google sign-in if configured
	var provider auth.IdentityProvider
	if cfg.HasGoogle() {
		provider = auth.NewGoogleVerifier(auth.GoogleConfig{
			ClientID:        cfg.GoogleClientID,
			MobileClientIDs: cfg.GoogleMobileClientIDs,
		})
		logger.Info("Google sign-in enabled")
	}

	policy := auth.NewPasswordPolicy(cfg.PasswordPolicy)
	logger.Info("password policy", "requirements", policy.GetRequirements())

	// Initialize services
	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret:         []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
		AccessTokenTTL: cfg.AccessTokenTTL,
		ResetTokenTTL:  cfg.ResetTokenTTL,
	})
	otp := auth.NewOTPService(auth.OTPConfig{
		TTL:           cfg.OTPTTL,
		MaxAttempts:   cfg.OTPMaxAttempts,
		BlockDuration: cfg.OTPBlockDuration,
	})
	service := auth.NewService(auth.ServiceConfig{
		Store:                store,
		Tokens:               tokens,
		OTP:                  otp,
		Policy:               policy,
		Provider:             provider,
		Notifier:             notifier,
		LoginThrottle:        loginThrottle,
		ForgotThrottle:       forgotThrottle,
		BootstrapAdminEmail:  cfg.BootstrapAdminEmail,
		StrictEmail:          cfg.Validation.StrictEmailValidation,
		BlockDisposableEmail: cfg.Validation.BlockDisposableEmail,
		Logger:               logger,
	})

	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		admin, err := service.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		if err != nil {
			logger.Error("failed to ensure bootstrap admin", "error", err)
			os.Exit(1)
		}
		logger.Info("bootstrap admin ready", "account_id", admin.ID)
	}

	cookie := httputil.DefaultCookieConfig()
	cookie.Name = cfg.CookieName
	cookie.Domain = cfg.CookieDomain
	cookie.Secure = cfg.CookieSecure

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		AuthService:     service,
		TokenService:    tokens,
		Cookie:          cookie,
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
		CORS:            cfg.CORS,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

// openStore connects the configured account store and returns its close func.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.AccountStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := repository.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoAccountsRepository(client.Database(cfg.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}
		logger.Info("connected to mongo", "database", cfg.MongoDatabase)
		return repo, func() { client.Disconnect(context.Background()) }, nil

	case config.StoreMemory:
		logger.Warn("using in-memory account store; accounts are lost on restart")
		return repository.NewMemoryAccountsRepository(), func() {}, nil

	default:
		db, err := repository.NewDB(repository.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			return nil, nil, err
		}
		if cfg.MigrateOnStart {
			if err := repository.RunMigrations(ctx, db); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		logger.Info("connected to database")
		return repository.NewAccountsRepository(db), func() { db.Close() }, nil
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
