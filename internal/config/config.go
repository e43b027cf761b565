package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr      string
	ServerPort      int
	ShutdownTimeout time.Duration
	LogLevel        string

	// Store
	StoreDriver    string
	MigrateOnStart bool
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	MongoURI       string
	MongoDatabase  string
	RedisURL       string

	// JWT
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	ResetTokenTTL  time.Duration

	// OTP
	OTPTTL           time.Duration
	OTPMaxAttempts   int
	OTPBlockDuration time.Duration

	// Google sign-in
	GoogleClientID        string
	GoogleMobileClientIDs []string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPMode     string

	// Bootstrap admin
	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	// Cookies
	CookieName   string
	CookieDomain string
	CookieSecure bool

	PasswordPolicy  PasswordPolicyConfig
	Validation      ValidationConfig
	RateLimit       RateLimitConfig
	Throttle        ThrottleConfig
	SecurityHeaders SecurityHeadersConfig
	CORS            CORSConfig
}

// PasswordPolicyConfig holds password complexity requirements.
type PasswordPolicyConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// ValidationConfig holds input validation settings.
type ValidationConfig struct {
	StrictEmailValidation bool
	BlockDisposableEmail  bool
	MaxRequestBodySize    int64
}

// RateLimitConfig holds per-IP rate limits for the route groups.
type RateLimitConfig struct {
	Enabled                 bool
	AuthRequestsPerMinute   int
	AuthWindowMinutes       int
	VerifyRequestsPerWindow int
	VerifyWindowMinutes     int
	ResetRequestsPerWindow  int
	ResetWindowMinutes      int
}

// ThrottleConfig holds per-email attempt limits for login and forgot-password.
type ThrottleConfig struct {
	Enabled        bool
	LoginAttempts  int
	ForgotAttempts int
	Window         time.Duration
}

// SecurityHeadersConfig holds response security header values.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// CORSConfig holds cross-origin settings for the storefront and admin console.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr:      getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:      getEnvInt("SERVER_PORT", 8080),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		// Store defaults (matches podman setup: make postgres-start)
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", true),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnvInt("DB_PORT", 25432),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "tour_auth"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "tours"),
		RedisURL:       getEnv("REDIS_URL", ""),

		// JWT defaults
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "tour-auth"),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 90*24*time.Hour),
		ResetTokenTTL:  getEnvDuration("RESET_TOKEN_TTL", 15*time.Minute),

		// OTP defaults
		OTPTTL:           getEnvDuration("OTP_TTL", 15*time.Minute),
		OTPMaxAttempts:   getEnvInt("OTP_MAX_ATTEMPTS", 5),
		OTPBlockDuration: getEnvDuration("OTP_BLOCK_DURATION", 30*time.Minute),

		// Google sign-in (optional)
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleMobileClientIDs: getEnvList("GOOGLE_MOBILE_CLIENT_IDS"),

		// SMTP (optional)
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Natours"),
		SMTPMode:     strings.ToLower(getEnv("SMTP_MODE", "starttls")),

		BootstrapAdminEmail:    strings.ToLower(strings.TrimSpace(getEnv("BOOTSTRAP_ADMIN_EMAIL", ""))),
		BootstrapAdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),

		CookieName:   getEnv("COOKIE_NAME", "jwt"),
		CookieDomain: getEnv("COOKIE_DOMAIN", ""),
		CookieSecure: getEnvBool("COOKIE_SECURE", false),

		PasswordPolicy: PasswordPolicyConfig{
			MinLength:        getEnvInt("PASSWORD_MIN_LENGTH", 8),
			RequireUppercase: getEnvBool("PASSWORD_REQUIRE_UPPERCASE", false),
			RequireLowercase: getEnvBool("PASSWORD_REQUIRE_LOWERCASE", false),
			RequireNumber:    getEnvBool("PASSWORD_REQUIRE_NUMBER", false),
			RequireSpecial:   getEnvBool("PASSWORD_REQUIRE_SPECIAL", false),
		},

		Validation: ValidationConfig{
			StrictEmailValidation: getEnvBool("STRICT_EMAIL_VALIDATION", true),
			BlockDisposableEmail:  getEnvBool("BLOCK_DISPOSABLE_EMAIL", false),
			MaxRequestBodySize:    int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 10*1024)),
		},

		RateLimit: RateLimitConfig{
			Enabled:                 getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequestsPerMinute:   getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 20),
			AuthWindowMinutes:       getEnvInt("RATE_LIMIT_AUTH_WINDOW_MINUTES", 1),
			VerifyRequestsPerWindow: getEnvInt("RATE_LIMIT_VERIFY_REQUESTS", 10),
			VerifyWindowMinutes:     getEnvInt("RATE_LIMIT_VERIFY_WINDOW_MINUTES", 15),
			ResetRequestsPerWindow:  getEnvInt("RATE_LIMIT_RESET_REQUESTS", 10),
			ResetWindowMinutes:      getEnvInt("RATE_LIMIT_RESET_WINDOW_MINUTES", 15),
		},

		Throttle: ThrottleConfig{
			Enabled:        getEnvBool("THROTTLE_ENABLED", true),
			LoginAttempts:  getEnvInt("THROTTLE_LOGIN_ATTEMPTS", 10),
			ForgotAttempts: getEnvInt("THROTTLE_FORGOT_ATTEMPTS", 5),
			Window:         getEnvDuration("THROTTLE_WINDOW", 15*time.Minute),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", "0"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", ""),
		},

		CORS: CORSConfig{
			AllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS"),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getEnvInt("CORS_MAX_AGE", 300),
		},
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.StoreDriver {
	case StorePostgres, StoreMongo, StoreMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	switch cfg.SMTPMode {
	case "starttls", "tls", "none":
	default:
		return nil, fmt.Errorf("unsupported SMTP_MODE %q", cfg.SMTPMode)
	}

	return cfg, nil
}

// HasGoogle returns true if Google sign-in is configured.
func (c *Config) HasGoogle() bool {
	return c.GoogleClientID != "" || len(c.GoogleMobileClientIDs) > 0
}

// HasSMTP returns true if outbound email is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// HasRedis returns true if a Redis URL is configured.
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
