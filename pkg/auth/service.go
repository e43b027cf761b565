package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/tour-auth/pkg/domain"
)

// AccountStore persists accounts. Implementations return
// domain.ErrAccountNotFound for missing records and
// domain.ErrDuplicateEmail on unique violations.
type AccountStore interface {
	Create(ctx context.Context, acct *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetActiveByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByGoogleID(ctx context.Context, googleID string) (*domain.Account, error)
	Update(ctx context.Context, acct *domain.Account) error
}

// NotificationSink delivers an HTML message to an email address.
type NotificationSink interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Throttle counts attempts per key within a window.
type Throttle interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// throttleResetter is implemented by throttles that can clear a key early.
type throttleResetter interface {
	Reset(ctx context.Context, key string) error
}

// ServiceConfig wires the Auth Service collaborators.
type ServiceConfig struct {
	Store    AccountStore
	Tokens   *TokenService
	OTP      *OTPService
	Policy   *PasswordPolicy
	Provider IdentityProvider
	Notifier NotificationSink

	// Optional per-email throttles
	LoginThrottle  Throttle
	ForgotThrottle Throttle

	// BootstrapAdminEmail is reserved for EnsureBootstrapAdmin. Its admin
	// account may log in without verifying.
	BootstrapAdminEmail  string
	StrictEmail          bool
	BlockDisposableEmail bool

	Logger *slog.Logger
	Now    func() time.Time
}

// Service orchestrates registration, login, verification and password flows.
type Service struct {
	store    AccountStore
	tokens   *TokenService
	otp      *OTPService
	policy   *PasswordPolicy
	provider IdentityProvider
	notifier NotificationSink

	loginThrottle  Throttle
	forgotThrottle Throttle

	bootstrapAdminEmail  string
	strictEmail          bool
	blockDisposableEmail bool

	logger *slog.Logger
	now    func() time.Time
}

// NewService creates the Auth Service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		store:                cfg.Store,
		tokens:               cfg.Tokens,
		otp:                  cfg.OTP,
		policy:               cfg.Policy,
		provider:             cfg.Provider,
		notifier:             cfg.Notifier,
		loginThrottle:        cfg.LoginThrottle,
		forgotThrottle:       cfg.ForgotThrottle,
		bootstrapAdminEmail:  NormalizeEmail(cfg.BootstrapAdminEmail),
		strictEmail:          cfg.StrictEmail,
		blockDisposableEmail: cfg.BlockDisposableEmail,
		logger:               cfg.Logger,
		now:                  cfg.Now,
	}
	if s.otp == nil {
		s.otp = NewOTPService(OTPConfig{})
	}
	if s.policy == nil {
		s.policy = &PasswordPolicy{MinLength: DefaultMinPasswordLength}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// RegisterInput is the public registration payload.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	PasswordConfirm string
}

// AuthResult is returned by every operation that issues a login token.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *domain.Account
}

// Register creates an unverified local account and delivers a verification code.
// Delivery failure is logged; the account stays and the code can be resent.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email, s.strictEmail, s.blockDisposableEmail); err != nil {
		return nil, err
	}
	firstName, lastName, err := s.cleanNames(in.FirstName, in.LastName)
	if err != nil {
		return nil, err
	}
	if err := s.policy.ValidateChange(in.Password, in.PasswordConfirm); err != nil {
		return nil, err
	}

	if s.isBootstrapEmail(email) {
		return nil, domain.ErrDuplicateEmail
	}

	// Early duplicate check; the store's unique index is authoritative.
	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	acct := &domain.Account{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: &hash,
		Role:         domain.RoleUser,
		Active:       true,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	code, err := s.otp.Issue(acct, domain.OTPPurposeEmailVerification)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, acct); err != nil {
		return nil, err
	}

	msg := VerificationOTPMessage(acct.FirstName, code, s.otp.TTL())
	if err := s.send(ctx, acct.Email, msg); err != nil {
		s.logger.Warn("failed to send verification code", "account_id", acct.ID, "error", err)
	}

	s.logger.Info("account registered", "account_id", acct.ID)
	return acct, nil
}

// Login authenticates with email and password.
// Unknown email and wrong password both yield domain.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.NewValidationError("", "please provide email and password")
	}

	if err := s.throttle(ctx, s.loginThrottle, "login:"+email); err != nil {
		return nil, err
	}

	acct, err := s.store.GetActiveByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		acct = nil
	case err != nil:
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	// Missing and password-less accounts still pay the hashing cost so
	// response time does not tell them apart.
	hash := dummyHash()
	if acct != nil && acct.HasPassword() {
		hash = *acct.PasswordHash
	}
	if !verifyPassword(password, hash) || acct == nil || !acct.HasPassword() {
		return nil, domain.ErrInvalidCredentials
	}

	if !acct.IsVerified && !s.isBootstrapAdmin(acct) {
		return nil, &domain.UnverifiedError{Email: acct.Email}
	}

	if r, ok := s.loginThrottle.(throttleResetter); ok {
		if err := r.Reset(ctx, "login:"+email); err != nil {
			s.logger.Warn("failed to reset login throttle", "error", err)
		}
	}

	return s.issueLogin(acct)
}

// GetAccount returns an account by id.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.store.GetByID(ctx, id)
}

// EnsureBootstrapAdmin creates a verified admin account for email if none exists.
// An existing verified admin is returned unchanged. Any other existing account
// is promoted: a configured password replaces its own and revokes its tokens,
// and without one only a verified account is promoted.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, email, password string) (*domain.Account, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email, false, false); err != nil {
		return nil, err
	}

	var hash *string
	if password != "" {
		if err := s.policy.ValidatePassword(password); err != nil {
			return nil, err
		}
		h, err := HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash = &h
	}

	acct, err := s.store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.promoteBootstrapAdmin(ctx, acct, hash)
	case !errors.Is(err, domain.ErrAccountNotFound):
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	now := s.now()
	acct = &domain.Account{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    "Admin",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info("bootstrap admin created", "account_id", acct.ID)
	return acct, nil
}

func (s *Service) promoteBootstrapAdmin(ctx context.Context, acct *domain.Account, hash *string) (*domain.Account, error) {
	if acct.Role == domain.RoleAdmin && acct.IsVerified {
		return acct, nil
	}
	if hash == nil && !acct.IsVerified {
		return nil, domain.ErrBootstrapUnverified
	}

	now := s.now()
	if hash != nil {
		acct.PasswordHash = hash
		acct.PasswordChangedAt = &now
		acct.ResetTokenID = ""
		acct.ClearOTPState()
	}
	acct.Role = domain.RoleAdmin
	acct.IsVerified = true
	acct.UpdatedAt = now
	if err := s.store.Update(ctx, acct); err != nil {
		return nil, err
	}
	s.logger.Info("bootstrap admin promoted", "account_id", acct.ID, "password_replaced", hash != nil)
	return acct, nil
}

func (s *Service) issueLogin(acct *domain.Account) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.IssueAccess(acct.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, Account: acct}, nil
}

func (s *Service) isBootstrapEmail(email string) bool {
	return s.bootstrapAdminEmail != "" && email == s.bootstrapAdminEmail
}

func (s *Service) isBootstrapAdmin(acct *domain.Account) bool {
	return acct.Role == domain.RoleAdmin && s.isBootstrapEmail(NormalizeEmail(acct.Email))
}

func (s *Service) cleanNames(first, last string) (string, string, error) {
	first, last = SanitizeName(first), SanitizeName(last)
	if err := checkNameLength("firstName", first); err != nil {
		return "", "", err
	}
	if err := checkNameLength("lastName", last); err != nil {
		return "", "", err
	}
	return first, last, nil
}

func (s *Service) send(ctx context.Context, to string, msg Message) error {
	if s.notifier == nil {
		return errors.New("no notification sink configured")
	}
	return s.notifier.Send(ctx, to, msg.Subject, msg.HTML)
}

// throttle fails open when the backend errors.
func (s *Service) throttle(ctx context.Context, t Throttle, key string) error {
	if t == nil {
		return nil
	}
	allowed, retryAfter, err := t.Allow(ctx, key)
	if err != nil {
		s.logger.Warn("throttle unavailable", "error", err)
		return nil
	}
	if !allowed {
		return &domain.BlockedError{RetryAfter: retryAfter}
	}
	return nil
}

// otpError maps an OTP outcome to the service error taxonomy.
func otpError(res OTPResult) error {
	switch res.Outcome {
	case OTPValid:
		return nil
	case OTPExpired:
		return domain.ErrOTPExpired
	case OTPInvalidBlocked:
		return &domain.BlockedError{RetryAfter: res.RetryAfter}
	default:
		return domain.ErrOTPInvalid
	}
}

func normalizeOTP(otp string) (string, error) {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return "", domain.NewValidationError("otp", "please provide the verification code")
	}
	return otp, nil
}

// verifyPassword is replaced in tests to observe hashing work.
var verifyPassword = VerifyPassword

// dummyHash is verified against when the account has no usable password.
var dummyHash = sync.OnceValue(func() string {
	hash, err := HashPassword("not-a-real-password")
	if err != nil {
		return ""
	}
	return hash
})
