package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/tendant/tour-auth/pkg/domain"
)

// Default OTP lifetimes.
const (
	DefaultOTPTTL           = 15 * time.Minute
	DefaultOTPMaxAttempts   = 5
	DefaultOTPBlockDuration = 30 * time.Minute

	otpDigits = 6
)

var otpRange = big.NewInt(1_000_000)

// OTPOutcome is the result of checking a candidate code.
type OTPOutcome int

const (
	OTPValid OTPOutcome = iota
	OTPExpired
	OTPInvalidBlocked
	OTPInvalidRetry
)

func (o OTPOutcome) String() string {
	switch o {
	case OTPValid:
		return "valid"
	case OTPExpired:
		return "expired"
	case OTPInvalidBlocked:
		return "blocked"
	case OTPInvalidRetry:
		return "retry"
	}
	return "unknown"
}

// OTPResult carries the outcome and, when blocked, the remaining lockout.
type OTPResult struct {
	Outcome    OTPOutcome
	RetryAfter time.Duration
}

// OTPConfig holds OTP tuning.
type OTPConfig struct {
	TTL           time.Duration
	MaxAttempts   int
	BlockDuration time.Duration
}

// OTPService issues and checks email one-time codes.
// It mutates the account in memory; callers persist the result.
type OTPService struct {
	config OTPConfig
	now    func() time.Time
}

// NewOTPService creates a new OTP service.
func NewOTPService(config OTPConfig) *OTPService {
	if config.TTL == 0 {
		config.TTL = DefaultOTPTTL
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = DefaultOTPMaxAttempts
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = DefaultOTPBlockDuration
	}
	return &OTPService{config: config, now: time.Now}
}

// TTL returns the code lifetime.
func (s *OTPService) TTL() time.Duration {
	return s.config.TTL
}

// GenerateOTP returns a uniformly random 6-digit code, leading zeros kept.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// HashOTP returns the hex SHA-256 of a code.
func HashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Issue stores a fresh code for purpose on the account and returns the plaintext.
// Any previous code for the purpose is replaced; attempts and lockout reset.
func (s *OTPService) Issue(acct *domain.Account, purpose domain.OTPPurpose) (string, error) {
	slot := acct.OTP(purpose)
	if slot == nil {
		return "", fmt.Errorf("unknown otp purpose %q", purpose)
	}

	code, err := GenerateOTP()
	if err != nil {
		return "", err
	}

	expiresAt := s.now().Add(s.config.TTL)
	slot.Hash = HashOTP(code)
	slot.ExpiresAt = &expiresAt
	acct.OTPAttempts = 0
	acct.OTPBlockedUntil = nil

	return code, nil
}

// Verify checks candidate against the pending code for purpose.
func (s *OTPService) Verify(acct *domain.Account, purpose domain.OTPPurpose, candidate string) OTPResult {
	now := s.now()

	if acct.IsBlocked(now) {
		return OTPResult{Outcome: OTPInvalidBlocked, RetryAfter: acct.BlockedFor(now)}
	}

	slot := acct.OTP(purpose)
	if slot == nil || slot.Hash == "" || slot.ExpiresAt == nil || !now.Before(*slot.ExpiresAt) {
		return OTPResult{Outcome: OTPExpired}
	}

	if subtle.ConstantTimeCompare([]byte(HashOTP(candidate)), []byte(slot.Hash)) == 1 {
		*slot = domain.PendingOTP{}
		acct.OTPAttempts = 0
		acct.OTPBlockedUntil = nil
		return OTPResult{Outcome: OTPValid}
	}

	acct.OTPAttempts++
	if acct.OTPAttempts >= s.config.MaxAttempts {
		blockedUntil := now.Add(s.config.BlockDuration)
		acct.OTPBlockedUntil = &blockedUntil
		return OTPResult{Outcome: OTPInvalidBlocked, RetryAfter: s.config.BlockDuration}
	}

	return OTPResult{Outcome: OTPInvalidRetry}
}

// Clear drops the pending code for purpose.
func (s *OTPService) Clear(acct *domain.Account, purpose domain.OTPPurpose) {
	if slot := acct.OTP(purpose); slot != nil {
		*slot = domain.PendingOTP{}
	}
}
