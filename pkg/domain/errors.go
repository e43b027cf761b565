package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Account errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrUnverified         = errors.New("email not verified")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrDeactivated        = errors.New("account deactivated")
	ErrForbidden          = errors.New("permission denied")
	ErrIdentityConflict   = errors.New("google account already linked to another account")

	ErrBootstrapUnverified = errors.New("bootstrap admin email belongs to an unverified account")
)

// Token errors
var (
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrInvalidProviderToken  = errors.New("invalid identity provider token")
	ErrInvalidProvider       = errors.New("unexpected identity provider")
	ErrProviderTokenExpired  = errors.New("identity provider token expired")
)

// OTP errors
var (
	ErrOTPExpired     = errors.New("verification code expired")
	ErrOTPInvalid     = errors.New("invalid verification code")
	ErrRateLimited    = errors.New("too many attempts")
	ErrDeliveryFailed = errors.New("failed to deliver notification")
)

// ErrValidation is the sentinel wrapped by ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// BlockedError is returned while an account is locked out of OTP attempts
// or a throttle window is exhausted.
type BlockedError struct {
	RetryAfter time.Duration
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("too many attempts, try again in %d minutes", e.Minutes())
}

func (e *BlockedError) Unwrap() error { return ErrRateLimited }

// Minutes returns RetryAfter rounded up to whole minutes.
func (e *BlockedError) Minutes() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Minutes()))
}

// UnverifiedError carries the email the client should verify.
type UnverifiedError struct {
	Email string
}

func (e *UnverifiedError) Error() string { return ErrUnverified.Error() }

func (e *UnverifiedError) Unwrap() error { return ErrUnverified }
