package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is an account's authorization role.
type Role string

const (
	RoleUser  Role = "user"
	RoleGuide Role = "tour-guide"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleAdmin:
		return true
	}
	return false
}

// OTPPurpose selects which pending code slot an OTP belongs to.
type OTPPurpose string

const (
	OTPPurposeEmailVerification OTPPurpose = "email-verification"
	OTPPurposePasswordReset     OTPPurpose = "password-reset"
)

// PendingOTP is the hashed code and expiry for one purpose.
type PendingOTP struct {
	Hash      string
	ExpiresAt *time.Time
}

// Active reports whether a code is pending and unexpired at now.
func (p PendingOTP) Active(now time.Time) bool {
	return p.Hash != "" && p.ExpiresAt != nil && now.Before(*p.ExpiresAt)
}

// Account represents a user of the tour-booking app.
type Account struct {
	ID           uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	Photo        string
	PasswordHash *string
	GoogleID     *string
	Role         Role
	Active       bool
	IsVerified   bool

	EmailVerificationOTP PendingOTP
	PasswordResetOTP     PendingOTP
	OTPAttempts          int
	OTPBlockedUntil      *time.Time

	// ResetTokenID is the jti of the one reset token that may still be redeemed.
	ResetTokenID string

	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OTP returns the pending code slot for purpose, or nil for an unknown purpose.
func (a *Account) OTP(purpose OTPPurpose) *PendingOTP {
	switch purpose {
	case OTPPurposeEmailVerification:
		return &a.EmailVerificationOTP
	case OTPPurposePasswordReset:
		return &a.PasswordResetOTP
	}
	return nil
}

// IsBlocked returns true if OTP attempts are locked out at now.
func (a *Account) IsBlocked(now time.Time) bool {
	return a.OTPBlockedUntil != nil && now.Before(*a.OTPBlockedUntil)
}

// BlockedFor returns the remaining lockout at now, or zero.
func (a *Account) BlockedFor(now time.Time) time.Duration {
	if !a.IsBlocked(now) {
		return 0
	}
	return a.OTPBlockedUntil.Sub(now)
}

// HasPassword reports whether the account can log in with a local password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at issuedAt. Token timestamps have second precision, so a token
// issued in the same second as the change is still accepted.
func (a *Account) ChangedPasswordAfter(issuedAt time.Time) bool {
	if a.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < a.PasswordChangedAt.Unix()
}

// ClearOTPState drops every pending code and lockout.
func (a *Account) ClearOTPState() {
	a.EmailVerificationOTP = PendingOTP{}
	a.PasswordResetOTP = PendingOTP{}
	a.OTPAttempts = 0
	a.OTPBlockedUntil = nil
}

// PublicAccount is the client-facing projection of an Account.
type PublicAccount struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName,omitempty"`
	LastName   string    `json:"lastName,omitempty"`
	Photo      string    `json:"photo,omitempty"`
	Role       Role      `json:"role"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Public strips credentials and OTP state.
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:         a.ID.String(),
		Email:      a.Email,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Photo:      a.Photo,
		Role:       a.Role,
		IsVerified: a.IsVerified,
		CreatedAt:  a.CreatedAt,
	}
}
