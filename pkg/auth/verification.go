package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/tour-auth/pkg/domain"
)

// VerifyEmailOTP checks an email-verification code and, on success, marks the
// account verified and issues a login token.
func (s *Service) VerifyEmailOTP(ctx context.Context, email, otp string) (*AuthResult, error) {
	acct, code, err := s.loadForOTP(ctx, email, otp)
	if err != nil {
		return nil, err
	}
	if acct.IsVerified {
		return nil, domain.ErrAlreadyVerified
	}

	if err := s.checkOTP(ctx, acct, domain.OTPPurposeEmailVerification, code); err != nil {
		return nil, err
	}

	acct.IsVerified = true
	acct.UpdatedAt = s.now()
	if err := s.store.Update(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info("email verified", "account_id", acct.ID)
	return s.issueLogin(acct)
}

// ResendEmailOTP issues and delivers a fresh email-verification code.
func (s *Service) ResendEmailOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return domain.NewValidationError("email", "please provide your email")
	}

	acct, err := s.store.GetActiveByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct.IsVerified {
		return domain.ErrAlreadyVerified
	}
	now := s.now()
	if acct.IsBlocked(now) {
		return &domain.BlockedError{RetryAfter: acct.BlockedFor(now)}
	}

	code, err := s.otp.Issue(acct, domain.OTPPurposeEmailVerification)
	if err != nil {
		return err
	}
	acct.UpdatedAt = now
	if err := s.store.Update(ctx, acct); err != nil {
		return err
	}

	msg := VerificationOTPMessage(acct.FirstName, code, s.otp.TTL())
	if err := s.send(ctx, acct.Email, msg); err != nil {
		s.logger.Error("failed to resend verification code", "account_id", acct.ID, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	return nil
}

// GoogleLogin signs in with a Google ID token, creating or linking the
// account by email.
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, domain.NewValidationError("token", "please provide a Google token")
	}
	if s.provider == nil {
		return nil, domain.ErrInvalidProvider
	}

	claims, err := s.provider.Verify(ctx, idToken)
	if err != nil {
		s.logger.Warn("google token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidProviderToken, err)
	}
	if !isGoogleIssuer(claims.Issuer) {
		return nil, domain.ErrInvalidProvider
	}
	now := s.now()
	if claims.ExpiresAt.IsZero() || !now.Before(claims.ExpiresAt) {
		return nil, domain.ErrProviderTokenExpired
	}
	claims.Email = NormalizeEmail(claims.Email)
	if claims.Subject == "" || claims.Email == "" || !claims.EmailVerified {
		return nil, domain.ErrInvalidProviderToken
	}

	acct, err := s.store.GetByGoogleID(ctx, claims.Subject)
	switch {
	case err == nil:
		if !acct.Active {
			return nil, domain.ErrDeactivated
		}
		if s.backfill(acct, claims) {
			acct.UpdatedAt = now
			if err := s.store.Update(ctx, acct); err != nil {
				return nil, err
			}
		}
		return s.issueLogin(acct)
	case !errors.Is(err, domain.ErrAccountNotFound):
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	acct, err = s.store.GetByEmail(ctx, claims.Email)
	switch {
	case err == nil:
		if acct.GoogleID != nil && *acct.GoogleID != claims.Subject {
			return nil, domain.ErrIdentityConflict
		}
		if !acct.Active {
			return nil, domain.ErrDeactivated
		}
		sub := claims.Subject
		acct.GoogleID = &sub
		s.backfill(acct, claims)
		acct.UpdatedAt = now
		if err := s.store.Update(ctx, acct); err != nil {
			return nil, err
		}
		s.logger.Info("google identity linked", "account_id", acct.ID)
		return s.issueLogin(acct)
	case !errors.Is(err, domain.ErrAccountNotFound):
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	sub := claims.Subject
	acct = &domain.Account{
		ID:         uuid.New(),
		Email:      claims.Email,
		FirstName:  SanitizeName(claims.GivenName),
		LastName:   SanitizeName(claims.FamilyName),
		Photo:      claims.Picture,
		GoogleID:   &sub,
		Role:       domain.RoleUser,
		Active:     true,
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info("account registered via google", "account_id", acct.ID)
	return s.issueLogin(acct)
}

// backfill copies provider profile fields into empty account fields and
// marks the email verified. Existing values are never overwritten.
func (s *Service) backfill(acct *domain.Account, claims *IdentityClaims) bool {
	changed := false
	if acct.FirstName == "" && claims.GivenName != "" {
		acct.FirstName = SanitizeName(claims.GivenName)
		changed = true
	}
	if acct.LastName == "" && claims.FamilyName != "" {
		acct.LastName = SanitizeName(claims.FamilyName)
		changed = true
	}
	if acct.Photo == "" && claims.Picture != "" {
		acct.Photo = claims.Picture
		changed = true
	}
	if !acct.IsVerified && acct.Email == claims.Email {
		acct.IsVerified = true
		changed = true
	}
	return changed
}

// loadForOTP normalizes input and loads the active account.
func (s *Service) loadForOTP(ctx context.Context, email, otp string) (*domain.Account, string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, "", domain.NewValidationError("email", "please provide your email")
	}
	code, err := normalizeOTP(otp)
	if err != nil {
		return nil, "", err
	}
	acct, err := s.store.GetActiveByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	return acct, code, nil
}

// checkOTP verifies code and persists attempt bookkeeping on failure.
// On success the caller persists the account with its own changes.
func (s *Service) checkOTP(ctx context.Context, acct *domain.Account, purpose domain.OTPPurpose, code string) error {
	before := acct.OTPAttempts
	res := s.otp.Verify(acct, purpose, code)
	if res.Outcome == OTPValid {
		return nil
	}

	if acct.OTPAttempts != before {
		acct.UpdatedAt = s.now()
		if err := s.store.Update(ctx, acct); err != nil {
			return err
		}
	}
	if res.Outcome == OTPInvalidBlocked {
		s.logger.Warn("otp attempts blocked", "account_id", acct.ID, "purpose", string(purpose))
	}
	return otpError(res)
}
