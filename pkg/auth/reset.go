package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/tour-auth/pkg/domain"
)

// ForgotPasswordMessage is returned whether or not the email is registered.
const ForgotPasswordMessage = "If an account exists for that email, a password reset code has been sent."

// ForgotPassword issues and delivers a password-reset code. The returned
// message is identical for known and unknown emails.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", domain.NewValidationError("email", "please provide your email")
	}

	if err := s.throttle(ctx, s.forgotThrottle, "forgot:"+email); err != nil {
		return "", err
	}

	acct, err := s.store.GetActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return ForgotPasswordMessage, nil
		}
		return "", fmt.Errorf("lookup account: %w", err)
	}

	now := s.now()
	if acct.IsBlocked(now) || acct.PasswordResetOTP.Active(now) {
		return ForgotPasswordMessage, nil
	}

	code, err := s.otp.Issue(acct, domain.OTPPurposePasswordReset)
	if err != nil {
		return "", err
	}
	acct.UpdatedAt = now
	if err := s.store.Update(ctx, acct); err != nil {
		return "", err
	}

	msg := PasswordResetOTPMessage(acct.FirstName, code, s.otp.TTL())
	if err := s.send(ctx, acct.Email, msg); err != nil {
		s.logger.Error("failed to send password reset code", "account_id", acct.ID, "error", err)

		// Roll back so the account can request a new code immediately.
		s.otp.Clear(acct, domain.OTPPurposePasswordReset)
		if uerr := s.store.Update(ctx, acct); uerr != nil {
			s.logger.Error("failed to clear password reset code", "account_id", acct.ID, "error", uerr)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	return ForgotPasswordMessage, nil
}

// VerifyResetOTP checks a password-reset code and returns a short-lived
// reset token scoped to the reset operation.
func (s *Service) VerifyResetOTP(ctx context.Context, email, otp string) (string, time.Time, error) {
	acct, code, err := s.loadForOTP(ctx, email, otp)
	if err != nil {
		return "", time.Time{}, err
	}

	if err := s.checkOTP(ctx, acct, domain.OTPPurposePasswordReset, code); err != nil {
		return "", time.Time{}, err
	}

	token, tokenID, expiresAt, err := s.tokens.IssueReset(acct.ID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue reset token: %w", err)
	}

	// Only the newest reset token can be redeemed.
	acct.ClearOTPState()
	acct.ResetTokenID = tokenID
	acct.UpdatedAt = s.now()
	if err := s.store.Update(ctx, acct); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ResetPasswordWithOTP sets a new password using a reset token from VerifyResetOTP.
func (s *Service) ResetPasswordWithOTP(ctx context.Context, resetToken, newPassword, confirm string) error {
	claims, err := s.tokens.VerifyPurpose(strings.TrimSpace(resetToken), PurposePasswordReset)
	if err != nil {
		return err
	}
	if err := s.policy.ValidateChange(newPassword, confirm); err != nil {
		return err
	}

	id, err := claims.AccountID()
	if err != nil {
		return domain.ErrInvalidOrExpiredToken
	}
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrInvalidOrExpiredToken
		}
		return err
	}
	if !acct.Active {
		return domain.ErrDeactivated
	}
	if acct.ResetTokenID == "" || subtle.ConstantTimeCompare([]byte(acct.ResetTokenID), []byte(claims.ID)) != 1 {
		return domain.ErrInvalidOrExpiredToken
	}

	if err := s.setPassword(ctx, acct, newPassword); err != nil {
		return err
	}

	s.logger.Info("password reset", "account_id", acct.ID)
	return nil
}

// UpdatePassword changes the password of an authenticated account and
// issues a fresh login token.
func (s *Service) UpdatePassword(ctx context.Context, accountID uuid.UUID, current, newPassword, confirm string) (*AuthResult, error) {
	if current == "" {
		return nil, domain.NewValidationError("passwordCurrent", "please provide your current password")
	}

	acct, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !acct.HasPassword() || !VerifyPassword(current, *acct.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if err := s.policy.ValidateChange(newPassword, confirm); err != nil {
		return nil, err
	}

	if err := s.setPassword(ctx, acct, newPassword); err != nil {
		return nil, err
	}

	s.logger.Info("password updated", "account_id", acct.ID)
	return s.issueLogin(acct)
}

// setPassword stores a new password hash and revokes pending codes and
// reset tokens. The notice is best-effort.
func (s *Service) setPassword(ctx context.Context, acct *domain.Account, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	acct.PasswordHash = &hash
	acct.PasswordChangedAt = &now
	acct.ResetTokenID = ""
	acct.ClearOTPState()
	acct.UpdatedAt = now
	if err := s.store.Update(ctx, acct); err != nil {
		return err
	}

	if err := s.send(ctx, acct.Email, PasswordChangedMessage(acct.FirstName)); err != nil {
		s.logger.Warn("failed to send password changed notice", "account_id", acct.ID, "error", err)
	}
	return nil
}
