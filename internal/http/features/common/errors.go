package common

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tendant/tour-auth/internal/httputil"
	"github.com/tendant/tour-auth/pkg/domain"
)

// Client-facing messages
const (
	MsgInvalidBody      = "invalid request body"
	MsgInternal         = "something went wrong"
	MsgUnverified       = "please verify your email address before logging in"
	MsgDeliveryFailed   = "there was an error sending the email, please try again later"
	MsgAccountNotFound  = "there is no account with that email address"
	MsgIdentityConflict = "this email is already linked to a different Google account"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

// errorTable maps domain sentinels to status codes. Order matters for
// errors that wrap more than one sentinel.
var errorTable = []errorMapping{
	{domain.ErrDuplicateEmail, http.StatusConflict, "an account with this email already exists"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "incorrect email or password"},
	{domain.ErrInvalidOrExpiredToken, http.StatusUnauthorized, "token is invalid or has expired"},
	{domain.ErrInvalidProviderToken, http.StatusUnauthorized, "invalid Google token"},
	{domain.ErrInvalidProvider, http.StatusUnauthorized, "invalid token issuer"},
	{domain.ErrProviderTokenExpired, http.StatusUnauthorized, "Google token has expired"},
	{domain.ErrOTPExpired, http.StatusBadRequest, "verification code has expired, please request a new one"},
	{domain.ErrOTPInvalid, http.StatusBadRequest, "invalid verification code"},
	{domain.ErrAlreadyVerified, http.StatusBadRequest, "email is already verified"},
	{domain.ErrAccountNotFound, http.StatusNotFound, MsgAccountNotFound},
	{domain.ErrIdentityConflict, http.StatusConflict, MsgIdentityConflict},
	{domain.ErrDeactivated, http.StatusForbidden, "this account has been deactivated"},
	{domain.ErrForbidden, http.StatusForbidden, "you do not have permission to perform this action"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "too many attempts, please try again later"},
	{domain.ErrDeliveryFailed, http.StatusInternalServerError, MsgDeliveryFailed},
}

// WriteError renders err as a JSON error response. Unknown errors are
// logged and reported as a generic 500.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		httputil.Error(w, http.StatusBadRequest, validation.Error())
		return
	}
	if errors.Is(err, httputil.ErrInvalidBody) {
		httputil.Error(w, http.StatusBadRequest, MsgInvalidBody)
		return
	}

	var unverified *domain.UnverifiedError
	if errors.As(err, &unverified) {
		httputil.Fail(w, http.StatusUnauthorized, MsgUnverified, map[string]any{
			"status": httputil.StatusUnverified,
			"email":  unverified.Email,
		})
		return
	}

	var blocked *domain.BlockedError
	if errors.As(err, &blocked) {
		minutes := blocked.Minutes()
		w.Header().Set("Retry-After", strconv.Itoa(int(blocked.RetryAfter.Seconds())))
		httputil.Fail(w, http.StatusTooManyRequests, blocked.Error(), map[string]any{
			"retryAfterMinutes": minutes,
		})
		return
	}

	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError && logger != nil {
				logger.Error("request failed", "error", err)
			}
			httputil.Error(w, m.status, m.message)
			return
		}
	}

	if logger != nil {
		logger.Error("unexpected error", "error", err)
	}
	httputil.Error(w, http.StatusInternalServerError, MsgInternal)
}
