package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tendant/tour-auth/internal/httputil"
	"github.com/tendant/tour-auth/pkg/domain"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestWriteError_Status(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.NewValidationError("email", "please provide a valid email"), http.StatusBadRequest},
		{"invalid body", fmt.Errorf("%w: eof", httputil.ErrInvalidBody), http.StatusBadRequest},
		{"duplicate", domain.ErrDuplicateEmail, http.StatusConflict},
		{"credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{"token", domain.ErrInvalidOrExpiredToken, http.StatusUnauthorized},
		{"provider token", fmt.Errorf("%w: bad audience", domain.ErrInvalidProviderToken), http.StatusUnauthorized},
		{"provider", domain.ErrInvalidProvider, http.StatusUnauthorized},
		{"provider expired", domain.ErrProviderTokenExpired, http.StatusUnauthorized},
		{"otp expired", domain.ErrOTPExpired, http.StatusBadRequest},
		{"otp invalid", domain.ErrOTPInvalid, http.StatusBadRequest},
		{"already verified", domain.ErrAlreadyVerified, http.StatusBadRequest},
		{"not found", domain.ErrAccountNotFound, http.StatusNotFound},
		{"conflict", domain.ErrIdentityConflict, http.StatusConflict},
		{"deactivated", domain.ErrDeactivated, http.StatusForbidden},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"delivery", fmt.Errorf("%w: smtp down", domain.ErrDeliveryFailed), http.StatusInternalServerError},
		{"unknown", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, nil, tt.err)
			if w.Code != tt.want {
				t.Errorf("got status %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestWriteError_DoesNotLeakInternals(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, nil, errors.New("pq: password authentication failed for user tours"))

	body := decode(t, w)
	if body["message"] != MsgInternal || body["status"] != httputil.StatusError {
		t.Errorf("body = %v", body)
	}
}

func TestWriteError_Unverified(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, nil, &domain.UnverifiedError{Email: "a@x.com"})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != httputil.StatusUnverified || body["email"] != "a@x.com" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteError_Blocked(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, nil, &domain.BlockedError{RetryAfter: 29*time.Minute + 10*time.Second})

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1750" {
		t.Errorf("Retry-After = %q", got)
	}
	body := decode(t, w)
	if body["retryAfterMinutes"] != float64(30) {
		t.Errorf("body = %v", body)
	}
}
