package email

import (
	"log/slog"
	"net/http"

	"github.com/tendant/tour-auth/internal/http/features/common"
	"github.com/tendant/tour-auth/internal/httputil"
	"github.com/tendant/tour-auth/pkg/auth"
)

// Handler handles email verification endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *auth.Service
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new email verification handler.
func NewHandler(logger *slog.Logger, service *auth.Service, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		cookieConfig: cookieConfig,
	}
}

// VerifyOTPRequest carries an email verification code.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// ResendRequest asks for a new verification code.
type ResendRequest struct {
	Email string `json:"email"`
}

// VerifyOTP verifies the email and logs the account in.
// POST /auth/verifyEmailOTP
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	res, err := h.service.VerifyEmailOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	common.WriteAuthResult(w, http.StatusOK, res, h.cookieConfig)
}

// Resend issues and delivers a fresh verification code.
// POST /auth/resend-verification
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if err := h.service.ResendEmailOTP(r.Context(), email); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"status":  httputil.StatusSuccess,
		"message": "a new verification code has been sent to your email",
		"email":   email,
	})
}
