package password

import (
	"log/slog"
	"net/http"

	"github.com/tendant/tour-auth/internal/http/features/common"
	"github.com/tendant/tour-auth/internal/http/middleware"
	"github.com/tendant/tour-auth/internal/httputil"
	"github.com/tendant/tour-auth/pkg/auth"
)

// Handler handles password authentication endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *auth.Service
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new password handler.
func NewHandler(logger *slog.Logger, service *auth.Service, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		cookieConfig: cookieConfig,
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// VerifyResetOTPRequest exchanges a reset code for a reset token.
type VerifyResetOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// ResetPasswordRequest sets a new password with a reset token.
type ResetPasswordRequest struct {
	ResetToken      string `json:"resetToken"`
	NewPassword     string `json:"newPassword"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UpdatePasswordRequest changes the password of the logged-in account.
type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Register handles account registration.
// POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	acct, err := h.service.Register(r.Context(), auth.RegisterInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{
		"status":  httputil.StatusSuccess,
		"message": "account created, a verification code has been sent to your email",
		"user":    acct.Public(),
	})
}

// Login handles email and password login.
// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	common.WriteAuthResult(w, http.StatusOK, res, h.cookieConfig)
}

// ForgotPassword sends a reset code. The response does not reveal whether
// the email is registered.
// POST /auth/forgot-password
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	msg, err := h.service.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"status":  httputil.StatusSuccess,
		"message": msg,
	})
}

// VerifyResetOTP exchanges a reset code for a short-lived reset token.
// POST /auth/verify-reset-otp
func (h *Handler) VerifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyResetOTPRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	token, expiresAt, err := h.service.VerifyResetOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"status":     httputil.StatusSuccess,
		"message":    "code verified, you can now set a new password",
		"resetToken": token,
		"expiresAt":  expiresAt,
	})
}

// ResetPassword sets a new password using a reset token.
// POST /auth/reset-password
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	if err := h.service.ResetPasswordWithOTP(r.Context(), req.ResetToken, req.NewPassword, req.PasswordConfirm); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"status":  httputil.StatusSuccess,
		"message": "password has been reset, please log in with your new password",
	})
}

// UpdatePassword changes the password of the logged-in account.
// PATCH /auth/update-password
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	acct, ok := middleware.CurrentAccount(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "you are not logged in, please log in to get access")
		return
	}

	var req UpdatePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	res, err := h.service.UpdatePassword(r.Context(), acct.ID, req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	common.WriteAuthResult(w, http.StatusOK, res, h.cookieConfig)
}
