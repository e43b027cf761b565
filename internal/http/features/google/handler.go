package google

import (
	"log/slog"
	"net/http"

	"github.com/tendant/tour-auth/internal/http/features/common"
	"github.com/tendant/tour-auth/internal/httputil"
	"github.com/tendant/tour-auth/pkg/auth"
)

// Handler handles Google sign-in.
type Handler struct {
	logger       *slog.Logger
	service      *auth.Service
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new Google sign-in handler.
func NewHandler(logger *slog.Logger, service *auth.Service, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		cookieConfig: cookieConfig,
	}
}

// LoginRequest carries a Google ID token obtained by the client.
type LoginRequest struct {
	Token string `json:"token"`
}

// Login signs in with a Google ID token.
// POST /auth/google-login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	res, err := h.service.GoogleLogin(r.Context(), req.Token)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	common.WriteAuthResult(w, http.StatusOK, res, h.cookieConfig)
}
