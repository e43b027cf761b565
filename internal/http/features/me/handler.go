package me

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/tour-auth/internal/http/features/common"
	"github.com/tendant/tour-auth/internal/http/middleware"
	"github.com/tendant/tour-auth/internal/httputil"
	"github.com/tendant/tour-auth/pkg/auth"
)

// Handler serves the current account and admin account lookups.
type Handler struct {
	logger  *slog.Logger
	service *auth.Service
}

// NewHandler creates a new me handler.
func NewHandler(logger *slog.Logger, service *auth.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// GetMe returns the logged-in account.
// GET /auth/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := middleware.CurrentAccount(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "you are not logged in, please log in to get access")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"status": httputil.StatusSuccess,
		"user":   acct.Public(),
	})
}

// Status reports whether the request is authenticated. Never fails.
// GET /auth/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":   httputil.StatusSuccess,
		"loggedIn": false,
	}
	if acct, ok := middleware.CurrentAccount(r.Context()); ok {
		body["loggedIn"] = true
		body["user"] = acct.Public()
	}
	httputil.JSON(w, http.StatusOK, body)
}

// GetAccount returns any account by id.
// GET /admin/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid account id")
		return
	}

	acct, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"status": httputil.StatusSuccess,
		"user":   acct.Public(),
		"active": acct.Active,
	})
}
