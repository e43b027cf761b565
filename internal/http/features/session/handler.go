package session

import (
	"net/http"

	"github.com/tendant/tour-auth/internal/httputil"
)

// Handler handles session endpoints.
type Handler struct {
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new session handler.
func NewHandler(cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{cookieConfig: cookieConfig}
}

// Logout clears the token cookie. Bearer tokens held by clients stay
// valid until they expire.
// GET /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	httputil.ClearTokenCookie(w, h.cookieConfig)
	httputil.JSON(w, http.StatusOK, map[string]string{"status": httputil.StatusSuccess})
}
