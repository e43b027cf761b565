package common

import (
	"net/http"

	"github.com/tendant/tour-auth/internal/httputil"
	"github.com/tendant/tour-auth/pkg/auth"
)

// WriteAuthResult sets the token cookie and writes {status, token, user}.
func WriteAuthResult(w http.ResponseWriter, status int, res *auth.AuthResult, cookie httputil.CookieConfig) {
	httputil.SetTokenCookie(w, res.Token, res.ExpiresAt, cookie)
	httputil.JSON(w, status, map[string]any{
		"status": httputil.StatusSuccess,
		"token":  res.Token,
		"user":   res.Account.Public(),
	})
}
