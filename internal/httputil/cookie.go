package httputil

import (
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is the token cookie read by the access gates.
const DefaultCookieName = "jwt"

// CookieConfig holds cookie configuration.
type CookieConfig struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// DefaultCookieConfig returns default cookie configuration.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     DefaultCookieName,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return DefaultCookieName
	}
	return c.Name
}

func (c CookieConfig) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.name(),
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

// SetTokenCookie sets an HttpOnly cookie carrying the login token until
// expiresAt.
func SetTokenCookie(w http.ResponseWriter, token string, expiresAt time.Time, cfg CookieConfig) {
	c := cfg.cookie(token, int(time.Until(expiresAt).Seconds()))
	c.Expires = expiresAt
	http.SetCookie(w, c)
}

// ClearTokenCookie expires the token cookie.
func ClearTokenCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, cfg.cookie("", -1))
}

// GetTokenFromCookie extracts the token cookie.
func GetTokenFromCookie(r *http.Request, cfg CookieConfig) (string, bool) {
	cookie, err := r.Cookie(cfg.name())
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequestToken returns the bearer token, falling back to the cookie.
func RequestToken(r *http.Request, cfg CookieConfig) (string, bool) {
	if token, ok := BearerToken(r); ok {
		return token, true
	}
	return GetTokenFromCookie(r, cfg)
}
