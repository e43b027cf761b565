package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tendant/tour-auth/internal/httputil"
)

func TestLogout_ClearsCookie(t *testing.T) {
	handler := NewHandler(httputil.DefaultCookieConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: "token"})
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" {
			found = true
			if c.Value != "" || c.MaxAge >= 0 {
				t.Errorf("cookie not cleared: %+v", c)
			}
		}
	}
	if !found {
		t.Error("jwt cookie not set on response")
	}
}
