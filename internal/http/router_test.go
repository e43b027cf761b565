package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/tour-auth/internal/config"
	"github.com/tendant/tour-auth/internal/httputil"
	"github.com/tendant/tour-auth/pkg/auth"
	"github.com/tendant/tour-auth/pkg/repository"
)

var codePattern = regexp.MustCompile(`<strong>(\d{6})</strong>`)

type recordingSink struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *recordingSink) Send(ctx context.Context, to, subject, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := codePattern.FindStringSubmatch(html); m != nil {
		s.codes[to] = m[1]
	}
	return nil
}

func (s *recordingSink) code(to string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[to]
}

type stubProvider struct {
	claims *auth.IdentityClaims
}

func (p *stubProvider) Verify(ctx context.Context, idToken string) (*auth.IdentityClaims, error) {
	c := *p.claims
	return &c, nil
}

type testServer struct {
	handler http.Handler
	service *auth.Service
	sink    *recordingSink
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenService(auth.TokenConfig{Secret: []byte("router-test-secret-at-least-32-bytes")})
	sink := &recordingSink{codes: map[string]string{}}
	provider := &stubProvider{claims: &auth.IdentityClaims{
		Issuer:        "accounts.google.com",
		Subject:       "google-sub-42",
		Email:         "guide@x.com",
		EmailVerified: true,
		GivenName:     "Gina",
		ExpiresAt:     time.Now().Add(time.Hour),
	}}

	svc := auth.NewService(auth.ServiceConfig{
		Store:       repository.NewMemoryAccountsRepository(),
		Tokens:      tokens,
		Policy:      &auth.PasswordPolicy{MinLength: 8},
		Provider:    provider,
		Notifier:    sink,
		StrictEmail: true,
		Logger:      logger,
	})

	handler := NewRouter(RouterConfig{
		Logger:       logger,
		AuthService:  svc,
		TokenService: tokens,
		Cookie:       httputil.DefaultCookieConfig(),
		Validation:   config.ValidationConfig{MaxRequestBodySize: 1 << 20},
	})
	return &testServer{handler: handler, service: svc, sink: sink}
}

type call struct {
	method string
	path   string
	body   any
	token  string
	cookie string
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		switch b := c.body.(type) {
		case string:
			body = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			body = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: "jwt", Value: c.cookie})
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// registerAndVerify registers an account and returns a login token.
func (s *testServer) registerAndVerify(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, call{method: "POST", path: "/auth/register", body: map[string]string{
		"firstName": "Tess", "email": email, "password": password, "passwordConfirm": password,
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, call{method: "POST", path: "/auth/verifyEmailOTP", body: map[string]string{
		"email": email, "otp": s.sink.code(email),
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody(t, rec)["token"].(string)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, call{method: "GET", path: "/health"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, call{method: "GET", path: "/nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RegisterVerifyLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: "POST", path: "/auth/register", body: map[string]string{
		"email": "a@x.com", "password": "pw123456", "passwordConfirm": "pw123456",
	}})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	user := body["user"].(map[string]any)
	assert.Equal(t, false, user["isVerified"])
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, call{method: "POST", path: "/auth/login", body: map[string]string{
		"email": "a@x.com", "password": "pw123456",
	}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "unverified", body["status"])
	assert.Equal(t, "a@x.com", body["email"])

	rec = s.do(t, call{method: "POST", path: "/auth/verifyEmailOTP", body: map[string]string{
		"email": "a@x.com", "otp": s.sink.code("a@x.com"),
	}})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decodeBody(t, rec)["token"].(string)
	var cookieSet bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" && c.Value == token && c.HttpOnly {
			cookieSet = true
		}
	}
	assert.True(t, cookieSet, "token cookie not set")

	rec = s.do(t, call{method: "POST", path: "/auth/login", body: map[string]string{
		"email": "a@x.com", "password": "pw123456",
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, call{method: "GET", path: "/auth/me", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", decodeBody(t, rec)["user"].(map[string]any)["email"])

	rec = s.do(t, call{method: "GET", path: "/auth/status", cookie: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["loggedIn"])
}

func TestRouter_RegisterRejectsExtraFields(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, call{method: "POST", path: "/auth/register", body: map[string]string{
		"email": "a@x.com", "password": "pw123456", "passwordConfirm": "pw123456", "role": "admin",
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, call{method: "POST", path: "/auth/register", body: `{"email":`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RegisterDuplicate(t *testing.T) {
	s := newTestServer(t)
	s.registerAndVerify(t, "a@x.com", "pw123456")

	rec := s.do(t, call{method: "POST", path: "/auth/register", body: map[string]string{
		"email": "A@x.com", "password": "pw123456", "passwordConfirm": "pw123456",
	}})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_LoginErrorsAreIdentical(t *testing.T) {
	s := newTestServer(t)
	s.registerAndVerify(t, "a@x.com", "pw123456")

	missing := s.do(t, call{method: "POST", path: "/auth/login", body: map[string]string{
		"email": "missing@x.com", "password": "whatever",
	}})
	wrong := s.do(t, call{method: "POST", path: "/auth/login", body: map[string]string{
		"email": "a@x.com", "password": "wrongpw",
	}})

	assert.Equal(t, http.StatusUnauthorized, missing.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, missing.Body.String(), wrong.Body.String())
}

func TestRouter_VerifyLockout(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, call{method: "POST", path: "/auth/register", body: map[string]string{
		"email": "a@x.com", "password": "pw123456", "passwordConfirm": "pw123456",
	}})
	require.Equal(t, http.StatusCreated, rec.Code)

	bad := "000000"
	if s.sink.code("a@x.com") == bad {
		bad = "000001"
	}
	for i := 0; i < 4; i++ {
		rec = s.do(t, call{method: "POST", path: "/auth/verifyEmailOTP", body: map[string]string{"email": "a@x.com", "otp": bad}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotContains(t, rec.Body.String(), "remaining")
	}
	rec = s.do(t, call{method: "POST", path: "/auth/verifyEmailOTP", body: map[string]string{"email": "a@x.com", "otp": bad}})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, float64(30), decodeBody(t, rec)["retryAfterMinutes"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = s.do(t, call{method: "POST", path: "/auth/verifyEmailOTP", body: map[string]string{
		"email": "a@x.com", "otp": s.sink.code("a@x.com"),
	}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = s.do(t, call{method: "POST", path: "/auth/login", body: map[string]string{"email": "a@x.com", "password": "pw123456"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unverified", decodeBody(t, rec)["status"])

	rec = s.do(t, call{method: "POST", path: "/auth/resend-verification", body: map[string]string{"email": "a@x.com"}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRouter_ResendVerification(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, call{method: "POST", path: "/auth/resend-verification", body: map[string]string{"email": "missing@x.com"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, call{method: "POST", path: "/auth/register", body: map[string]string{
		"email": "a@x.com", "password": "pw123456", "passwordConfirm": "pw123456",
	}})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, call{method: "POST", path: "/auth/resend-verification", body: map[string]string{"email": "A@X.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", decodeBody(t, rec)["email"])
}

func TestRouter_PasswordReset(t *testing.T) {
	s := newTestServer(t)
	loginToken := s.registerAndVerify(t, "a@x.com", "pw123456")

	known := s.do(t, call{method: "POST", path: "/auth/forgot-password", body: map[string]string{"email": "a@x.com"}})
	unknown := s.do(t, call{method: "POST", path: "/auth/forgot-password", body: map[string]string{"email": "missing@x.com"}})
	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	rec := s.do(t, call{method: "POST", path: "/auth/verify-reset-otp", body: map[string]string{
		"email": "a@x.com", "otp": s.sink.code("a@x.com"),
	}})
	require.Equal(t, http.StatusOK, rec.Code)
	resetToken := decodeBody(t, rec)["resetToken"].(string)

	rec = s.do(t, call{method: "POST", path: "/auth/reset-password", body: map[string]string{
		"resetToken": loginToken, "newPassword": "newpass123", "passwordConfirm": "newpass123",
	}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, call{method: "POST", path: "/auth/reset-password", body: map[string]string{
		"resetToken": resetToken, "newPassword": "newpass123", "passwordConfirm": "other1234",
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, call{method: "POST", path: "/auth/reset-password", body: map[string]string{
		"resetToken": resetToken, "newPassword": "newpass123", "passwordConfirm": "newpass123",
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	// a redeemed reset token cannot be replayed
	rec = s.do(t, call{method: "POST", path: "/auth/reset-password", body: map[string]string{
		"resetToken": resetToken, "newPassword": "hijack1234", "passwordConfirm": "hijack1234",
	}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// reset tokens are not login credentials
	rec = s.do(t, call{method: "GET", path: "/auth/me", token: resetToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, call{method: "POST", path: "/auth/login", body: map[string]string{"email": "a@x.com", "password": "newpass123"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_UpdatePassword(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndVerify(t, "a@x.com", "pw123456")

	body := map[string]string{"passwordCurrent": "pw123456", "password": "newpass123", "passwordConfirm": "newpass123"}
	rec := s.do(t, call{method: "PATCH", path: "/auth/update-password", body: body})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wrong := map[string]string{"passwordCurrent": "nope12345", "password": "newpass123", "passwordConfirm": "newpass123"}
	rec = s.do(t, call{method: "PATCH", path: "/auth/update-password", body: wrong, token: token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, call{method: "PATCH", path: "/auth/update-password", body: body, token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	newToken := decodeBody(t, rec)["token"].(string)

	rec = s.do(t, call{method: "GET", path: "/auth/me", token: newToken})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_GoogleLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: "POST", path: "/auth/google-login", body: map[string]string{"token": "google-id-token"}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	assert.Equal(t, "guide@x.com", user["email"])
	assert.Equal(t, true, user["isVerified"])

	rec = s.do(t, call{method: "POST", path: "/auth/google-login", body: map[string]string{"token": ""}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AdminAccounts(t *testing.T) {
	s := newTestServer(t)
	userToken := s.registerAndVerify(t, "a@x.com", "pw123456")

	admin, err := s.service.EnsureBootstrapAdmin(context.Background(), "admin@x.com", "adminpass1")
	require.NoError(t, err)
	rec := s.do(t, call{method: "POST", path: "/auth/login", body: map[string]string{"email": "admin@x.com", "password": "adminpass1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	adminToken := decodeBody(t, rec)["token"].(string)

	path := "/admin/accounts/" + admin.ID.String()

	rec = s.do(t, call{method: "GET", path: path})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, call{method: "GET", path: path, token: userToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: "GET", path: path, token: adminToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decodeBody(t, rec)["user"].(map[string]any)["role"])

	rec = s.do(t, call{method: "GET", path: "/admin/accounts/not-a-uuid", token: adminToken})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_StatusAndLogout(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: "GET", path: "/auth/status", cookie: "garbage"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["loggedIn"])

	rec = s.do(t, call{method: "GET", path: "/auth/logout"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "jwt", cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}
