package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/tendant/tour-auth/internal/httputil"
	"github.com/tendant/tour-auth/pkg/auth"
	"github.com/tendant/tour-auth/pkg/domain"
)

type contextKey string

const (
	// AccountKey is the context key for the authenticated account.
	AccountKey contextKey = "account"
	// ClaimsKey is the context key for the token claims.
	ClaimsKey contextKey = "claims"
)

// TokenVerifier verifies login tokens.
type TokenVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

// AccountLoader loads the account a token belongs to.
type AccountLoader interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// AccessConfig wires the access gates.
type AccessConfig struct {
	Tokens   TokenVerifier
	Accounts AccountLoader
	Cookie   httputil.CookieConfig
	Logger   *slog.Logger
}

// rejection is an access failure rendered as an HTTP error.
type rejection struct {
	status  int
	message string
}

var (
	errNotLoggedIn     = &rejection{http.StatusUnauthorized, "you are not logged in, please log in to get access"}
	errTokenFailed     = &rejection{http.StatusUnauthorized, "invalid or expired token, please log in again"}
	errAccountGone     = &rejection{http.StatusUnauthorized, "the account belonging to this token no longer exists"}
	errDeactivated     = &rejection{http.StatusForbidden, "this account has been deactivated"}
	errPasswordChanged = &rejection{http.StatusUnauthorized, "password recently changed, please log in again"}
	errLookupFailed    = &rejection{http.StatusInternalServerError, "something went wrong"}
)

// authenticate resolves the request token to an active account.
func authenticate(r *http.Request, cfg AccessConfig) (*domain.Account, *auth.Claims, *rejection) {
	token, ok := httputil.RequestToken(r, cfg.Cookie)
	if !ok {
		return nil, nil, errNotLoggedIn
	}

	claims, err := cfg.Tokens.VerifyAccess(token)
	if err != nil {
		return nil, nil, errTokenFailed
	}
	id, err := claims.AccountID()
	if err != nil {
		return nil, nil, errTokenFailed
	}

	acct, err := cfg.Accounts.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, nil, errAccountGone
		}
		if cfg.Logger != nil {
			cfg.Logger.Error("failed to load account for token", "account_id", id, "error", err)
		}
		return nil, nil, errLookupFailed
	}
	if !acct.Active {
		return nil, nil, errDeactivated
	}
	if acct.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, nil, errPasswordChanged
	}

	return acct, claims, nil
}

func withAccount(r *http.Request, acct *domain.Account, claims *auth.Claims) *http.Request {
	ctx := context.WithValue(r.Context(), AccountKey, acct)
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return r.WithContext(ctx)
}

// Protect rejects requests without a valid login token for an active account.
// Checks the Authorization header first, then falls back to the token cookie.
func Protect(cfg AccessConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct, claims, rej := authenticate(r, cfg)
			if rej != nil {
				httputil.Error(w, rej.status, rej.message)
				return
			}
			next.ServeHTTP(w, withAccount(r, acct, claims))
		})
	}
}

// IsLoggedIn attaches the account when the request carries a valid token
// and otherwise proceeds anonymously. It never rejects.
func IsLoggedIn(cfg AccessConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct, claims, rej := authenticate(r, cfg)
			if rej != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, withAccount(r, acct, claims))
		})
	}
}

// RequireRole rejects accounts whose role is not in allowed.
// Must be used after Protect.
func RequireRole(allowed ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct, ok := CurrentAccount(r.Context())
			if !ok {
				httputil.Error(w, errNotLoggedIn.status, errNotLoggedIn.message)
				return
			}
			if !slices.Contains(allowed, acct.Role) {
				httputil.Error(w, http.StatusForbidden, "you do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentAccount extracts the authenticated account from the request context.
func CurrentAccount(ctx context.Context) (*domain.Account, bool) {
	acct, ok := ctx.Value(AccountKey).(*domain.Account)
	return acct, ok && acct != nil
}

// GetClaims extracts the token claims from the request context.
func GetClaims(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}
