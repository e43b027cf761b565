package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/tour-auth/pkg/domain"
)

const (
	// PurposePasswordReset scopes a token to the reset-password operation.
	PurposePasswordReset = "password_reset"

	// Default token lifetimes
	DefaultAccessTokenTTL = 90 * 24 * time.Hour
	DefaultResetTokenTTL  = 15 * time.Minute
	DefaultIssuer         = "tour-auth"
)

// TokenConfig holds token signing configuration.
type TokenConfig struct {
	Secret         []byte
	Issuer         string
	AccessTokenTTL time.Duration
	ResetTokenTTL  time.Duration
}

// Claims represents the claims carried by every token.
type Claims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose,omitempty"`
}

// AccountID parses the subject.
func (c *Claims) AccountID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// IssuedAtTime returns the iat claim or the zero time.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// TokenService signs and verifies bearer tokens.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService creates a new token service.
func NewTokenService(config TokenConfig) *TokenService {
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.ResetTokenTTL == 0 {
		config.ResetTokenTTL = DefaultResetTokenTTL
	}
	return &TokenService{config: config, now: time.Now}
}

// AccessTokenTTL returns the access token TTL.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenTTL
}

// Issue signs a token for subject with an optional purpose claim.
func (s *TokenService) Issue(subject uuid.UUID, purpose string, ttl time.Duration) (string, time.Time, error) {
	signed, _, expiresAt, err := s.issue(subject, purpose, ttl)
	return signed, expiresAt, err
}

func (s *TokenService) issue(subject uuid.UUID, purpose string, ttl time.Duration) (string, string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Purpose: purpose,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.config.Secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, claims.ID, expiresAt, nil
}

// IssueAccess signs a login token.
func (s *TokenService) IssueAccess(subject uuid.UUID) (string, time.Time, error) {
	return s.Issue(subject, "", s.config.AccessTokenTTL)
}

// IssueReset signs a short-lived password reset token and returns its jti
// so the caller can record which token may be redeemed.
func (s *TokenService) IssueReset(subject uuid.UUID) (token, id string, expiresAt time.Time, err error) {
	return s.issue(subject, PurposePasswordReset, s.config.ResetTokenTTL)
}

// Verify checks signature, issuer and expiry.
// Every failure is reported as domain.ErrInvalidOrExpiredToken.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidOrExpiredToken
		}
		return s.config.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, domain.ErrInvalidOrExpiredToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, domain.ErrInvalidOrExpiredToken
	}

	return claims, nil
}

// VerifyAccess verifies a login token. Purpose-scoped tokens are rejected.
func (s *TokenService) VerifyAccess(tokenString string) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "" {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	return claims, nil
}

// VerifyPurpose verifies a token and requires the exact purpose claim.
func (s *TokenService) VerifyPurpose(tokenString, purpose string) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if purpose == "" || claims.Purpose != purpose {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	return claims, nil
}
