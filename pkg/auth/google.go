package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/idtoken"
)

const (
	googleIssuer    = "https://accounts.google.com"
	googleIssuerAlt = "accounts.google.com"
)

// IdentityClaims are the provider-asserted facts about a federated user.
type IdentityClaims struct {
	Issuer        string
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Picture       string
	ExpiresAt     time.Time
}

// IdentityProvider verifies a federated ID token.
type IdentityProvider interface {
	Verify(ctx context.Context, idToken string) (*IdentityClaims, error)
}

// GoogleConfig holds Google sign-in configuration.
type GoogleConfig struct {
	ClientID        string
	MobileClientIDs []string
}

// GoogleVerifier validates Google ID tokens against Google's published keys.
type GoogleVerifier struct {
	audiences []string
	validate  func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// NewGoogleVerifier creates a verifier accepting the web client id and any mobile client ids.
func NewGoogleVerifier(config GoogleConfig) *GoogleVerifier {
	var audiences []string
	for _, id := range append([]string{config.ClientID}, config.MobileClientIDs...) {
		if id = strings.TrimSpace(id); id != "" {
			audiences = append(audiences, id)
		}
	}
	return &GoogleVerifier{
		audiences: audiences,
		validate:  idtoken.Validate,
	}
}

// Verify validates the token signature, audience and expiry.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*IdentityClaims, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, errors.New("missing id token")
	}
	if len(v.audiences) == 0 {
		return nil, errors.New("missing google client id")
	}

	var lastErr error
	for _, aud := range v.audiences {
		payload, err := v.validate(ctx, idToken, aud)
		if err != nil {
			lastErr = err
			continue
		}
		return claimsFromPayload(payload), nil
	}
	return nil, fmt.Errorf("validate google id token: %w", lastErr)
}

func claimsFromPayload(payload *idtoken.Payload) *IdentityClaims {
	claims := &IdentityClaims{
		Issuer:     payload.Issuer,
		Subject:    payload.Subject,
		Email:      NormalizeEmail(stringClaim(payload.Claims, "email")),
		GivenName:  stringClaim(payload.Claims, "given_name"),
		FamilyName: stringClaim(payload.Claims, "family_name"),
		Picture:    stringClaim(payload.Claims, "picture"),
		ExpiresAt:  time.Unix(payload.Expires, 0),
	}

	// email_verified is a bool in Google tokens but a string in some older ones
	switch v := payload.Claims["email_verified"].(type) {
	case bool:
		claims.EmailVerified = v
	case string:
		claims.EmailVerified = v == "true"
	}

	return claims
}

func stringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// isGoogleIssuer reports whether iss is one of Google's issuer values.
func isGoogleIssuer(iss string) bool {
	return iss == googleIssuer || iss == googleIssuerAlt
}
