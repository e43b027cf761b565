package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func TestGoogleVerifier_Audiences(t *testing.T) {
	v := NewGoogleVerifier(GoogleConfig{
		ClientID:        "web",
		MobileClientIDs: []string{"", " ios ", "android"},
	})
	assert.Equal(t, []string{"web", "ios", "android"}, v.audiences)
}

func TestGoogleVerifier_Verify(t *testing.T) {
	exp := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	var seen []string

	v := NewGoogleVerifier(GoogleConfig{ClientID: "web", MobileClientIDs: []string{"ios"}})
	v.validate = func(ctx context.Context, token, aud string) (*idtoken.Payload, error) {
		seen = append(seen, aud)
		if aud != "ios" {
			return nil, errors.New("audience mismatch")
		}
		return &idtoken.Payload{
			Issuer:   "https://accounts.google.com",
			Audience: aud,
			Expires:  exp.Unix(),
			Subject:  "google-sub-1",
			Claims: map[string]interface{}{
				"email":          " Traveler@Example.com ",
				"email_verified": true,
				"given_name":     "Tess",
				"family_name":    "Traveler",
				"picture":        "https://example.com/p.jpg",
			},
		}, nil
	}

	claims, err := v.Verify(context.Background(), "id-token")
	require.NoError(t, err)

	assert.Equal(t, []string{"web", "ios"}, seen)
	assert.Equal(t, "google-sub-1", claims.Subject)
	assert.Equal(t, "traveler@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, "Tess", claims.GivenName)
	assert.Equal(t, "Traveler", claims.FamilyName)
	assert.Equal(t, "https://example.com/p.jpg", claims.Picture)
	assert.True(t, claims.ExpiresAt.Equal(exp))
}

func TestGoogleVerifier_Errors(t *testing.T) {
	v := NewGoogleVerifier(GoogleConfig{ClientID: "web"})
	v.validate = func(ctx context.Context, token, aud string) (*idtoken.Payload, error) {
		return nil, errors.New("idtoken: token expired")
	}

	_, err := v.Verify(context.Background(), "")
	assert.Error(t, err)

	_, err = v.Verify(context.Background(), "id-token")
	assert.ErrorContains(t, err, "token expired")

	unconfigured := NewGoogleVerifier(GoogleConfig{})
	_, err = unconfigured.Verify(context.Background(), "id-token")
	assert.ErrorContains(t, err, "missing google client id")
}

func TestClaimsFromPayload_StringEmailVerified(t *testing.T) {
	claims := claimsFromPayload(&idtoken.Payload{
		Claims: map[string]interface{}{"email_verified": "true"},
	})
	assert.True(t, claims.EmailVerified)
}
