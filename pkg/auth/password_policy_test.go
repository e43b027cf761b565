package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/tendant/tour-auth/internal/config"
	"github.com/tendant/tour-auth/pkg/domain"
)

func TestPasswordPolicy_ValidatePassword(t *testing.T) {
	strict := PasswordPolicy{
		MinLength:        10,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
		RequireSpecial:   true,
	}

	tests := []struct {
		name     string
		policy   PasswordPolicy
		password string
		wantMsg  string
	}{
		{name: "length only", policy: PasswordPolicy{MinLength: 8}, password: "trailhead"},
		{name: "too short", policy: PasswordPolicy{MinLength: 8}, password: "trail12", wantMsg: "at least 8"},
		{name: "too long", policy: PasswordPolicy{MinLength: 8}, password: strings.Repeat("x", maxPasswordLength+1), wantMsg: "at most"},
		{name: "multibyte counts characters", policy: PasswordPolicy{MinLength: 8}, password: "pässwörd"},
		{name: "strict satisfied", policy: strict, password: "Summit-Trail9"},
		{name: "missing uppercase", policy: strict, password: "summit-trail9", wantMsg: "uppercase"},
		{name: "missing lowercase", policy: strict, password: "SUMMIT-TRAIL9", wantMsg: "lowercase"},
		{name: "missing number", policy: strict, password: "Summit-Trail", wantMsg: "number"},
		{name: "missing special", policy: strict, password: "SummitTrail9", wantMsg: "special"},
		{name: "space is not special", policy: strict, password: "Summit Trail9", wantMsg: "special"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.ValidatePassword(tt.password)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("ValidatePassword() error = %v", err)
				}
				return
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) || verr.Field != "password" {
				t.Fatalf("ValidatePassword() error = %v, want password ValidationError", err)
			}
			if !strings.Contains(verr.Message, tt.wantMsg) {
				t.Errorf("message = %q, want it to mention %q", verr.Message, tt.wantMsg)
			}
		})
	}
}

func TestNewPasswordPolicy(t *testing.T) {
	policy := NewPasswordPolicy(config.PasswordPolicyConfig{MinLength: 12, RequireNumber: true})
	if policy.MinLength != 12 || !policy.RequireNumber || policy.RequireSpecial {
		t.Errorf("unexpected policy: %+v", policy)
	}

	policy = NewPasswordPolicy(config.PasswordPolicyConfig{})
	if policy.MinLength != DefaultMinPasswordLength {
		t.Errorf("MinLength = %d, want %d", policy.MinLength, DefaultMinPasswordLength)
	}
}

func TestPasswordPolicy_GetRequirements(t *testing.T) {
	tests := []struct {
		name   string
		policy PasswordPolicy
		want   string
	}{
		{
			name:   "length only",
			policy: PasswordPolicy{MinLength: 8},
			want:   "Password must contain 8-128 characters",
		},
		{
			name:   "number and special",
			policy: PasswordPolicy{MinLength: 10, RequireNumber: true, RequireSpecial: true},
			want:   "Password must contain 10-128 characters, one number, one special character",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.GetRequirements(); got != tt.want {
				t.Errorf("GetRequirements() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPasswordPolicy_ValidateChange(t *testing.T) {
	policy := PasswordPolicy{MinLength: 8}

	tests := []struct {
		name      string
		password  string
		confirm   string
		wantField string
	}{
		{name: "valid", password: "pass1234", confirm: "pass1234"},
		{name: "empty", password: "", confirm: "", wantField: "password"},
		{name: "mismatch", password: "pass1234", confirm: "pass12345", wantField: "passwordConfirm"},
		{name: "too short", password: "pass123", confirm: "pass123", wantField: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.ValidateChange(tt.password, tt.confirm)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateChange() error = %v", err)
				}
				return
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateChange() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Error("error should unwrap to ErrValidation")
			}
		})
	}
}
