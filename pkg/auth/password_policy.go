package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tendant/tour-auth/internal/config"
	"github.com/tendant/tour-auth/pkg/domain"
)

// DefaultMinPasswordLength is the minimum length when none is configured.
const DefaultMinPasswordLength = 8

// maxPasswordLength caps the input handed to the hasher.
const maxPasswordLength = 128

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// NewPasswordPolicy creates a PasswordPolicy from config.
func NewPasswordPolicy(cfg config.PasswordPolicyConfig) *PasswordPolicy {
	p := &PasswordPolicy{
		MinLength:        cfg.MinLength,
		RequireUppercase: cfg.RequireUppercase,
		RequireLowercase: cfg.RequireLowercase,
		RequireNumber:    cfg.RequireNumber,
		RequireSpecial:   cfg.RequireSpecial,
	}
	if p.MinLength <= 0 {
		p.MinLength = DefaultMinPasswordLength
	}
	return p
}

// characterRule is one "must contain" requirement.
type characterRule struct {
	enabled bool
	what    string
	match   func(rune) bool
}

func (p *PasswordPolicy) characterRules() []characterRule {
	return []characterRule{
		{p.RequireUppercase, "one uppercase letter", unicode.IsUpper},
		{p.RequireLowercase, "one lowercase letter", unicode.IsLower},
		{p.RequireNumber, "one number", unicode.IsDigit},
		{p.RequireSpecial, "one special character", isSpecial},
	}
}

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}

// ValidatePassword checks password against the policy. Length counts
// characters, not bytes. Failures are *domain.ValidationError for the
// "password" field.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < p.MinLength {
		return domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters long", p.MinLength))
	}
	if n > maxPasswordLength {
		return domain.NewValidationError("password", fmt.Sprintf("must be at most %d characters long", maxPasswordLength))
	}

	for _, rule := range p.characterRules() {
		if rule.enabled && !strings.ContainsFunc(password, rule.match) {
			return domain.NewValidationError("password", "must contain at least "+rule.what)
		}
	}
	return nil
}

// ValidateChange checks a new password and its confirmation.
func (p *PasswordPolicy) ValidateChange(password, confirm string) error {
	if password == "" {
		return domain.NewValidationError("password", "please provide a password")
	}
	if password != confirm {
		return domain.NewValidationError("passwordConfirm", "passwords do not match")
	}
	return p.ValidatePassword(password)
}

// GetRequirements describes the policy for logs and error pages.
func (p *PasswordPolicy) GetRequirements() string {
	reqs := []string{fmt.Sprintf("%d-%d characters", p.MinLength, maxPasswordLength)}
	for _, rule := range p.characterRules() {
		if rule.enabled {
			reqs = append(reqs, rule.what)
		}
	}
	return "Password must contain " + strings.Join(reqs, ", ")
}
