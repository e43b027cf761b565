package auth

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/tendant/tour-auth/pkg/domain"
)

const maxEmailLength = 254

const msgInvalidEmail = "please provide a valid email"

// disposableDomains are throwaway inbox providers rejected when
// BlockDisposableEmail is set.
var disposableDomains = map[string]struct{}{
	"10minutemail.com":  {},
	"guerrillamail.com": {},
	"mailinator.com":    {},
	"tempmail.com":      {},
	"throwaway.email":   {},
	"yopmail.com":       {},
}

// strictEmail requires a dotless-or-dotted hostname made of DNS labels.
var strictEmail = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// NormalizeEmail lowercases and trims an address. Accounts are keyed on the
// normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks a normalized address. Failures are
// *domain.ValidationError for the "email" field.
func ValidateEmail(email string, strict, blockDisposable bool) error {
	switch {
	case email == "":
		return domain.NewValidationError("email", "please provide your email")
	case len(email) > maxEmailLength:
		return domain.NewValidationError("email", fmt.Sprintf("email must be at most %d characters", maxEmailLength))
	}

	// Display names and angle brackets parse but are not bare addresses.
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.NewValidationError("email", msgInvalidEmail)
	}
	if strict && !strictEmail.MatchString(email) {
		return domain.NewValidationError("email", msgInvalidEmail)
	}

	if blockDisposable {
		_, host, _ := strings.Cut(email, "@")
		if _, ok := disposableDomains[host]; ok {
			return domain.NewValidationError("email", "disposable email addresses are not allowed")
		}
	}
	return nil
}
