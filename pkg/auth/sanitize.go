package auth

import (
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tendant/tour-auth/pkg/domain"
)

const maxNameLength = 100

// SanitizeName trims a display name, drops control characters and
// HTML-escapes the rest. Stored names are always in this form.
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	return html.EscapeString(name)
}

// checkNameLength limits a sanitized name to maxNameLength characters.
func checkNameLength(field, name string) error {
	if utf8.RuneCountInString(name) > maxNameLength {
		return domain.NewValidationError(field, fmt.Sprintf("must be at most %d characters", maxNameLength))
	}
	return nil
}
