package service

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/security/auth"
)

var stripMarkup = bluemonday.StrictPolicy()

func requireAdmin(actor domain.Actor) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

// sanitizeInterests strips markup, trims and caps the text at
// MaxInterestsLength characters. Entities produced by the policy are decoded
// back since the value is stored as plain text.
func sanitizeInterests(s string) string {
	s = html.UnescapeString(stripMarkup.Sanitize(s))
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= domain.MaxInterestsLength {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:domain.MaxInterestsLength]))
}

// passwordOrGenerated returns password, or a random one when blank. The
// second value is true when the password was generated.
func passwordOrGenerated(password string) (string, bool, error) {
	if password == "" {
		p, err := auth.GeneratePassword()
		return p, true, err
	}
	if len(password) < domain.MinPasswordLength {
		return "", false, domain.ErrInvalidPassword
	}
	return password, false, nil
}

func normalizeValidUsername(username string) (string, error) {
	username = domain.NormalizeUsername(username)
	if !domain.ValidUsername(username) {
		return "", domain.ErrInvalidUsername
	}
	return username, nil
}
