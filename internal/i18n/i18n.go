// Package i18n picks the caller's locale and renders short user-facing
// messages in Swedish or English.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

const (
	Swedish = "sv"
	English = "en"
)

var (
	supported = []language.Tag{language.Swedish, language.English}
	matcher   = language.NewMatcher(supported)
)

// Negotiate returns the locale to answer in. An explicit query value wins
// over the Accept-Language header; anything unsupported yields def.
func Negotiate(query, acceptLanguage, def string) string {
	if def != Swedish && def != English {
		def = Swedish
	}
	if q := strings.ToLower(strings.TrimSpace(query)); q == Swedish || q == English {
		return q
	}
	if acceptLanguage == "" {
		return def
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return def
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return def
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// Message returns the text for code in locale, falling back to English and
// then to the code itself.
func Message(locale, code string) string {
	if m, ok := catalog[locale][code]; ok {
		return m
	}
	if m, ok := catalog[English][code]; ok {
		return m
	}
	return code
}

var catalog = map[string]map[string]string{
	Swedish: {
		"NOT_FOUND":            "Hittades inte.",
		"USER_EXISTS":          "Användarnamnet är redan taget.",
		"INVALID_USERNAME":     "Ogiltigt användarnamn. Använd 2-32 tecken: a-z, 0-9, _ eller -.",
		"INVALID_PASSWORD":     "Lösenordet måste vara minst 4 tecken.",
		"PASSWORD_MISMATCH":    "Lösenorden matchar inte.",
		"PROTECTED_ACCOUNT":    "Admin-kontot kan inte ändras på det sättet.",
		"INVALID_CREDENTIALS":  "Fel användarnamn eller lösenord.",
		"ACCOUNT_INACTIVE":     "Ditt konto är inte aktiverat ännu. Kontakta admin.",
		"LOCKED_OUT":           "För många misslyckade inloggningar. Försök igen senare.",
		"UNAUTHORIZED":         "Du måste logga in.",
		"FORBIDDEN":            "Åtkomst nekad.",
		"NOT_PARTICIPANT":      "Du är inte med i dragningen.",
		"NO_ACTIVE_DRAW":       "Ingen aktiv dragning vald.",
		"SETUP_DONE":           "Admin-kontot finns redan.",
		"SETUP_REQUIRED":       "Admin-kontot måste skapas först.",
		"RESET_PENDING":        "En återställningsbegäran väntar redan.",
		"RESET_REQUESTED":      "Återställningsbegäran har skickats till admin. Du kommer att meddelas när den är godkänd.",
		"REGISTERED":           "Registrering lyckades! Ditt konto väntar på admin-aktivering.",
		"STORAGE_WRITE_FAILED": "Kunde inte spara. Försök igen.",
		"DRAW_FAILED":          "Dragningen misslyckades. Försök igen.",
		"DUPLICATE_NAME":       "Det finns redan en dragning med det namnet.",
		"TOO_FEW_PARTICIPANTS": "Välj minst två deltagare.",
		"UNKNOWN_PARTICIPANT":  "Okänd deltagare.",
		"INVALID_NAME":         "Ange ett namn på dragningen.",
		"INVALID_BUDGET":       "Budgeten måste vara mellan 0 och 1 000 000.",
		"INVALID_DEADLINE":     "Ogiltigt datum. Använd ÅÅÅÅ-MM-DD.",
		"INVALID_INPUT":        "Ogiltig förfrågan.",
		"RATE_LIMITED":         "För många förfrågningar. Vänta en stund.",
		"INTERNAL_ERROR":       "Något gick fel.",
	},
	English: {
		"NOT_FOUND":            "Not found.",
		"USER_EXISTS":          "That username is already taken.",
		"INVALID_USERNAME":     "Invalid username. Use 2-32 characters: a-z, 0-9, _ or -.",
		"INVALID_PASSWORD":     "Password must be at least 4 characters.",
		"PASSWORD_MISMATCH":    "Passwords do not match.",
		"PROTECTED_ACCOUNT":    "The admin account cannot be changed that way.",
		"INVALID_CREDENTIALS":  "Wrong username or password.",
		"ACCOUNT_INACTIVE":     "Your account is not activated yet. Contact admin.",
		"LOCKED_OUT":           "Too many failed logins. Try again later.",
		"UNAUTHORIZED":         "You need to log in.",
		"FORBIDDEN":            "Access denied.",
		"NOT_PARTICIPANT":      "You are not part of this draw.",
		"NO_ACTIVE_DRAW":       "No active draw selected.",
		"SETUP_DONE":           "The admin account already exists.",
		"SETUP_REQUIRED":       "The admin account has to be created first.",
		"RESET_PENDING":        "A reset request is already pending.",
		"RESET_REQUESTED":      "Reset request sent to admin. You will be notified once it is approved.",
		"REGISTERED":           "Registration successful! Your account is awaiting admin activation.",
		"STORAGE_WRITE_FAILED": "Could not save. Please retry.",
		"DRAW_FAILED":          "The draw failed. Please retry.",
		"DUPLICATE_NAME":       "A draw with that name already exists.",
		"TOO_FEW_PARTICIPANTS": "Select at least two participants.",
		"UNKNOWN_PARTICIPANT":  "Unknown participant.",
		"INVALID_NAME":         "Enter a draw name.",
		"INVALID_BUDGET":       "Budget must be between 0 and 1,000,000.",
		"INVALID_DEADLINE":     "Invalid date. Use YYYY-MM-DD.",
		"INVALID_INPUT":        "Invalid request.",
		"RATE_LIMITED":         "Too many requests. Please wait a moment.",
		"INTERNAL_ERROR":       "Something went wrong.",
	},
}
