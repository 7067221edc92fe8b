package featureflags

import (
	"os"
	"strings"
)

// Flag names an operator switch read from FLAG_<NAME>.
type Flag string

const (
	// DisableRegistration turns off self-service account registration.
	DisableRegistration Flag = "DISABLE_REGISTRATION"
	// DisableActivityStream turns off the websocket activity tail.
	DisableActivityStream Flag = "DISABLE_ACTIVITY_STREAM"
)

// EnvKey is the environment variable that controls f.
func (f Flag) EnvKey() string {
	return "FLAG_" + strings.ToUpper(string(f))
}

// Enabled reports whether f is switched on (true/1/yes/on, case-insensitive).
func Enabled(f Flag) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(f.EnvKey()))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
