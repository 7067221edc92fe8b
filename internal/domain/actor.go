package domain

// Role is the authorization level of a caller
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleParticipant Role = "participant"
	RoleAnonymous   Role = "anonymous"
)

// Actor identifies who performs an operation. It is built per request by the
// transport layer and passed explicitly into every service call.
type Actor struct {
	Username   string
	Role       Role
	RemoteAddr string
	Locale     string
}

// IsAdmin reports whether the actor has administrator rights.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Name returns the username for logging, or "anonymous".
func (a Actor) Name() string {
	if a.Username == "" {
		return "anonymous"
	}
	return a.Username
}

// System is the actor used for internal events such as storage recovery.
var System = Actor{Username: "system", Role: RoleAdmin, RemoteAddr: "local"}
