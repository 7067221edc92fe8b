package domain

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// AdminUsername is the fixed name of the administrator account.
const AdminUsername = "admin"

// MaxInterestsLength caps the free-text interests field, in characters.
const MaxInterestsLength = 1000

// MinPasswordLength is the shortest accepted plain-text password.
const MinPasswordLength = 4

var usernamePattern = regexp.MustCompile(`^[a-z0-9_-]{2,32}$`)

// NormalizeUsername trims and lowercases a username. All stored keys go through it.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidUsername reports whether an already normalized username is acceptable.
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// User represents a registered participant or the administrator
type User struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"password"`
	Interests    string     `json:"interests"`
	Active       bool       `json:"active"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// IsAdmin reports whether the user is the administrator account.
func (u *User) IsAdmin() bool {
	return u.Username == AdminUsername
}

// UnmarshalJSON defaults Active to true when the document has no active key
// and accepts the older "created" key for the registration time.
func (u *User) UnmarshalJSON(data []byte) error {
	type rawUser User
	aux := struct {
		*rawUser
		Active  *bool      `json:"active"`
		Created *time.Time `json:"created"`
	}{rawUser: (*rawUser)(u)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.Active = aux.Active == nil || *aux.Active
	u.Username = NormalizeUsername(u.Username)
	if u.CreatedAt == nil && aux.Created != nil {
		u.CreatedAt = aux.Created
	}
	return nil
}

// UserCollection is the persisted users document
type UserCollection []User

// Find returns the index of the user with the given normalized username, or -1.
func (c UserCollection) Find(username string) int {
	for i := range c {
		if c[i].Username == username {
			return i
		}
	}
	return -1
}

// Usernames returns the set of stored usernames.
func (c UserCollection) Usernames() map[string]struct{} {
	out := make(map[string]struct{}, len(c))
	for _, u := range c {
		out[u.Username] = struct{}{}
	}
	return out
}

// ResetStatus is the lifecycle state of a password reset request
type ResetStatus string

const (
	ResetPending  ResetStatus = "pending"
	ResetResolved ResetStatus = "resolved"
)

// ResetRequest is a self-service password reset awaiting admin approval
type ResetRequest struct {
	ID          string      `json:"id,omitempty"`
	Username    string      `json:"username"`
	RequestedAt time.Time   `json:"requested_at"`
	Status      ResetStatus `json:"status"`
}

// ResetRequestCollection is the persisted reset requests document
type ResetRequestCollection []ResetRequest

// HasPending reports whether a pending request exists for username.
func (c ResetRequestCollection) HasPending(username string) bool {
	for _, r := range c {
		if r.Username == username && r.Status == ResetPending {
			return true
		}
	}
	return false
}

// Pending returns the pending requests in file order.
func (c ResetRequestCollection) Pending() []ResetRequest {
	out := []ResetRequest{}
	for _, r := range c {
		if r.Status == ResetPending {
			out = append(out, r)
		}
	}
	return out
}

// WithoutPending drops pending requests for username and keeps everything else.
func (c ResetRequestCollection) WithoutPending(username string) ResetRequestCollection {
	out := make(ResetRequestCollection, 0, len(c))
	for _, r := range c {
		if r.Username == username && r.Status == ResetPending {
			continue
		}
		out = append(out, r)
	}
	return out
}
