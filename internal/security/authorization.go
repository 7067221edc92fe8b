package security

import (
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermManageUsers    Permission = "manage_users"
	PermManageDraws    Permission = "manage_draws"
	PermViewStatus     Permission = "view_status"
	PermResolveResets  Permission = "resolve_resets"
	PermViewActivity   Permission = "view_activity"
	PermViewOwnDraw    Permission = "view_own_draw"
	PermRecordPurchase Permission = "record_purchase"
	PermEditProfile    Permission = "edit_profile"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermManageUsers,
		PermManageDraws,
		PermViewStatus,
		PermResolveResets,
		PermViewActivity,
		PermViewOwnDraw,
		PermEditProfile,
	},
	domain.RoleParticipant: {
		PermViewOwnDraw,
		PermRecordPurchase,
		PermEditProfile,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidatePermission validates that the actor's role has a specific permission
func (as *AuthorizationService) ValidatePermission(actor domain.Actor, permission Permission) error {
	if !as.HasPermission(actor.Role, permission) {
		as.logger.Warn("permission denied",
			slog.String("username", actor.Name()),
			slog.String("role", string(actor.Role)),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("%w: %s role cannot %s", domain.ErrForbidden, actor.Role, permission)
	}
	return nil
}

// ValidateOwnerAccess lets admins through and otherwise requires the actor to
// be owner.
func (as *AuthorizationService) ValidateOwnerAccess(actor domain.Actor, owner string) error {
	if actor.IsAdmin() || actor.Username == domain.NormalizeUsername(owner) {
		return nil
	}
	as.logger.Warn("owner access denied",
		slog.String("username", actor.Name()),
		slog.String("owner", owner),
	)
	return fmt.Errorf("%w: not the owner", domain.ErrForbidden)
}
