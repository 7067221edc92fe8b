package security

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
)

func TestRolePermissions(t *testing.T) {
	as := NewAuthorizationService(slog.New(slog.NewTextHandler(io.Discard, nil)))
	admin := domain.Actor{Username: "admin", Role: domain.RoleAdmin}
	alice := domain.Actor{Username: "alice", Role: domain.RoleParticipant}

	assert.NoError(t, as.ValidatePermission(admin, PermManageDraws))
	assert.ErrorIs(t, as.ValidatePermission(alice, PermManageDraws), domain.ErrForbidden)
	assert.NoError(t, as.ValidatePermission(alice, PermRecordPurchase))
	assert.False(t, as.HasPermission(domain.RoleAnonymous, PermViewOwnDraw))
}

func TestValidateOwnerAccess(t *testing.T) {
	as := NewAuthorizationService(nil)
	alice := domain.Actor{Username: "alice", Role: domain.RoleParticipant}

	assert.NoError(t, as.ValidateOwnerAccess(alice, " Alice"))
	assert.ErrorIs(t, as.ValidateOwnerAccess(alice, "bob"), domain.ErrForbidden)
	assert.NoError(t, as.ValidateOwnerAccess(domain.Actor{Role: domain.RoleAdmin}, "bob"))
}
