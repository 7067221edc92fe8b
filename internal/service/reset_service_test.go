package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/security/audit"
	"github.com/aryan0dhankhar/secretsanta/internal/security/auth"
)

func TestResetRequestFlow(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice", "bob")
	svc := NewResetService(h.resets, h.users, h.activity, h.logger)
	ctx := context.Background()
	anon := domain.Actor{RemoteAddr: "10.0.0.2"}

	require.NoError(t, svc.RequestReset(ctx, anon, "Alice"))
	assert.ErrorIs(t, svc.RequestReset(ctx, anon, "alice"), domain.ErrResetPending)
	require.NoError(t, svc.RequestReset(ctx, anon, "bob"))

	pending, err := svc.ListPending(ctx, admin)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "alice", pending[0].Username)
	assert.NotEmpty(t, pending[0].ID)

	generated, err := svc.Approve(ctx, admin, "alice", "")
	require.NoError(t, err)
	require.Len(t, generated, 8)
	u, err := h.users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(u.PasswordHash, generated))
	assert.Equal(t, audit.PasswordResetApproved, h.activity.last().action)

	require.NoError(t, svc.Reject(ctx, admin, "bob"))
	u, err = h.users.Get(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "bob-pw"))

	pending, err = svc.ListPending(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, svc.Reject(ctx, admin, "bob"), domain.ErrNotFound)
	_, err = svc.Approve(ctx, admin, "bob", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResetRequestForUnknownUserIsSilent(t *testing.T) {
	h := newHarness(t)
	svc := NewResetService(h.resets, h.users, h.activity, h.logger)
	ctx := context.Background()

	require.NoError(t, svc.RequestReset(ctx, domain.Actor{}, "ghost"))
	assert.Empty(t, h.resets.List(ctx))
	assert.Empty(t, h.activity.actions())
}

func TestResetAdminOnly(t *testing.T) {
	h := newHarness(t)
	svc := NewResetService(h.resets, h.users, h.activity, h.logger)
	ctx := context.Background()

	_, err := svc.ListPending(ctx, alice)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.Approve(ctx, alice, "bob", "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, svc.Reject(ctx, alice, "bob"), domain.ErrForbidden)
}
