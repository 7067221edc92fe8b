package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/security/audit"
)

func TestCreateDrawThreeParticipants(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice", "bob", "carol")
	svc := h.drawService()
	ctx := context.Background()

	draw, err := svc.CreateDraw(ctx, admin, CreateDrawInput{Name: "2025", Participants: []string{"alice", "bob", "carol"}})
	require.NoError(t, err)
	require.Len(t, draw.Pairs, 3)

	recipients := map[string]int{}
	for giver, recipient := range draw.Pairs {
		assert.NotEqual(t, giver, recipient)
		recipients[recipient]++
	}
	for _, name := range []string{"alice", "bob", "carol"} {
		assert.Contains(t, draw.Pairs, name)
		assert.Equal(t, 1, recipients[name])
		assert.False(t, draw.Purchased[name])
	}

	stored, err := h.draws.Get(ctx, "2025")
	require.NoError(t, err)
	assert.True(t, stored.Active)
	assert.Equal(t, draw.Pairs, stored.Pairs)

	last := h.activity.last()
	assert.Equal(t, audit.DrawCreated, last.action)
	assert.Equal(t, "Draw: 2025, Participants: 3", last.detail)
}

func TestCreateDrawDuplicateNameIsCaseInsensitive(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice", "bob", "carol")
	svc := h.drawService()
	ctx := context.Background()

	first, err := svc.CreateDraw(ctx, admin, CreateDrawInput{Name: "Jul", Participants: []string{"alice", "bob"}})
	require.NoError(t, err)

	_, err = svc.CreateDraw(ctx, admin, CreateDrawInput{Name: "jul", Participants: []string{"alice", "bob", "carol"}})
	assert.ErrorIs(t, err, &domain.DrawError{Kind: domain.DrawDuplicateName})

	f := h.draws.Load(ctx)
	require.Len(t, f.Groups, 1)
	assert.Equal(t, first.Pairs, f.Groups[0].Pairs)
}

func TestCreateDrawTooFewWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice")
	svc := h.drawService()

	_, err := svc.CreateDraw(context.Background(), admin, CreateDrawInput{Name: "solo", Participants: []string{"alice", "admin", "ALICE"}})
	assert.ErrorIs(t, err, &domain.DrawError{Kind: domain.DrawTooFewParticipants})

	_, statErr := os.Stat(filepath.Join(h.dir, "pairs.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCreateDrawValidation(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice", "bob")
	svc := h.drawService()
	ctx := context.Background()
	neg := -5.0
	big := float64(domain.MaxBudget + 1)

	cases := []struct {
		name string
		in   CreateDrawInput
		kind domain.DrawErrorKind
	}{
		{"blank name", CreateDrawInput{Name: "  ", Participants: []string{"alice", "bob"}}, domain.DrawInvalidName},
		{"negative budget", CreateDrawInput{Name: "x", Participants: []string{"alice", "bob"}, Budget: &neg}, domain.DrawInvalidBudget},
		{"budget too high", CreateDrawInput{Name: "x", Participants: []string{"alice", "bob"}, Budget: &big}, domain.DrawInvalidBudget},
		{"unknown participant", CreateDrawInput{Name: "x", Participants: []string{"alice", "bob", "zed"}}, domain.DrawUnknownParticipant},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateDraw(ctx, admin, tc.in)
			assert.ErrorIs(t, err, &domain.DrawError{Kind: tc.kind})
		})
	}
	assert.Empty(t, h.draws.Load(ctx).Groups)
}

func TestCreateDrawRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice", "bob")
	_, err := h.drawService().CreateDraw(context.Background(), alice, CreateDrawInput{Name: "x", Participants: []string{"alice", "bob"}})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCreateDrawSourceFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice", "bob")
	svc := h.drawService()
	svc.source = failingSource{}

	_, err := svc.CreateDraw(context.Background(), admin, CreateDrawInput{Name: "x", Participants: []string{"alice", "bob"}})
	assert.ErrorIs(t, err, domain.ErrDrawFailed)
	assert.Empty(t, h.draws.Load(context.Background()).Groups)

	last := h.activity.last()
	assert.Equal(t, audit.DrawValidationFailed, last.action)
	assert.Contains(t, last.detail, "Draw: x, Errors:")
}

func TestCreateDrawKeepsBudgetAndDeadline(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice", "bob")
	svc := h.drawService()
	budget := 250.0
	deadline := time.Date(2025, 12, 20, 15, 30, 0, 0, time.FixedZone("CET", 3600))

	_, err := svc.CreateDraw(context.Background(), admin, CreateDrawInput{
		Name: "x", Participants: []string{"alice", "bob"}, Budget: &budget, Deadline: &deadline,
	})
	require.NoError(t, err)

	d, err := h.draws.Get(context.Background(), "x")
	require.NoError(t, err)
	require.NotNil(t, d.Budget)
	assert.Equal(t, 250.0, *d.Budget)
	require.NotNil(t, d.Deadline)
	assert.Equal(t, "2025-12-20T00:00:00Z", d.Deadline.Format(time.RFC3339))
}

func TestSetActiveDrawLeavesOneActive(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice", "bob")
	svc := h.drawService()
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := svc.CreateDraw(ctx, admin, CreateDrawInput{Name: name, Participants: []string{"alice", "bob"}})
		require.NoError(t, err)
	}

	require.NoError(t, svc.SetActiveDraw(ctx, admin, "A"))
	active := 0
	for _, d := range h.draws.Load(ctx).Groups {
		if d.Active {
			active++
			assert.Equal(t, "a", d.Name)
		}
	}
	assert.Equal(t, 1, active)

	assert.ErrorIs(t, svc.SetActiveDraw(ctx, admin, "missing"), domain.ErrNotFound)
}

func TestArchiveAndDeleteDraw(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice", "bob")
	svc := h.drawService()
	ctx := context.Background()

	_, err := svc.CreateDraw(ctx, admin, CreateDrawInput{Name: "2025", Participants: []string{"alice", "bob"}})
	require.NoError(t, err)

	require.NoError(t, svc.ArchiveDraw(ctx, admin, "2025"))
	_, err = h.draws.Active(ctx)
	assert.ErrorIs(t, err, domain.ErrNoActiveDraw)

	past := svc.PastDraws(ctx, alice)
	require.Len(t, past, 1)
	assert.Equal(t, "bob", past[0].Recipient)

	require.NoError(t, svc.DeleteDraw(ctx, admin, "2025"))
	assert.Empty(t, h.draws.Load(ctx).Groups)
	assert.ErrorIs(t, svc.DeleteDraw(ctx, admin, "2025"), domain.ErrNotFound)
	assert.ErrorIs(t, svc.ArchiveDraw(ctx, admin, "2025"), domain.ErrNotFound)
}

func TestRecordPurchase(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice", "bob", "carol")
	svc := h.drawService()
	ctx := context.Background()

	_, err := svc.CreateDraw(ctx, admin, CreateDrawInput{Name: "2025", Participants: []string{"alice", "bob", "carol"}})
	require.NoError(t, err)

	require.NoError(t, svc.RecordPurchase(ctx, alice, "2025", "alice", true))
	d, err := h.draws.Get(ctx, "2025")
	require.NoError(t, err)
	assert.True(t, d.Purchased["alice"])
	assert.False(t, d.Purchased["bob"])
	assert.False(t, d.Purchased["carol"])

	assert.ErrorIs(t, svc.RecordPurchase(ctx, alice, "2025", "bob", true), domain.ErrForbidden)
	assert.ErrorIs(t, svc.RecordPurchase(ctx, alice, "nope", "alice", true), domain.ErrNotFound)

	dave := domain.Actor{Username: "dave", Role: domain.RoleParticipant}
	assert.ErrorIs(t, svc.RecordPurchase(ctx, dave, "2025", "dave", true), domain.ErrNotParticipant)

	require.NoError(t, svc.RecordActivePurchase(ctx, alice, false))
	d, err = h.draws.Get(ctx, "2025")
	require.NoError(t, err)
	assert.False(t, d.Purchased["alice"])
}

func TestRecordPurchaseInitializesMissingMap(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice", "bob")
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "pairs.json"), []byte(`{"alice":"bob","bob":"alice"}`), 0o600))

	require.NoError(t, h.drawService().RecordPurchase(ctx, alice, domain.LegacyDrawName, "alice", true))
	d, err := h.draws.Get(ctx, domain.LegacyDrawName)
	require.NoError(t, err)
	assert.True(t, d.Purchased["alice"])
}

func TestGetAssignmentAndViews(t *testing.T) {
	h := newHarness(t)
	h.seedUsers(t, "alice", "bob")
	svc := h.drawService()
	ctx := context.Background()

	require.NoError(t, h.users.Update(ctx, func(c *domain.UserCollection) error {
		(*c)[c.Find("bob")].Interests = "socks"
		return nil
	}))

	view, err := svc.ParticipantView(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, view.Recipient)

	_, err = svc.CreateDraw(ctx, admin, CreateDrawInput{Name: "2025", Participants: []string{"alice", "bob"}})
	require.NoError(t, err)

	recipient, ok, err := svc.GetAssignment(ctx, alice, "2025", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bob", recipient)

	_, _, err = svc.GetAssignment(ctx, alice, "2025", "bob")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, ok, err = svc.GetAssignment(ctx, admin, "2025", "carol")
	require.NoError(t, err)
	assert.False(t, ok)

	view, err = svc.ParticipantView(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "bob", view.Recipient)
	assert.Equal(t, "socks", view.RecipientInterests)

	status, err := svc.Status(ctx, admin)
	require.NoError(t, err)
	require.Len(t, status.Rows, 2)
	assert.Equal(t, "alice", status.Rows[0].Giver)
	assert.Equal(t, "socks", status.Rows[0].RecipientInterests)

	_, err = svc.Status(ctx, alice)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	list, err := svc.ListDraws(ctx, admin)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].PurchasedCount)
}

func TestParticipantListNormalizes(t *testing.T) {
	got := participantList([]string{" Bob", "alice", "ADMIN", "bob", ""})
	assert.Equal(t, []string{"bob", "alice"}, got)
}

func TestDaysLeft(t *testing.T) {
	deadline := time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 12, 20, 18, 0, 0, 0, time.UTC)
	require.NotNil(t, daysLeft(&deadline, now))
	assert.Equal(t, 4, *daysLeft(&deadline, now))
	assert.Nil(t, daysLeft(nil, now))
}
