package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/aryan0dhankhar/secretsanta/internal/derangement"
	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/observability/metrics"
	"github.com/aryan0dhankhar/secretsanta/internal/observability/tracing"
	"github.com/aryan0dhankhar/secretsanta/internal/security/audit"
)

// DrawService runs draws and answers assignment queries
type DrawService struct {
	draws    domain.DrawRepository
	users    domain.UserRepository
	activity domain.ActivityRecorder
	source   derangement.Source
	logger   *slog.Logger
	now      func() time.Time
}

// NewDrawService creates a new draw service
func NewDrawService(
	draws domain.DrawRepository,
	users domain.UserRepository,
	activity domain.ActivityRecorder,
	logger *slog.Logger,
) *DrawService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DrawService{
		draws:    draws,
		users:    users,
		activity: activity,
		source:   derangement.CryptoSource{},
		logger:   logger,
		now:      time.Now,
	}
}

// CreateDrawInput carries an already parsed draw request
type CreateDrawInput struct {
	Name         string
	Participants []string
	Budget       *float64
	Deadline     *time.Time
}

// CreateDraw validates the request, assigns recipients and stores the draw as
// the only active one. Nothing is written when any check fails.
func (s *DrawService) CreateDraw(ctx context.Context, actor domain.Actor, in CreateDrawInput) (draw *domain.Draw, err error) {
	ctx, span := tracing.Start(ctx, "DrawService.CreateDraw", attribute.String("draw.name", in.Name))
	defer func() {
		tracing.End(span, err)
		metrics.ObserveDraw("create", resultLabel(err))
	}()

	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	if in.Budget != nil && !domain.ValidBudget(*in.Budget) {
		return nil, domain.NewDrawError(domain.DrawInvalidBudget, fmt.Sprint(*in.Budget))
	}
	var deadline *time.Time
	if in.Deadline != nil {
		d := time.Date(in.Deadline.Year(), in.Deadline.Month(), in.Deadline.Day(), 0, 0, 0, 0, time.UTC)
		deadline = &d
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewDrawError(domain.DrawInvalidName, "")
	}

	members := participantList(in.Participants)
	if len(members) < 2 {
		return nil, domain.NewDrawError(domain.DrawTooFewParticipants, fmt.Sprintf("%d selected", len(members)))
	}

	known := s.users.List(ctx).Usernames()
	for _, m := range members {
		if _, ok := known[m]; !ok {
			return nil, domain.NewDrawError(domain.DrawUnknownParticipant, m)
		}
	}

	var created domain.Draw
	err = s.draws.Update(ctx, func(f *domain.DrawFile) error {
		if f.Index(name) >= 0 {
			return domain.NewDrawError(domain.DrawDuplicateName, name)
		}

		pairs, aerr := derangement.Assign(members, s.source)
		if aerr != nil {
			var verr *derangement.ValidationError
			detail := aerr.Error()
			if errors.As(aerr, &verr) {
				detail = strings.Join(verr.Problems, "; ")
			}
			s.logger.Error("draw validation failed",
				slog.String("draw", name),
				slog.String("error", detail),
			)
			s.activity.Record(ctx, actor, audit.DrawValidationFailed, fmt.Sprintf("Draw: %s, Errors: %s", name, detail))
			return domain.NewDrawError(domain.DrawValidationFailed, detail)
		}

		purchased := make(map[string]bool, len(members))
		for _, m := range members {
			purchased[m] = false
		}
		created = domain.Draw{
			Name:         name,
			Active:       true,
			Participants: members,
			Pairs:        pairs,
			Purchased:    purchased,
			Created:      s.now().UTC().Truncate(time.Second),
			Budget:       in.Budget,
			Deadline:     deadline,
		}
		f.Groups = append(f.Groups, created)
		f.Activate(len(f.Groups) - 1)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("draw created",
		slog.String("draw", name),
		slog.Int("participants", len(members)),
	)
	s.activity.Record(ctx, actor, audit.DrawCreated, fmt.Sprintf("Draw: %s, Participants: %d", name, len(members)))
	return &created, nil
}

// SetActiveDraw makes the named draw the only active one.
func (s *DrawService) SetActiveDraw(ctx context.Context, actor domain.Actor, name string) error {
	return s.mutateDraw(ctx, actor, "activate", name, audit.DrawActivated, func(f *domain.DrawFile, i int) {
		f.Activate(i)
	})
}

// ArchiveDraw deactivates the named draw without activating another.
func (s *DrawService) ArchiveDraw(ctx context.Context, actor domain.Actor, name string) error {
	return s.mutateDraw(ctx, actor, "archive", name, audit.DrawArchived, func(f *domain.DrawFile, i int) {
		f.Groups[i].Active = false
	})
}

// DeleteDraw removes the named draw whatever its state.
func (s *DrawService) DeleteDraw(ctx context.Context, actor domain.Actor, name string) error {
	return s.mutateDraw(ctx, actor, "delete", name, audit.DrawDeleted, func(f *domain.DrawFile, i int) {
		f.Groups = append(f.Groups[:i], f.Groups[i+1:]...)
	})
}

func (s *DrawService) mutateDraw(ctx context.Context, actor domain.Actor, op, name, action string, fn func(*domain.DrawFile, int)) (err error) {
	ctx, span := tracing.Start(ctx, "DrawService."+op, attribute.String("draw.name", name))
	defer func() {
		tracing.End(span, err)
		metrics.ObserveDraw(op, resultLabel(err))
	}()

	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}

	var stored string
	err = s.draws.Update(ctx, func(f *domain.DrawFile) error {
		i := f.Index(name)
		if i < 0 {
			return domain.ErrNotFound
		}
		stored = f.Groups[i].Name
		fn(f, i)
		return nil
	})
	if err != nil {
		return err
	}
	s.activity.Record(ctx, actor, action, "Draw: "+stored)
	return nil
}

// RecordPurchase sets the purchased flag of username in the named draw. Only
// the participant themself may change it.
func (s *DrawService) RecordPurchase(ctx context.Context, actor domain.Actor, drawName, username string, purchased bool) (err error) {
	ctx, span := tracing.Start(ctx, "DrawService.RecordPurchase", attribute.String("draw.name", drawName))
	defer func() {
		tracing.End(span, err)
		metrics.ObserveDraw("purchase", resultLabel(err))
	}()

	username = domain.NormalizeUsername(username)
	if actor.Username != username {
		return domain.ErrForbidden
	}

	var stored string
	err = s.draws.Update(ctx, func(f *domain.DrawFile) error {
		i := f.Index(drawName)
		if i < 0 {
			return domain.ErrNotFound
		}
		d := &f.Groups[i]
		if !d.HasParticipant(username) {
			return domain.ErrNotParticipant
		}
		if d.Purchased == nil {
			d.Purchased = map[string]bool{}
		}
		d.Purchased[username] = purchased
		stored = d.Name
		return nil
	})
	if err != nil {
		return err
	}

	s.activity.Record(ctx, actor, audit.PurchaseStatusUpdated,
		fmt.Sprintf("Username: %s, Draw: %s, Purchased: %s", username, stored, yesNo(purchased)))
	return nil
}

// RecordActivePurchase is RecordPurchase against the active draw.
func (s *DrawService) RecordActivePurchase(ctx context.Context, actor domain.Actor, purchased bool) error {
	active, err := s.draws.Active(ctx)
	if err != nil {
		return err
	}
	return s.RecordPurchase(ctx, actor, active.Name, actor.Username, purchased)
}

// GetAssignment returns the recipient of username in the named draw. The
// boolean is false when the draw has no entry for username.
func (s *DrawService) GetAssignment(ctx context.Context, actor domain.Actor, drawName, username string) (string, bool, error) {
	username = domain.NormalizeUsername(username)
	if !actor.IsAdmin() && actor.Username != username {
		return "", false, domain.ErrForbidden
	}
	d, err := s.draws.Get(ctx, drawName)
	if err != nil {
		return "", false, err
	}
	r, ok := d.Recipient(username)
	return r, ok, nil
}

// ListDraws returns every draw. Pairs are stripped; the admin never sees who drew whom here.
func (s *DrawService) ListDraws(ctx context.Context, actor domain.Actor) ([]DrawSummary, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	f := s.draws.Load(ctx)
	out := make([]DrawSummary, 0, len(f.Groups))
	for i := range f.Groups {
		out = append(out, summarize(&f.Groups[i], s.now()))
	}
	return out, nil
}

// ActiveDraw returns the active draw summary.
func (s *DrawService) ActiveDraw(ctx context.Context) (*DrawSummary, error) {
	d, err := s.draws.Active(ctx)
	if err != nil {
		return nil, err
	}
	sum := summarize(d, s.now())
	return &sum, nil
}

// DrawSummary describes a draw without revealing assignments
type DrawSummary struct {
	Name           string     `json:"name"`
	Active         bool       `json:"active"`
	Participants   []string   `json:"participants"`
	PurchasedCount int        `json:"purchased_count"`
	Created        time.Time  `json:"created"`
	Budget         *float64   `json:"budget,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	DaysLeft       *int       `json:"days_left,omitempty"`
}

func summarize(d *domain.Draw, now time.Time) DrawSummary {
	count := 0
	for _, p := range d.Participants {
		if d.Purchased[p] {
			count++
		}
	}
	return DrawSummary{
		Name:           d.Name,
		Active:         d.Active,
		Participants:   d.Participants,
		PurchasedCount: count,
		Created:        d.Created,
		Budget:         d.Budget,
		Deadline:       d.Deadline,
		DaysLeft:       daysLeft(d.Deadline, now),
	}
}

// StatusRow is one line of the admin overview of the active draw
type StatusRow struct {
	Giver              string `json:"giver"`
	Recipient          string `json:"recipient"`
	RecipientInterests string `json:"recipient_interests"`
	Purchased          bool   `json:"purchased"`
}

// DrawStatus is the admin overview of the active draw
type DrawStatus struct {
	Draw DrawSummary `json:"draw"`
	Rows []StatusRow `json:"rows"`
}

// Status returns giver, recipient, interests and purchase state for every
// participant of the active draw.
func (s *DrawService) Status(ctx context.Context, actor domain.Actor) (*DrawStatus, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	d, err := s.draws.Active(ctx)
	if err != nil {
		return nil, err
	}
	interests := interestsByUser(s.users.List(ctx))

	rows := make([]StatusRow, 0, len(d.Participants))
	for _, giver := range d.Participants {
		recipient := d.Pairs[giver]
		rows = append(rows, StatusRow{
			Giver:              giver,
			Recipient:          recipient,
			RecipientInterests: interests[recipient],
			Purchased:          d.Purchased[giver],
		})
	}
	return &DrawStatus{Draw: summarize(d, s.now()), Rows: rows}, nil
}

// ParticipantView is what a participant sees about the active draw
type ParticipantView struct {
	Username           string     `json:"username"`
	Interests          string     `json:"interests"`
	Draw               string     `json:"draw,omitempty"`
	Recipient          string     `json:"recipient,omitempty"`
	RecipientInterests string     `json:"recipient_interests,omitempty"`
	Purchased          bool       `json:"purchased"`
	Budget             *float64   `json:"budget,omitempty"`
	Deadline           *time.Time `json:"deadline,omitempty"`
	DaysLeft           *int       `json:"days_left,omitempty"`
}

// ParticipantView returns the caller's own active assignment. With no
// active draw only the profile fields are filled.
func (s *DrawService) ParticipantView(ctx context.Context, actor domain.Actor) (*ParticipantView, error) {
	users := s.users.List(ctx)
	i := users.Find(actor.Username)
	if i < 0 {
		return nil, domain.ErrNotFound
	}
	view := &ParticipantView{Username: users[i].Username, Interests: users[i].Interests}

	d, err := s.draws.Active(ctx)
	if errors.Is(err, domain.ErrNoActiveDraw) {
		return view, nil
	}
	if err != nil {
		return nil, err
	}

	view.Draw = d.Name
	view.Budget = d.Budget
	view.Deadline = d.Deadline
	view.DaysLeft = daysLeft(d.Deadline, s.now())
	if recipient, ok := d.Recipient(actor.Username); ok {
		view.Recipient = recipient
		view.RecipientInterests = interestsByUser(users)[recipient]
		view.Purchased = d.Purchased[actor.Username]
	}
	return view, nil
}

// PastDraw is an inactive draw the caller took part in
type PastDraw struct {
	Name      string    `json:"name"`
	Recipient string    `json:"recipient"`
	Purchased bool      `json:"purchased"`
	Created   time.Time `json:"created"`
}

// PastDraws lists inactive draws the caller participated in, newest first.
func (s *DrawService) PastDraws(ctx context.Context, actor domain.Actor) []PastDraw {
	f := s.draws.Load(ctx)
	out := []PastDraw{}
	for i := len(f.Groups) - 1; i >= 0; i-- {
		d := &f.Groups[i]
		if d.Active {
			continue
		}
		if r, ok := d.Recipient(actor.Username); ok {
			out = append(out, PastDraw{Name: d.Name, Recipient: r, Purchased: d.Purchased[actor.Username], Created: d.Created})
		}
	}
	return out
}

// participantList normalizes names, drops the admin account and duplicates,
// and keeps the first-seen order.
func participantList(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = domain.NormalizeUsername(n)
		if n == "" || n == domain.AdminUsername {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func interestsByUser(users domain.UserCollection) map[string]string {
	out := make(map[string]string, len(users))
	for _, u := range users {
		out[u.Username] = u.Interests
	}
	return out
}

func daysLeft(deadline *time.Time, now time.Time) *int {
	if deadline == nil {
		return nil
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Ceil(deadline.Sub(today).Hours() / 24))
	return &days
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
