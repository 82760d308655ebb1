package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/data/store"
	"github.com/yungbote/retroboard-backend/internal/domain"
	"github.com/yungbote/retroboard-backend/internal/observability"
	"github.com/yungbote/retroboard-backend/internal/platform/ctxutil"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
	"github.com/yungbote/retroboard-backend/internal/realtime"
)

type VotePolicy string

const (
	// VotePolicyCreatorOnly lets only a card's author vote on it.
	VotePolicyCreatorOnly VotePolicy = "creator_only"
	VotePolicyOpen        VotePolicy = "open"
)

func ParseVotePolicy(raw string) (VotePolicy, error) {
	switch VotePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", VotePolicyCreatorOnly:
		return VotePolicyCreatorOnly, nil
	case VotePolicyOpen:
		return VotePolicyOpen, nil
	default:
		return "", fmt.Errorf("unknown vote policy %q", raw)
	}
}

const maxCardText = 2000

type AddCardInput struct {
	RetroID  uuid.UUID
	LaneID   uuid.UUID
	AuthorID uuid.UUID
	Text     string
	// ParentCardID groups the new card under an existing card of the same lane.
	ParentCardID *uuid.UUID
}

type RetroService interface {
	CreateRetro(ctx context.Context, creatorID uuid.UUID, name string) (*domain.Retro, error)
	GetRetro(ctx context.Context, id uuid.UUID) (*domain.Retro, error)
	ListRetros(ctx context.Context) ([]*domain.Retro, error)
	EnterRetro(ctx context.Context, retroID, userID uuid.UUID) (*domain.Retro, error)
	LeaveRetro(ctx context.Context, retroID, userID uuid.UUID) (*domain.Retro, error)
	AddCard(ctx context.Context, in AddCardInput) (*domain.Card, error)
	EditCard(ctx context.Context, retroID, cardID, actorID uuid.UUID, text string) (*domain.Card, error)
	VoteCard(ctx context.Context, retroID, cardID, userID uuid.UUID, vote bool) (*domain.Card, error)
	UpdateStep(ctx context.Context, retroID uuid.UUID, step domain.Step) (*domain.Retro, error)
}

type RetroServiceConfig struct {
	VotePolicy VotePolicy
	// MutationAttempts bounds read-modify-write retries after a version
	// conflict. Only optimistic-locking stores report conflicts.
	MutationAttempts int
	Now              func() time.Time
}

type retroService struct {
	log      *logger.Logger
	store    store.RetroStore
	bus      realtime.Bus
	metrics  *observability.Metrics
	policy   VotePolicy
	attempts int
	now      func() time.Time
}

func NewRetroService(log *logger.Logger, st store.RetroStore, bus realtime.Bus, metrics *observability.Metrics, cfg RetroServiceConfig) RetroService {
	if cfg.VotePolicy == "" {
		cfg.VotePolicy = VotePolicyCreatorOnly
	}
	if cfg.MutationAttempts <= 0 {
		cfg.MutationAttempts = 1
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &retroService{
		log:      log.With("service", "RetroService"),
		store:    st,
		bus:      bus,
		metrics:  metrics,
		policy:   cfg.VotePolicy,
		attempts: cfg.MutationAttempts,
		now:      cfg.Now,
	}
}

func (s *retroService) CreateRetro(ctx context.Context, creatorID uuid.UUID, name string) (*domain.Retro, error) {
	const op = "create_retro"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, s.reject(op, domain.NewError(domain.CodeValidation, "retro.create", "name is required", nil))
	}
	if creatorID == uuid.Nil {
		return nil, s.reject(op, domain.NewError(domain.CodeValidation, "retro.create", "creator is required", nil))
	}
	now := s.now()
	retro := &domain.Retro{
		ID:           uuid.New(),
		Name:         name,
		CreatorID:    creatorID,
		Step:         domain.StepWriting,
		CreatedAt:    now,
		UpdatedAt:    now,
		Participants: []domain.Participant{},
		Lanes:        domain.DefaultLanes(),
	}
	stored, err := s.store.CreateRetro(ctx, retro)
	if err != nil {
		return nil, s.fail(ctx, op, retro.ID, err)
	}
	s.bus.Publish(ctx, realtime.NewParticipantsChanged(stored.ID, stored.Participants))
	s.metrics.IncMutation(op, "ok")
	s.log.Info("Retro created", append([]interface{}{"retro_id", stored.ID, "creator_id", creatorID}, ctxutil.LogFields(ctx)...)...)
	return stored, nil
}

func (s *retroService) GetRetro(ctx context.Context, id uuid.UUID) (*domain.Retro, error) {
	r, err := s.store.GetRetro(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "get_retro", id, err)
	}
	return r, nil
}

func (s *retroService) ListRetros(ctx context.Context) ([]*domain.Retro, error) {
	out, err := s.store.ListRetros(ctx)
	if err != nil {
		return nil, s.fail(ctx, "list_retros", uuid.Nil, err)
	}
	return out, nil
}

func (s *retroService) EnterRetro(ctx context.Context, retroID, userID uuid.UUID) (*domain.Retro, error) {
	return s.mutate(ctx, "enter_retro", retroID, func(r *domain.Retro) (*realtime.Event, error) {
		if !r.AddParticipant(userID, s.now()) {
			return nil, nil
		}
		ev := realtime.NewParticipantsChanged(r.ID, r.Participants)
		return &ev, nil
	})
}

func (s *retroService) LeaveRetro(ctx context.Context, retroID, userID uuid.UUID) (*domain.Retro, error) {
	return s.mutate(ctx, "leave_retro", retroID, func(r *domain.Retro) (*realtime.Event, error) {
		if !r.RemoveParticipant(userID) {
			return nil, nil
		}
		ev := realtime.NewParticipantsChanged(r.ID, r.Participants)
		return &ev, nil
	})
}

func (s *retroService) AddCard(ctx context.Context, in AddCardInput) (*domain.Card, error) {
	const op = "add_card"
	text, err := normalizeCardText("retro.add_card", in.Text)
	if err != nil {
		return nil, s.reject(op, err)
	}
	cardID := uuid.New()
	stored, err := s.mutate(ctx, op, in.RetroID, func(r *domain.Retro) (*realtime.Event, error) {
		if existing, _ := r.FindCard(cardID); existing != nil {
			// An earlier attempt of this call already landed.
			return nil, nil
		}
		lane := r.Lane(in.LaneID)
		if lane == nil {
			return nil, domain.NotFound("retro.add_card", "lane")
		}
		card := domain.Card{
			ID:        cardID,
			RetroID:   r.ID,
			LaneID:    lane.ID,
			CreatorID: in.AuthorID,
			Text:      text,
			CreatedAt: s.now(),
			Subcards:  []domain.Card{},
			Votes:     []uuid.UUID{},
		}
		if in.ParentCardID != nil {
			parent, parentLane := r.FindCard(*in.ParentCardID)
			if parent == nil {
				return nil, domain.NotFound("retro.add_card", "parent card")
			}
			if parentLane.ID != lane.ID {
				return nil, domain.NewError(domain.CodeValidation, "retro.add_card", "parent card belongs to another lane", nil)
			}
			parent.Subcards = append(parent.Subcards, card)
			ev := realtime.NewSubcardAdded(r.ID, lane.ID, parent.ID, card)
			return &ev, nil
		}
		lane.Cards = append(lane.Cards, card)
		ev := realtime.NewCardAdded(r.ID, lane.ID, card)
		return &ev, nil
	})
	if err != nil {
		return nil, err
	}
	return cardIn(stored, cardID)
}

// EditCard republishes the card on the card_added topic; clients treat it
// as an upsert keyed by card id.
func (s *retroService) EditCard(ctx context.Context, retroID, cardID, actorID uuid.UUID, text string) (*domain.Card, error) {
	const op = "edit_card"
	text, err := normalizeCardText("retro.edit_card", text)
	if err != nil {
		return nil, s.reject(op, err)
	}
	stored, err := s.mutate(ctx, op, retroID, func(r *domain.Retro) (*realtime.Event, error) {
		card, lane := r.FindCard(cardID)
		if card == nil {
			return nil, domain.NotFound("retro.edit_card", "card")
		}
		if card.Text == text {
			return nil, nil
		}
		card.Text = text
		ev := realtime.NewCardAdded(r.ID, lane.ID, *card)
		return &ev, nil
	})
	if err != nil {
		return nil, err
	}
	return cardIn(stored, cardID)
}

func (s *retroService) VoteCard(ctx context.Context, retroID, cardID, userID uuid.UUID, vote bool) (*domain.Card, error) {
	stored, err := s.mutate(ctx, "vote_card", retroID, func(r *domain.Retro) (*realtime.Event, error) {
		card, lane := r.FindCard(cardID)
		if card == nil {
			return nil, domain.NotFound("retro.vote_card", "card")
		}
		if s.policy == VotePolicyCreatorOnly && card.CreatorID != userID {
			return nil, domain.NewError(domain.CodeUnauthorized, "retro.vote_card", "only the card's creator may vote on it", nil)
		}
		if !card.SetVote(userID, vote) {
			return nil, nil
		}
		ev := realtime.NewCardAdded(r.ID, lane.ID, *card)
		return &ev, nil
	})
	if err != nil {
		return nil, err
	}
	return cardIn(stored, cardID)
}

// UpdateStep overwrites the step unconditionally; any transition is allowed.
func (s *retroService) UpdateStep(ctx context.Context, retroID uuid.UUID, step domain.Step) (*domain.Retro, error) {
	const op = "update_step"
	if !step.Valid() {
		return nil, s.reject(op, domain.NewError(domain.CodeValidation, "retro.update_step", fmt.Sprintf("unknown step %q", step), nil))
	}
	return s.mutate(ctx, op, retroID, func(r *domain.Retro) (*realtime.Event, error) {
		r.Step = step
		ev := realtime.NewStepChanged(r.ID, step)
		return &ev, nil
	})
}

// mutate runs read, change a private copy, write back, publish. fn returns
// the event describing its change, or nil when nothing changed; a nil event
// skips both the write and the publish. The event is published only after
// the write succeeded.
func (s *retroService) mutate(ctx context.Context, op string, retroID uuid.UUID, fn func(r *domain.Retro) (*realtime.Event, error)) (*domain.Retro, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.store.GetRetro(ctx, retroID)
		if err != nil {
			return nil, s.fail(ctx, op, retroID, err)
		}
		next := current.Clone()
		ev, err := fn(next)
		if err != nil {
			return nil, s.reject(op, err)
		}
		if ev == nil {
			s.metrics.IncMutation(op, "noop")
			return current, nil
		}

		stored, err := s.store.UpdateRetro(ctx, next)
		if domain.IsCode(err, domain.CodeConflict) && attempt < s.attempts {
			s.log.Debug("Retro changed concurrently; retrying", "op", op, "retro_id", retroID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, s.fail(ctx, op, retroID, err)
		}
		s.bus.Publish(ctx, *ev)
		s.metrics.IncMutation(op, "ok")
		return stored, nil
	}
}

// reject records a caller error. Those are expected and not logged.
func (s *retroService) reject(op string, err error) error {
	s.metrics.IncMutation(op, string(domain.CodeOf(err)))
	return err
}

// fail wraps a store error and logs it once unless it is a plain lookup miss.
func (s *retroService) fail(ctx context.Context, op string, retroID uuid.UUID, err error) error {
	wrapped := domain.Wrap(domain.CodePersistence, "retro."+op, err)
	code := domain.CodeOf(wrapped)
	s.metrics.IncMutation(op, string(code))
	if code == domain.CodeNotFound {
		return wrapped
	}
	kv := append([]interface{}{"op", op, "retro_id", retroID, "code", code, "error", err}, ctxutil.LogFields(ctx)...)
	if code == domain.CodeConflict {
		s.log.Warn("Retro mutation conflicted", kv...)
	} else {
		s.log.Error("Retro persistence failed", kv...)
	}
	return wrapped
}

func normalizeCardText(op, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.NewError(domain.CodeValidation, op, "card text is required", nil)
	}
	if len(text) > maxCardText {
		return "", domain.NewError(domain.CodeValidation, op, fmt.Sprintf("card text exceeds %d bytes", maxCardText), nil)
	}
	return text, nil
}

func cardIn(r *domain.Retro, cardID uuid.UUID) (*domain.Card, error) {
	card, _ := r.FindCard(cardID)
	if card == nil {
		return nil, domain.NotFound("retro.card", "card")
	}
	out := card.Clone()
	return &out, nil
}
