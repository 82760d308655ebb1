package realtime

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/domain"
)

type Topic string

const (
	TopicCardAdded           Topic = "card_added"
	TopicParticipantsChanged Topic = "participants_changed"
	TopicStepChanged         Topic = "step_changed"
)

var Topics = []Topic{TopicCardAdded, TopicParticipantsChanged, TopicStepChanged}

func (t Topic) Valid() bool {
	for _, known := range Topics {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTopics reads a comma separated topic list. Empty input means all topics.
func ParseTopics(raw string) ([]Topic, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return append([]Topic(nil), Topics...), nil
	}
	seen := map[Topic]bool{}
	out := []Topic{}
	for _, part := range strings.Split(raw, ",") {
		t := Topic(strings.ToLower(strings.TrimSpace(part)))
		if t == "" || seen[t] {
			continue
		}
		if !t.Valid() {
			return nil, domain.NewError(domain.CodeValidation, "realtime.parse_topics", fmt.Sprintf("unknown topic %q", part), nil)
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// Event carries the authoritative sub-state that changed.
type Event struct {
	Topic   Topic     `json:"topic"`
	RetroID uuid.UUID `json:"retro_id"`
	At      time.Time `json:"at"`
	Data    any       `json:"data"`
}

type CardAdded struct {
	RetroID      uuid.UUID   `json:"retro_id"`
	LaneID       uuid.UUID   `json:"lane_id"`
	ParentCardID *uuid.UUID  `json:"parent_card_id,omitempty"`
	Card         domain.Card `json:"card"`
}

type ParticipantsChanged struct {
	RetroID      uuid.UUID            `json:"retro_id"`
	Participants []domain.Participant `json:"participants"`
}

type StepChanged struct {
	RetroID uuid.UUID   `json:"retro_id"`
	Step    domain.Step `json:"step"`
}

func NewCardAdded(retroID, laneID uuid.UUID, card domain.Card) Event {
	return Event{
		Topic:   TopicCardAdded,
		RetroID: retroID,
		At:      time.Now().UTC(),
		Data:    CardAdded{RetroID: retroID, LaneID: laneID, Card: card.Clone()},
	}
}

// NewSubcardAdded announces a card grouped under parentID.
func NewSubcardAdded(retroID, laneID, parentID uuid.UUID, card domain.Card) Event {
	ev := NewCardAdded(retroID, laneID, card)
	payload := ev.Data.(CardAdded)
	payload.ParentCardID = &parentID
	ev.Data = payload
	return ev
}

func NewParticipantsChanged(retroID uuid.UUID, participants []domain.Participant) Event {
	list := append([]domain.Participant{}, participants...)
	return Event{
		Topic:   TopicParticipantsChanged,
		RetroID: retroID,
		At:      time.Now().UTC(),
		Data:    ParticipantsChanged{RetroID: retroID, Participants: list},
	}
}

func NewStepChanged(retroID uuid.UUID, step domain.Step) Event {
	return Event{
		Topic:   TopicStepChanged,
		RetroID: retroID,
		At:      time.Now().UTC(),
		Data:    StepChanged{RetroID: retroID, Step: step},
	}
}
