package domain

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

type Retro struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	CreatorID    uuid.UUID     `json:"creator_id"`
	Step         Step          `json:"step"`
	Version      int64         `json:"version"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Participants []Participant `json:"participants"`
	Lanes        []Lane        `json:"lanes"`
}

// Participant is a membership record, unique per (UserID, RetroID).
type Participant struct {
	UserID   uuid.UUID `json:"user_id"`
	RetroID  uuid.UUID `json:"retro_id"`
	JoinedAt time.Time `json:"joined_at"`
}

type Lane struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Priority int       `json:"priority"`
	Cards    []Card    `json:"cards"`
}

type Card struct {
	ID        uuid.UUID   `json:"id"`
	RetroID   uuid.UUID   `json:"retro_id"`
	LaneID    uuid.UUID   `json:"lane_id"`
	CreatorID uuid.UUID   `json:"creator_id"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
	Subcards  []Card      `json:"subcards"`
	Votes     []uuid.UUID `json:"votes"`
}

const (
	LaneGood             = "Good"
	LaneBad              = "Bad"
	LaneNeedsImprovement = "Needs Improvement"
)

// DefaultLanes is the fixed seed topology every new retro starts with.
func DefaultLanes() []Lane {
	titles := []string{LaneGood, LaneBad, LaneNeedsImprovement}
	lanes := make([]Lane, 0, len(titles))
	for i, title := range titles {
		lanes = append(lanes, Lane{
			ID:       uuid.New(),
			Title:    title,
			Priority: i + 1,
			Cards:    []Card{},
		})
	}
	return lanes
}

// SortLanes orders lanes by priority, then title.
func SortLanes(lanes []Lane) {
	sort.SliceStable(lanes, func(i, j int) bool {
		if lanes[i].Priority != lanes[j].Priority {
			return lanes[i].Priority < lanes[j].Priority
		}
		return lanes[i].Title < lanes[j].Title
	})
}

func (r *Retro) Clone() *Retro {
	if r == nil {
		return nil
	}
	out := *r
	out.Participants = append([]Participant(nil), r.Participants...)
	if out.Participants == nil {
		out.Participants = []Participant{}
	}
	out.Lanes = make([]Lane, len(r.Lanes))
	for i, lane := range r.Lanes {
		out.Lanes[i] = lane
		out.Lanes[i].Cards = cloneCards(lane.Cards)
	}
	return &out
}

func (c Card) Clone() Card {
	out := c
	out.Votes = append([]uuid.UUID(nil), c.Votes...)
	if out.Votes == nil {
		out.Votes = []uuid.UUID{}
	}
	out.Subcards = cloneCards(c.Subcards)
	return out
}

func cloneCards(cards []Card) []Card {
	out := make([]Card, len(cards))
	for i, c := range cards {
		out[i] = c.Clone()
	}
	return out
}

// Lane returns the lane with the given id, or nil when it does not belong to r.
func (r *Retro) Lane(id uuid.UUID) *Lane {
	for i := range r.Lanes {
		if r.Lanes[i].ID == id {
			return &r.Lanes[i]
		}
	}
	return nil
}

func (r *Retro) LaneByTitle(title string) *Lane {
	for i := range r.Lanes {
		if r.Lanes[i].Title == title {
			return &r.Lanes[i]
		}
	}
	return nil
}

// FindCard scans every lane, depth-first through subcards, and returns a
// pointer into r together with the owning lane.
func (r *Retro) FindCard(id uuid.UUID) (*Card, *Lane) {
	for i := range r.Lanes {
		if c := findCard(r.Lanes[i].Cards, id); c != nil {
			return c, &r.Lanes[i]
		}
	}
	return nil, nil
}

func findCard(cards []Card, id uuid.UUID) *Card {
	for i := range cards {
		if cards[i].ID == id {
			return &cards[i]
		}
		if c := findCard(cards[i].Subcards, id); c != nil {
			return c
		}
	}
	return nil
}

func (r *Retro) CardCount() int {
	n := 0
	for _, lane := range r.Lanes {
		n += countCards(lane.Cards)
	}
	return n
}

func countCards(cards []Card) int {
	n := len(cards)
	for _, c := range cards {
		n += countCards(c.Subcards)
	}
	return n
}

func (r *Retro) HasParticipant(userID uuid.UUID) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// AddParticipant reports whether the participant list changed.
func (r *Retro) AddParticipant(userID uuid.UUID, at time.Time) bool {
	if r.HasParticipant(userID) {
		return false
	}
	r.Participants = append(r.Participants, Participant{UserID: userID, RetroID: r.ID, JoinedAt: at})
	return true
}

// RemoveParticipant reports whether the participant list changed.
func (r *Retro) RemoveParticipant(userID uuid.UUID) bool {
	kept := r.Participants[:0]
	removed := false
	for _, p := range r.Participants {
		if p.UserID == userID {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if kept == nil {
		kept = []Participant{}
	}
	r.Participants = kept
	return removed
}

func (c *Card) HasVote(userID uuid.UUID) bool {
	for _, v := range c.Votes {
		if v == userID {
			return true
		}
	}
	return false
}

func (c *Card) VoteCount() int { return len(c.Votes) }

// SetVote puts userID into or out of the vote set and reports whether it changed.
// The set is kept sorted so every backend serializes it identically.
func (c *Card) SetVote(userID uuid.UUID, vote bool) bool {
	if vote == c.HasVote(userID) {
		return false
	}
	if vote {
		c.Votes = append(c.Votes, userID)
		sort.Slice(c.Votes, func(i, j int) bool {
			return bytes.Compare(c.Votes[i][:], c.Votes[j][:]) < 0
		})
		return true
	}
	kept := make([]uuid.UUID, 0, len(c.Votes))
	for _, v := range c.Votes {
		if v != userID {
			kept = append(kept, v)
		}
	}
	c.Votes = kept
	return true
}
