package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func sampleRetro() *Retro {
	r := &Retro{
		ID:           uuid.New(),
		Name:         "Sprint 1",
		CreatorID:    uuid.New(),
		Step:         StepWriting,
		Participants: []Participant{},
		Lanes:        DefaultLanes(),
	}
	return r
}

func TestDefaultLanes(t *testing.T) {
	lanes := DefaultLanes()
	if len(lanes) != 3 {
		t.Fatalf("expected 3 lanes, got %d", len(lanes))
	}
	want := map[int]string{1: LaneGood, 2: LaneBad, 3: LaneNeedsImprovement}
	seen := map[uuid.UUID]bool{}
	for _, lane := range lanes {
		if want[lane.Priority] != lane.Title {
			t.Fatalf("lane priority %d: want=%q got=%q", lane.Priority, want[lane.Priority], lane.Title)
		}
		if seen[lane.ID] {
			t.Fatalf("duplicate lane id %s", lane.ID)
		}
		seen[lane.ID] = true
		if lane.Cards == nil {
			t.Fatalf("lane %q cards should be an empty slice", lane.Title)
		}
	}
}

func TestSortLanes(t *testing.T) {
	lanes := []Lane{{Title: "c", Priority: 3}, {Title: "b", Priority: 1}, {Title: "a", Priority: 1}}
	SortLanes(lanes)
	got := []string{lanes[0].Title, lanes[1].Title, lanes[2].Title}
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestRetroCloneIsDeep(t *testing.T) {
	r := sampleRetro()
	user := uuid.New()
	r.Lanes[0].Cards = append(r.Lanes[0].Cards, Card{
		ID:       uuid.New(),
		Text:     "parent",
		Votes:    []uuid.UUID{user},
		Subcards: []Card{{ID: uuid.New(), Text: "child"}},
	})
	r.AddParticipant(user, time.Now())

	cp := r.Clone()
	cp.Lanes[0].Cards[0].Text = "changed"
	cp.Lanes[0].Cards[0].Votes[0] = uuid.New()
	cp.Lanes[0].Cards[0].Subcards[0].Text = "changed"
	cp.Participants[0].UserID = uuid.New()

	orig := r.Lanes[0].Cards[0]
	if orig.Text != "parent" || orig.Subcards[0].Text != "child" || orig.Votes[0] != user {
		t.Fatalf("clone shares card state with original: %+v", orig)
	}
	if r.Participants[0].UserID != user {
		t.Fatalf("clone shares participants with original")
	}
}

func TestFindCardScansLanesAndSubcards(t *testing.T) {
	r := sampleRetro()
	child := Card{ID: uuid.New(), Text: "child"}
	r.Lanes[2].Cards = append(r.Lanes[2].Cards, Card{ID: uuid.New(), Text: "parent", Subcards: []Card{child}})

	card, lane := r.FindCard(child.ID)
	if card == nil || lane == nil {
		t.Fatalf("expected to find nested card")
	}
	if lane.Title != LaneNeedsImprovement {
		t.Fatalf("owning lane: want=%q got=%q", LaneNeedsImprovement, lane.Title)
	}
	card.Text = "edited"
	if r.Lanes[2].Cards[0].Subcards[0].Text != "edited" {
		t.Fatalf("FindCard should return a pointer into the retro")
	}
	if c, l := r.FindCard(uuid.New()); c != nil || l != nil {
		t.Fatalf("expected no card for unknown id")
	}
	if r.CardCount() != 2 {
		t.Fatalf("CardCount: want=2 got=%d", r.CardCount())
	}
}

func TestParticipantsAreASet(t *testing.T) {
	r := sampleRetro()
	u := uuid.New()
	if !r.AddParticipant(u, time.Now()) {
		t.Fatalf("first add should change the list")
	}
	if r.AddParticipant(u, time.Now()) {
		t.Fatalf("second add should be a no-op")
	}
	if len(r.Participants) != 1 || r.Participants[0].RetroID != r.ID {
		t.Fatalf("unexpected participants: %+v", r.Participants)
	}
	if !r.RemoveParticipant(u) || r.RemoveParticipant(u) {
		t.Fatalf("remove should change the list exactly once")
	}
	if len(r.Participants) != 0 {
		t.Fatalf("expected empty participants, got %+v", r.Participants)
	}
}

func TestSetVote(t *testing.T) {
	c := Card{ID: uuid.New()}
	a, b := uuid.New(), uuid.New()
	if !c.SetVote(a, true) || !c.SetVote(b, true) {
		t.Fatalf("adding new votes should change the set")
	}
	if c.SetVote(a, true) {
		t.Fatalf("re-adding a vote should be a no-op")
	}
	if c.VoteCount() != 2 {
		t.Fatalf("VoteCount: want=2 got=%d", c.VoteCount())
	}
	if !c.SetVote(a, false) || c.HasVote(a) || !c.HasVote(b) {
		t.Fatalf("removing a vote failed: %+v", c.Votes)
	}
	if c.SetVote(a, false) {
		t.Fatalf("removing an absent vote should be a no-op")
	}
}

func TestParseStep(t *testing.T) {
	for _, raw := range []string{"writing", "GROUPING", " Voting ", "Reviewing"} {
		if _, err := ParseStep(raw); err != nil {
			t.Fatalf("ParseStep(%q): %v", raw, err)
		}
	}
	_, err := ParseStep("Done")
	if !IsCode(err, CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var payload struct {
		Step Step `json:"step"`
	}
	if err := json.Unmarshal([]byte(`{"step":"reviewing"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Step != StepReviewing {
		t.Fatalf("unmarshal step: want=%s got=%s", StepReviewing, payload.Step)
	}
}

func TestErrorWrapKeepsCode(t *testing.T) {
	base := NotFound("store.get_retro", "retro")
	wrapped := Wrap(CodePersistence, "services.add_card", base)
	if !IsNotFound(wrapped) {
		t.Fatalf("expected not_found to survive wrapping, got %v", CodeOf(wrapped))
	}
	if CodeOf(Wrap(CodePersistence, "op", errPlain("boom"))) != CodePersistence {
		t.Fatalf("expected persistence code for plain errors")
	}
	if Wrap(CodePersistence, "op", nil) != nil {
		t.Fatalf("wrapping nil should return nil")
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }
