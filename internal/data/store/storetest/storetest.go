// Package storetest is the conformance suite every store adapter must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/data/store"
	"github.com/yungbote/retroboard-backend/internal/domain"
)

// Factory builds a fresh, empty store for one subtest.
type Factory func(t *testing.T, opts store.Options) store.Store

// Clock returns a monotonically advancing clock at microsecond precision,
// which every backend round-trips exactly.
func Clock() func() time.Time {
	var mu sync.Mutex
	cur := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Millisecond)
		return cur
	}
}

func NewRetro(name string, createdAt time.Time) *domain.Retro {
	return &domain.Retro{
		ID:           uuid.New(),
		Name:         name,
		CreatorID:    uuid.New(),
		Step:         domain.StepWriting,
		CreatedAt:    createdAt,
		Participants: []domain.Participant{},
		Lanes:        domain.DefaultLanes(),
	}
}

func Run(t *testing.T, factory Factory) {
	t.Helper()
	open := func(t *testing.T, locking bool) store.Store {
		t.Helper()
		s := factory(t, store.Options{OptimisticLocking: locking, Now: Clock()})
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("RetroRoundTrip", func(t *testing.T) { testRetroRoundTrip(t, open(t, false)) })
	t.Run("RetroNotFound", func(t *testing.T) { testRetroNotFound(t, open(t, false)) })
	t.Run("CreateRetroConflict", func(t *testing.T) { testCreateRetroConflict(t, open(t, false)) })
	t.Run("UpdateRetroBumpsVersion", func(t *testing.T) { testUpdateRetroBumpsVersion(t, open(t, false)) })
	t.Run("UpdateRetroLastWriteWins", func(t *testing.T) { testLastWriteWins(t, open(t, false)) })
	t.Run("UpdateRetroOptimisticLocking", func(t *testing.T) { testOptimisticLocking(t, open(t, true)) })
	t.Run("ListRetrosOrdered", func(t *testing.T) { testListRetrosOrdered(t, open(t, false)) })
	t.Run("ReadsReturnCopies", func(t *testing.T) { testReadsReturnCopies(t, open(t, false)) })
	t.Run("ConcurrentRetroUpdates", func(t *testing.T) { testConcurrentUpdates(t, open(t, false)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t, false)) })
	t.Run("ValidateUser", func(t *testing.T) { testValidateUser(t, open(t, false)) })
	t.Run("Ping", func(t *testing.T) {
		if err := open(t, false).Ping(context.Background()); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})
}

func mustCreateRetro(t *testing.T, s store.Store, r *domain.Retro) *domain.Retro {
	t.Helper()
	out, err := s.CreateRetro(context.Background(), r)
	if err != nil {
		t.Fatalf("create retro: %v", err)
	}
	return out
}

func mustGetRetro(t *testing.T, s store.Store, id uuid.UUID) *domain.Retro {
	t.Helper()
	out, err := s.GetRetro(context.Background(), id)
	if err != nil {
		t.Fatalf("get retro %s: %v", id, err)
	}
	return out
}

func mustCreateUser(t *testing.T, s store.Store, name string) *domain.User {
	t.Helper()
	out, err := s.CreateUser(context.Background(), &domain.User{ID: uuid.New(), Username: name})
	if err != nil {
		t.Fatalf("create user %q: %v", name, err)
	}
	return out
}

func testRetroRoundTrip(t *testing.T, s store.Store) {
	in := NewRetro("Sprint 1", time.Time{})
	author := uuid.New()
	good := in.LaneByTitle(domain.LaneGood)
	good.Cards = append(good.Cards, domain.Card{
		ID:        uuid.New(),
		RetroID:   in.ID,
		LaneID:    good.ID,
		CreatorID: author,
		Text:      "Great teamwork",
		CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Subcards:  []domain.Card{},
		Votes:     []uuid.UUID{author},
	})
	in.AddParticipant(author, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	created := mustCreateRetro(t, s, in)
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be stamped: %+v", created)
	}

	got := mustGetRetro(t, s, in.ID)
	if got.Name != "Sprint 1" || got.Step != domain.StepWriting || got.CreatorID != in.CreatorID {
		t.Fatalf("unexpected retro header: %+v", got)
	}
	if len(got.Lanes) != 3 {
		t.Fatalf("expected 3 lanes, got %d", len(got.Lanes))
	}
	card, lane := got.FindCard(good.Cards[0].ID)
	if card == nil || lane.Title != domain.LaneGood {
		t.Fatalf("card not persisted in Good lane: %+v", got.Lanes)
	}
	if card.Text != "Great teamwork" || !card.HasVote(author) || card.Subcards == nil {
		t.Fatalf("card fields not preserved: %+v", card)
	}
	if !got.HasParticipant(author) {
		t.Fatalf("participant not preserved")
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at changed on read: %v vs %v", got.CreatedAt, created.CreatedAt)
	}
}

func testRetroNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.GetRetro(ctx, uuid.New()); !domain.IsNotFound(err) {
		t.Fatalf("expected not_found on get, got %v", err)
	}
	if _, err := s.UpdateRetro(ctx, NewRetro("ghost", time.Time{})); !domain.IsNotFound(err) {
		t.Fatalf("expected not_found on update, got %v", err)
	}
	retros, err := s.ListRetros(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(retros) != 0 {
		t.Fatalf("update of a missing retro must not create it, got %d retros", len(retros))
	}
}

func testCreateRetroConflict(t *testing.T, s store.Store) {
	r := NewRetro("dup", time.Time{})
	mustCreateRetro(t, s, r)
	if _, err := s.CreateRetro(context.Background(), r); !domain.IsCode(err, domain.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func testUpdateRetroBumpsVersion(t *testing.T, s store.Store) {
	created := mustCreateRetro(t, s, NewRetro("before", time.Time{}))
	next := created.Clone()
	next.Name = "after"
	next.Step = domain.StepVoting

	updated, err := s.UpdateRetro(context.Background(), next)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != created.Version+1 {
		t.Fatalf("expected version %d, got %d", created.Version+1, updated.Version)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("expected updated_at to advance: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
	}
	if next.Version != created.Version {
		t.Fatalf("update must not mutate its argument")
	}

	got := mustGetRetro(t, s, created.ID)
	if got.Name != "after" || got.Step != domain.StepVoting || got.Version != updated.Version {
		t.Fatalf("update not visible: %+v", got)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at must survive updates")
	}
}

func testLastWriteWins(t *testing.T, s store.Store) {
	created := mustCreateRetro(t, s, NewRetro("race", time.Time{}))
	a := created.Clone()
	a.Name = "writer a"
	b := created.Clone()
	b.Name = "writer b"

	if _, err := s.UpdateRetro(context.Background(), a); err != nil {
		t.Fatalf("update a: %v", err)
	}
	out, err := s.UpdateRetro(context.Background(), b)
	if err != nil {
		t.Fatalf("stale update must still succeed without locking: %v", err)
	}
	if out.Version != 3 {
		t.Fatalf("expected version 3, got %d", out.Version)
	}
	if got := mustGetRetro(t, s, created.ID); got.Name != "writer b" {
		t.Fatalf("expected last write to win, got %q", got.Name)
	}
}

func testOptimisticLocking(t *testing.T, s store.Store) {
	created := mustCreateRetro(t, s, NewRetro("locked", time.Time{}))
	a := created.Clone()
	a.Name = "writer a"
	b := created.Clone()
	b.Name = "writer b"

	if _, err := s.UpdateRetro(context.Background(), a); err != nil {
		t.Fatalf("update a: %v", err)
	}
	if _, err := s.UpdateRetro(context.Background(), b); !domain.IsCode(err, domain.CodeConflict) {
		t.Fatalf("expected conflict for stale version, got %v", err)
	}
	if got := mustGetRetro(t, s, created.ID); got.Name != "writer a" {
		t.Fatalf("rejected write leaked: %q", got.Name)
	}
}

func testListRetrosOrdered(t *testing.T, s store.Store) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	third := mustCreateRetro(t, s, NewRetro("third", base.Add(2*time.Hour)))
	first := mustCreateRetro(t, s, NewRetro("first", base))
	second := mustCreateRetro(t, s, NewRetro("second", base.Add(time.Hour)))

	got, err := s.ListRetros(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []uuid.UUID{first.ID, second.ID, third.ID}
	if len(got) != len(want) {
		t.Fatalf("expected %d retros, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s (%s)", i, want[i], got[i].ID, got[i].Name)
		}
	}
}

func testReadsReturnCopies(t *testing.T, s store.Store) {
	created := mustCreateRetro(t, s, NewRetro("copies", time.Time{}))
	created.Name = "mutated"
	created.Lanes[0].Title = "mutated"

	got := mustGetRetro(t, s, created.ID)
	if got.Name != "copies" || got.Lanes[0].Title != domain.LaneGood {
		t.Fatalf("caller mutation leaked into store: %+v", got)
	}
	got.Participants = append(got.Participants, domain.Participant{UserID: uuid.New()})
	if again := mustGetRetro(t, s, created.ID); len(again.Participants) != 0 {
		t.Fatalf("read copy aliased stored participants")
	}
}

func testConcurrentUpdates(t *testing.T, s store.Store) {
	const retros = 4
	const writes = 5
	ids := make([]uuid.UUID, retros)
	for i := range ids {
		ids[i] = mustCreateRetro(t, s, NewRetro(fmt.Sprintf("r%d", i), time.Time{})).ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, retros*writes)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			for w := 0; w < writes; w++ {
				cur, err := s.GetRetro(context.Background(), id)
				if err != nil {
					errs <- err
					return
				}
				cur.Name = fmt.Sprintf("write %d", w)
				if _, err := s.UpdateRetro(context.Background(), cur); err != nil {
					errs <- err
					return
				}
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent update: %v", err)
	}
	for _, id := range ids {
		got := mustGetRetro(t, s, id)
		if got.Version != writes+1 || got.Name != fmt.Sprintf("write %d", writes-1) {
			t.Fatalf("retro %s: version=%d name=%q", id, got.Version, got.Name)
		}
	}
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	bob := mustCreateUser(t, s, "bob")
	alice := mustCreateUser(t, s, "alice")

	got, err := s.GetUser(ctx, bob.ID)
	if err != nil || got.Username != "bob" {
		t.Fatalf("get user: %+v %v", got, err)
	}
	if _, err := s.GetUser(ctx, uuid.New()); !domain.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
	if _, err := s.CreateUser(ctx, bob); !domain.IsCode(err, domain.CodeConflict) {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 || users[0].ID != alice.ID || users[1].ID != bob.ID {
		t.Fatalf("expected users ordered by username: %+v", users)
	}

	renamed := bob.Clone()
	renamed.Username = "robert"
	if _, err := s.UpdateUser(ctx, renamed); err != nil {
		t.Fatalf("update user: %v", err)
	}
	if got, _ := s.GetUser(ctx, bob.ID); got == nil || got.Username != "robert" {
		t.Fatalf("rename not visible: %+v", got)
	}

	// A caller that does not read first sends a zero CreatedAt.
	before, err := s.GetUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	out, err := s.UpdateUser(ctx, &domain.User{ID: alice.ID, Username: "alicia"})
	if err != nil {
		t.Fatalf("blind update user: %v", err)
	}
	if !out.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("update returned created_at %v, stored %v", out.CreatedAt, before.CreatedAt)
	}
	if got, _ := s.GetUser(ctx, alice.ID); got == nil || !got.CreatedAt.Equal(before.CreatedAt) || got.Username != "alicia" {
		t.Fatalf("created_at must survive an update: %+v (was %v)", got, before.CreatedAt)
	}
	if _, err := s.UpdateUser(ctx, &domain.User{ID: uuid.New(), Username: "ghost"}); !domain.IsNotFound(err) {
		t.Fatalf("expected not_found on update, got %v", err)
	}
}

func testValidateUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "U1")
	mustCreateUser(t, s, "U2")

	got, err := s.ValidateUser(ctx, "U1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected %s, got %s", u.ID, got.ID)
	}
	if _, err := s.ValidateUser(ctx, "u1"); !domain.IsNotFound(err) {
		t.Fatalf("username match is exact, got %v", err)
	}
	if _, err := s.ValidateUser(ctx, "nobody"); !domain.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}

	// Usernames are not unique; the first in list order wins.
	dup := mustCreateUser(t, s, "U1")
	got, err = s.ValidateUser(ctx, "U1")
	if err != nil {
		t.Fatalf("validate duplicate: %v", err)
	}
	want := u.ID
	if string(dup.ID[:]) < string(u.ID[:]) {
		want = dup.ID
	}
	if got.ID != want {
		t.Fatalf("expected first match %s, got %s", want, got.ID)
	}
}
