// Package memory is the process-local store adapter.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/data/store"
	"github.com/yungbote/retroboard-backend/internal/domain"
)

// Store keeps each collection behind its own RW lock. Values are copied on
// the way in and on the way out so callers never share state.
type Store struct {
	opts store.Options
	now  func() time.Time

	retroMu sync.RWMutex
	retros  map[uuid.UUID]*domain.Retro

	userMu sync.RWMutex
	users  map[uuid.UUID]*domain.User
}

var _ store.Store = (*Store)(nil)

func New(opts store.Options) *Store {
	return &Store{
		opts:   opts,
		now:    opts.Clock(),
		retros: map[uuid.UUID]*domain.Retro{},
		users:  map[uuid.UUID]*domain.User{},
	}
}

func (s *Store) GetRetro(ctx context.Context, id uuid.UUID) (*domain.Retro, error) {
	s.retroMu.RLock()
	defer s.retroMu.RUnlock()
	r, ok := s.retros[id]
	if !ok {
		return nil, domain.NotFound("memory.get_retro", "retro")
	}
	return r.Clone(), nil
}

func (s *Store) ListRetros(ctx context.Context) ([]*domain.Retro, error) {
	s.retroMu.RLock()
	out := make([]*domain.Retro, 0, len(s.retros))
	for _, r := range s.retros {
		out = append(out, r.Clone())
	}
	s.retroMu.RUnlock()
	store.SortRetros(out)
	return out, nil
}

func (s *Store) CreateRetro(ctx context.Context, retro *domain.Retro) (*domain.Retro, error) {
	s.retroMu.Lock()
	defer s.retroMu.Unlock()
	if _, exists := s.retros[retro.ID]; exists {
		return nil, domain.NewError(domain.CodeConflict, "memory.create_retro", "retro already exists", nil)
	}
	stored := store.FirstRevision(retro, s.now())
	s.retros[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *Store) UpdateRetro(ctx context.Context, retro *domain.Retro) (*domain.Retro, error) {
	const op = "memory.update_retro"
	s.retroMu.Lock()
	defer s.retroMu.Unlock()
	current, ok := s.retros[retro.ID]
	if !ok {
		return nil, domain.NotFound(op, "retro")
	}
	if err := store.CheckVersion(op, s.opts.OptimisticLocking, retro.Version, current.Version); err != nil {
		return nil, err
	}
	stored := store.NextRevision(retro, current.Version, s.now())
	s.retros[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.userMu.RLock()
	defer s.userMu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.NotFound("memory.get_user", "user")
	}
	return u.Clone(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	s.userMu.RLock()
	out := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	s.userMu.RUnlock()
	store.SortUsers(out)
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.userMu.Lock()
	defer s.userMu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return nil, domain.NewError(domain.CodeConflict, "memory.create_user", "user already exists", nil)
	}
	stored := store.StampUser(user, s.now())
	s.users[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *Store) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.userMu.Lock()
	defer s.userMu.Unlock()
	current, ok := s.users[user.ID]
	if !ok {
		return nil, domain.NotFound("memory.update_user", "user")
	}
	stored := store.StampUser(user, s.now())
	stored.CreatedAt = current.CreatedAt
	s.users[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *Store) ValidateUser(ctx context.Context, username string) (*domain.User, error) {
	users, _ := s.ListUsers(ctx)
	if u := store.FirstByUsername(users, username); u != nil {
		return u, nil
	}
	return nil, domain.NotFound("memory.validate_user", "user")
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }
