// Package store defines the persistence boundary for retros and users.
// Adapters live in subpackages and must behave identically; storetest holds
// the shared conformance suite.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/domain"
)

type RetroStore interface {
	GetRetro(ctx context.Context, id uuid.UUID) (*domain.Retro, error)
	ListRetros(ctx context.Context) ([]*domain.Retro, error)
	CreateRetro(ctx context.Context, retro *domain.Retro) (*domain.Retro, error)
	// UpdateRetro replaces the whole aggregate. Without optimistic locking the
	// last writer wins; with it, a stale Version is rejected with a conflict.
	UpdateRetro(ctx context.Context, retro *domain.Retro) (*domain.Retro, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	ValidateUser(ctx context.Context, username string) (*domain.User, error)
}

type Store interface {
	RetroStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

type Options struct {
	OptimisticLocking bool
	Now               func() time.Time
}

func (o Options) Clock() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return func() time.Time { return time.Now().UTC() }
}

// Operation names shared by adapters, decorators and metrics labels.
const (
	OpGetRetro     = "get_retro"
	OpListRetros   = "list_retros"
	OpCreateRetro  = "create_retro"
	OpUpdateRetro  = "update_retro"
	OpGetUser      = "get_user"
	OpListUsers    = "list_users"
	OpCreateUser   = "create_user"
	OpUpdateUser   = "update_user"
	OpValidateUser = "validate_user"
	OpPing         = "ping"
)
