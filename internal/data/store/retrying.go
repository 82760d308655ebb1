package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/domain"
	"github.com/yungbote/retroboard-backend/internal/observability"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
)

type retryingStore struct {
	inner    Store
	attempts uint
	log      *logger.Logger
	metrics  *observability.Metrics
	initial  time.Duration
}

// Retrying retries calls that fail with CodeRetryable, up to attempts tries
// in total, with exponential backoff. Every other error is returned as is.
func Retrying(inner Store, attempts int, log *logger.Logger, metrics *observability.Metrics) Store {
	if attempts <= 1 {
		return inner
	}
	return &retryingStore{
		inner:    inner,
		attempts: uint(attempts),
		log:      log.With("service", "RetryingStore"),
		metrics:  metrics,
		initial:  50 * time.Millisecond,
	}
}

func do[T any](ctx context.Context, s *retryingStore, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initial
	b.MaxInterval = 2 * time.Second

	return backoff.Retry(ctx, func() (T, error) {
		out, err := fn()
		if err != nil && !domain.IsCode(err, domain.CodeRetryable) {
			return out, backoff.Permanent(err)
		}
		return out, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.attempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.metrics.IncStoreRetry(op)
			s.log.Warn("store operation retrying", "op", op, "wait", wait, "error", err)
		}),
	)
}

func (s *retryingStore) GetRetro(ctx context.Context, id uuid.UUID) (*domain.Retro, error) {
	return do(ctx, s, OpGetRetro, func() (*domain.Retro, error) { return s.inner.GetRetro(ctx, id) })
}

func (s *retryingStore) ListRetros(ctx context.Context) ([]*domain.Retro, error) {
	return do(ctx, s, OpListRetros, func() ([]*domain.Retro, error) { return s.inner.ListRetros(ctx) })
}

// CreateRetro treats a conflict that follows a failed attempt as the earlier
// attempt having landed, and returns the stored retro if it still matches.
func (s *retryingStore) CreateRetro(ctx context.Context, retro *domain.Retro) (*domain.Retro, error) {
	var ambiguous bool
	return do(ctx, s, OpCreateRetro, func() (*domain.Retro, error) {
		out, err := s.inner.CreateRetro(ctx, retro)
		if ambiguous && domain.IsCode(err, domain.CodeConflict) {
			if stored, ok := s.landedRetro(ctx, retro, 1); ok {
				return stored, nil
			}
		}
		ambiguous = ambiguous || domain.IsCode(err, domain.CodeRetryable)
		return out, err
	})
}

// UpdateRetro resolves a conflict after a failed attempt the same way: the
// write counts as applied when the stored revision is exactly the one it
// would have produced.
func (s *retryingStore) UpdateRetro(ctx context.Context, retro *domain.Retro) (*domain.Retro, error) {
	var ambiguous bool
	return do(ctx, s, OpUpdateRetro, func() (*domain.Retro, error) {
		out, err := s.inner.UpdateRetro(ctx, retro)
		if ambiguous && domain.IsCode(err, domain.CodeConflict) {
			if stored, ok := s.landedRetro(ctx, retro, retro.Version+1); ok {
				return stored, nil
			}
		}
		ambiguous = ambiguous || domain.IsCode(err, domain.CodeRetryable)
		return out, err
	})
}

func (s *retryingStore) landedRetro(ctx context.Context, written *domain.Retro, version int64) (*domain.Retro, bool) {
	stored, err := s.inner.GetRetro(ctx, written.ID)
	if err != nil || stored.Version != version || !SameRetroContent(stored, written) {
		return nil, false
	}
	s.log.Info("store write landed before a transient failure", "retro_id", written.ID, "version", version)
	return stored, true
}

func (s *retryingStore) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return do(ctx, s, OpGetUser, func() (*domain.User, error) { return s.inner.GetUser(ctx, id) })
}

func (s *retryingStore) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return do(ctx, s, OpListUsers, func() ([]*domain.User, error) { return s.inner.ListUsers(ctx) })
}

func (s *retryingStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	var ambiguous bool
	return do(ctx, s, OpCreateUser, func() (*domain.User, error) {
		out, err := s.inner.CreateUser(ctx, user)
		if ambiguous && domain.IsCode(err, domain.CodeConflict) {
			if stored, gerr := s.inner.GetUser(ctx, user.ID); gerr == nil && stored.Username == user.Username {
				return stored, nil
			}
		}
		ambiguous = ambiguous || domain.IsCode(err, domain.CodeRetryable)
		return out, err
	})
}

func (s *retryingStore) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	return do(ctx, s, OpUpdateUser, func() (*domain.User, error) { return s.inner.UpdateUser(ctx, user) })
}

func (s *retryingStore) ValidateUser(ctx context.Context, username string) (*domain.User, error) {
	return do(ctx, s, OpValidateUser, func() (*domain.User, error) { return s.inner.ValidateUser(ctx, username) })
}

func (s *retryingStore) Ping(ctx context.Context) error {
	_, err := do(ctx, s, OpPing, func() (struct{}, error) { return struct{}{}, s.inner.Ping(ctx) })
	return err
}

func (s *retryingStore) Close() error { return s.inner.Close() }
