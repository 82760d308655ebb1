package store

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/retroboard-backend/internal/domain"
)

// MapError maps backend failures into domain error codes. Errors that
// already carry a code pass through unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var domErr *domain.Error
	if errors.As(err, &domErr) {
		return err
	}
	switch {
	case errors.Is(err, redis.Nil), errors.Is(err, gorm.ErrRecordNotFound):
		return domain.Wrap(domain.CodeNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.Wrap(domain.CodeConflict, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Wrap(domain.CodeRetryable, op, err)
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET), errors.Is(err, net.ErrClosed):
		return domain.Wrap(domain.CodeRetryable, op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.Wrap(domain.CodeRetryable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return domain.Wrap(domain.CodeConflict, op, err) // unique_violation
		case "40001", "40P01", "55P03":
			return domain.Wrap(domain.CodeRetryable, op, err) // serialization/deadlock/lock_not_available
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.HasPrefix(msg, "loading"), strings.HasPrefix(msg, "tryagain"), strings.HasPrefix(msg, "busy"):
		return domain.Wrap(domain.CodeRetryable, op, err)
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint"):
		return domain.Wrap(domain.CodeConflict, op, err)
	case strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection refused"):
		return domain.Wrap(domain.CodeRetryable, op, err)
	default:
		return domain.Wrap(domain.CodePersistence, op, err)
	}
}
