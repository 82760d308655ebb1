// Package redisdoc stores retros and users as JSON documents in Redis
// hashes, one hash per collection keyed by id.
package redisdoc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/retroboard-backend/internal/data/store"
	"github.com/yungbote/retroboard-backend/internal/domain"
)

// Under last-write-wins a lost version race is retried this many times
// before the write is reported as retryable.
const maxVersionRaces = 16

var createRetroScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
return 1
`)

// KEYS: docs, versions. ARGV: id, expected version, document, new version.
// Returns -1 when the retro is missing, 0 on a version mismatch, 1 on write.
var replaceRetroScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[2], ARGV[1])
if not cur then
  return -1
end
if cur ~= ARGV[2] then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[4])
return 1
`)

var replaceUserScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

type Store struct {
	rdb    *redis.Client
	prefix string
	opts   store.Options
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// New wraps an existing client. Close closes it.
func New(rdb *redis.Client, prefix string, opts store.Options) (*Store, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("key prefix cannot be empty")
	}
	return &Store{rdb: rdb, prefix: prefix, opts: opts, now: opts.Clock()}, nil
}

func (s *Store) retrosKey() string   { return s.prefix + ":retros" }
func (s *Store) versionsKey() string { return s.prefix + ":retros:version" }
func (s *Store) usersKey() string    { return s.prefix + ":users" }

func (s *Store) GetRetro(ctx context.Context, id uuid.UUID) (*domain.Retro, error) {
	const op = "redisdoc.get_retro"
	raw, err := s.rdb.HGet(ctx, s.retrosKey(), id.String()).Result()
	if err == redis.Nil {
		return nil, domain.NotFound(op, "retro")
	}
	if err != nil {
		return nil, store.MapError(op, err)
	}
	return decodeRetro(op, raw)
}

func (s *Store) ListRetros(ctx context.Context) ([]*domain.Retro, error) {
	const op = "redisdoc.list_retros"
	raws, err := s.rdb.HVals(ctx, s.retrosKey()).Result()
	if err != nil {
		return nil, store.MapError(op, err)
	}
	out := make([]*domain.Retro, 0, len(raws))
	for _, raw := range raws {
		r, err := decodeRetro(op, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	store.SortRetros(out)
	return out, nil
}

func (s *Store) CreateRetro(ctx context.Context, retro *domain.Retro) (*domain.Retro, error) {
	const op = "redisdoc.create_retro"
	stored := store.FirstRevision(retro, s.now())
	doc, err := json.Marshal(stored)
	if err != nil {
		return nil, domain.Wrap(domain.CodePersistence, op, err)
	}
	created, err := createRetroScript.Run(ctx, s.rdb,
		[]string{s.retrosKey(), s.versionsKey()},
		stored.ID.String(), doc, stored.Version,
	).Int()
	if err != nil {
		return nil, store.MapError(op, err)
	}
	if created == 0 {
		return nil, domain.NewError(domain.CodeConflict, op, "retro already exists", nil)
	}
	return stored, nil
}

func (s *Store) UpdateRetro(ctx context.Context, retro *domain.Retro) (*domain.Retro, error) {
	const op = "redisdoc.update_retro"
	for race := 0; race < maxVersionRaces; race++ {
		current, err := s.rdb.HGet(ctx, s.versionsKey(), retro.ID.String()).Int64()
		if err == redis.Nil {
			return nil, domain.NotFound(op, "retro")
		}
		if err != nil {
			return nil, store.MapError(op, err)
		}
		if err := store.CheckVersion(op, s.opts.OptimisticLocking, retro.Version, current); err != nil {
			return nil, err
		}

		stored := store.NextRevision(retro, current, s.now())
		doc, err := json.Marshal(stored)
		if err != nil {
			return nil, domain.Wrap(domain.CodePersistence, op, err)
		}
		res, err := replaceRetroScript.Run(ctx, s.rdb,
			[]string{s.retrosKey(), s.versionsKey()},
			stored.ID.String(), strconv.FormatInt(current, 10), doc, stored.Version,
		).Int()
		if err != nil {
			return nil, store.MapError(op, err)
		}
		switch res {
		case 1:
			return stored, nil
		case -1:
			return nil, domain.NotFound(op, "retro")
		}
		if s.opts.OptimisticLocking {
			return nil, domain.NewError(domain.CodeConflict, op, "retro changed concurrently", nil)
		}
	}
	return nil, domain.NewError(domain.CodeRetryable, op, "too many concurrent writers", nil)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "redisdoc.get_user"
	raw, err := s.rdb.HGet(ctx, s.usersKey(), id.String()).Result()
	if err == redis.Nil {
		return nil, domain.NotFound(op, "user")
	}
	if err != nil {
		return nil, store.MapError(op, err)
	}
	return decodeUser(op, raw)
}

func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	const op = "redisdoc.list_users"
	raws, err := s.rdb.HVals(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, store.MapError(op, err)
	}
	out := make([]*domain.User, 0, len(raws))
	for _, raw := range raws {
		u, err := decodeUser(op, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	store.SortUsers(out)
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	const op = "redisdoc.create_user"
	stored := store.StampUser(user, s.now())
	doc, err := json.Marshal(stored)
	if err != nil {
		return nil, domain.Wrap(domain.CodePersistence, op, err)
	}
	ok, err := s.rdb.HSetNX(ctx, s.usersKey(), stored.ID.String(), doc).Result()
	if err != nil {
		return nil, store.MapError(op, err)
	}
	if !ok {
		return nil, domain.NewError(domain.CodeConflict, op, "user already exists", nil)
	}
	return stored, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	const op = "redisdoc.update_user"
	current, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	stored := store.StampUser(user, s.now())
	stored.CreatedAt = current.CreatedAt
	doc, err := json.Marshal(stored)
	if err != nil {
		return nil, domain.Wrap(domain.CodePersistence, op, err)
	}
	res, err := replaceUserScript.Run(ctx, s.rdb, []string{s.usersKey()}, stored.ID.String(), doc).Int()
	if err != nil {
		return nil, store.MapError(op, err)
	}
	if res == 0 {
		return nil, domain.NotFound(op, "user")
	}
	return stored, nil
}

// ValidateUser scans the whole users hash.
func (s *Store) ValidateUser(ctx context.Context, username string) (*domain.User, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if u := store.FirstByUsername(users, username); u != nil {
		return u, nil
	}
	return nil, domain.NotFound("redisdoc.validate_user", "user")
}

func (s *Store) Ping(ctx context.Context) error {
	return store.MapError("redisdoc.ping", s.rdb.Ping(ctx).Err())
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func decodeRetro(op, raw string) (*domain.Retro, error) {
	var r domain.Retro
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, domain.NewError(domain.CodePersistence, op, "corrupt retro document", err)
	}
	return &r, nil
}

func decodeUser(op, raw string) (*domain.User, error) {
	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, domain.NewError(domain.CodePersistence, op, "corrupt user document", err)
	}
	return &u, nil
}
