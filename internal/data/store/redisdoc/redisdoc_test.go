package redisdoc

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/retroboard-backend/internal/data/store"
	"github.com/yungbote/retroboard-backend/internal/data/store/storetest"
	"github.com/yungbote/retroboard-backend/internal/domain"
)

func setupTestStore(t *testing.T, opts store.Options) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	s, err := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", opts)
	require.NoError(t, err)
	return s, mr
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, opts store.Options) store.Store {
		s, _ := setupTestStore(t, opts)
		return s
	})
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, "x", store.Options{})
	assert.Error(t, err)

	_, err = New(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "  ", store.Options{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "prefix")
}

func TestDocumentLayout(t *testing.T) {
	s, mr := setupTestStore(t, store.Options{Now: storetest.Clock()})
	ctx := context.Background()

	r := storetest.NewRetro("Sprint 1", time.Time{})
	_, err := s.CreateRetro(ctx, r)
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:retros"))
	doc := mr.HGet("test:retros", r.ID.String())
	assert.Contains(t, doc, `"name":"Sprint 1"`)
	assert.Contains(t, doc, `"step":"Writing"`)
	assert.Equal(t, "1", mr.HGet("test:retros:version", r.ID.String()))

	next := r.Clone()
	next.Step = domain.StepGrouping
	_, err = s.UpdateRetro(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "2", mr.HGet("test:retros:version", r.ID.String()))
}

func TestCorruptDocumentIsPersistenceError(t *testing.T) {
	s, mr := setupTestStore(t, store.Options{})
	id := uuid.New()
	mr.HSet("test:retros", id.String(), "{not json")

	_, err := s.GetRetro(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, domain.CodePersistence, domain.CodeOf(err))
}

func TestUnavailableBackendIsRetryable(t *testing.T) {
	s, mr := setupTestStore(t, store.Options{})
	mr.Close()

	err := s.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.CodeRetryable, domain.CodeOf(err))
}

func TestVersionRaceUnderLastWriteWins(t *testing.T) {
	s, mr := setupTestStore(t, store.Options{Now: storetest.Clock()})
	ctx := context.Background()

	created, err := s.CreateRetro(ctx, storetest.NewRetro("race", time.Time{}))
	require.NoError(t, err)

	// Another writer bumps the version behind our back.
	mr.HSet("test:retros:version", created.ID.String(), "7")

	stale := created.Clone()
	stale.Name = "mine"
	out, err := s.UpdateRetro(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, int64(8), out.Version)
	assert.Equal(t, "mine", out.Name)
}
