package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/domain"
	"github.com/yungbote/retroboard-backend/internal/observability"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
)

func roundTrip(t *testing.T, cfg Config) {
	t.Helper()
	m := observability.NewMetrics()
	st, err := resolveStore(context.Background(), logger.Nop(), cfg, m)
	if err != nil {
		t.Fatalf("resolve %s: %v", cfg.StoreMode, err)
	}
	defer st.Close()

	id := uuid.New()
	if _, err := st.CreateRetro(context.Background(), &domain.Retro{ID: id, Name: "Sprint 1", Step: domain.StepWriting, Lanes: domain.DefaultLanes()}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.GetRetro(context.Background(), id); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if got := m.StoreOperations(string(cfg.StoreMode), "get_retro", "ok"); got != 1 {
		t.Fatalf("store metrics not wired, got %v", got)
	}
}

func TestResolveStoreMemory(t *testing.T) {
	cfg := DefaultConfig()
	roundTrip(t, cfg)
}

func TestResolveStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.StoreMode = StoreModeRedis
	cfg.RedisAddr = mr.Addr()
	roundTrip(t, cfg)
}

func TestResolveStoreSQLite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StoreMode = StoreModeSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "retro.db")
	roundTrip(t, cfg)
}

func TestResolveStoreInvalidMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StoreMode = StoreMode("mongo")
	_, err := resolveStore(context.Background(), logger.Nop(), cfg, nil)
	var got *StoreProviderBootstrapError
	if !errors.As(err, &got) {
		t.Fatalf("expected StoreProviderBootstrapError, got=%T", err)
	}
	if got.Code != StoreProviderBootstrapErrorInvalidMode {
		t.Fatalf("code: want=%q got=%q", StoreProviderBootstrapErrorInvalidMode, got.Code)
	}
}

func TestResolveStoreRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := DefaultConfig()
	cfg.StoreMode = StoreModeRedis
	cfg.RedisAddr = addr
	_, err := resolveStore(context.Background(), logger.Nop(), cfg, nil)
	var got *StoreProviderBootstrapError
	if !errors.As(err, &got) {
		t.Fatalf("expected StoreProviderBootstrapError, got=%T", err)
	}
	if got.Code != StoreProviderBootstrapErrorConnectFailed {
		t.Fatalf("code: want=%q got=%q", StoreProviderBootstrapErrorConnectFailed, got.Code)
	}
}

func TestMigrateSQLite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StoreMode = StoreModeSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "retro.db")
	if err := Migrate(logger.Nop(), cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Migrate(logger.Nop(), DefaultConfig()); err != nil {
		t.Fatalf("memory migrate should be a no-op: %v", err)
	}
}
