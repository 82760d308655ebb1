package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/retroboard-backend/internal/data/db"
	"github.com/yungbote/retroboard-backend/internal/data/store"
	"github.com/yungbote/retroboard-backend/internal/data/store/memory"
	"github.com/yungbote/retroboard-backend/internal/data/store/redisdoc"
	"github.com/yungbote/retroboard-backend/internal/data/store/sqldoc"
	"github.com/yungbote/retroboard-backend/internal/observability"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
)

type StoreProviderBootstrapErrorCode string

const (
	StoreProviderBootstrapErrorInvalidMode   StoreProviderBootstrapErrorCode = "invalid_mode"
	StoreProviderBootstrapErrorConnectFailed StoreProviderBootstrapErrorCode = "connect_failed"
	StoreProviderBootstrapErrorMigrateFailed StoreProviderBootstrapErrorCode = "migrate_failed"
)

type StoreProviderBootstrapError struct {
	Code  StoreProviderBootstrapErrorCode
	Mode  StoreMode
	Cause error
}

func (e *StoreProviderBootstrapError) Error() string {
	if e == nil {
		return "store bootstrap failed"
	}
	return fmt.Sprintf("store bootstrap failed (code=%s mode=%q): %v", e.Code, e.Mode, e.Cause)
}

func (e *StoreProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

const storeConnectTimeout = 5 * time.Second

// resolveStore builds the backend named by cfg.StoreMode, wraps every backend
// call with metrics and tracing, and retries transient failures on top.
func resolveStore(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (store.Store, error) {
	log.Info("Selecting store provider", "mode", cfg.StoreMode, "optimistic_locking", cfg.OptimisticLocking)
	inner, err := openStore(ctx, log, cfg)
	if err != nil {
		var be *StoreProviderBootstrapError
		if !errors.As(err, &be) {
			be = &StoreProviderBootstrapError{Code: StoreProviderBootstrapErrorConnectFailed, Mode: cfg.StoreMode, Cause: err}
		}
		log.Error("Store provider bootstrap failed", "mode", cfg.StoreMode, "error_code", be.Code, "error", be)
		return nil, be
	}
	instrumented := store.Instrumented(inner, string(cfg.StoreMode), metrics)
	return store.Retrying(instrumented, cfg.StoreRetryAttempts, log, metrics), nil
}

func openStore(ctx context.Context, log *logger.Logger, cfg Config) (store.Store, error) {
	opts := store.Options{OptimisticLocking: cfg.OptimisticLocking}
	switch cfg.StoreMode {
	case StoreModeMemory:
		return memory.New(opts), nil

	case StoreModeRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     strings.TrimSpace(cfg.RedisAddr),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, storeConnectTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		log.Info("Connected to Redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "prefix", cfg.RedisKeyPrefix)
		return redisdoc.New(rdb, cfg.RedisKeyPrefix, opts)

	case StoreModePostgres, StoreModeSQLite:
		gdb, err := openSQL(log, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := db.AutoMigrateAll(log, gdb); err != nil {
				closeSQL(gdb)
				return nil, &StoreProviderBootstrapError{Code: StoreProviderBootstrapErrorMigrateFailed, Mode: cfg.StoreMode, Cause: err}
			}
		}
		return sqldoc.New(gdb, opts)

	default:
		return nil, &StoreProviderBootstrapError{
			Code:  StoreProviderBootstrapErrorInvalidMode,
			Mode:  cfg.StoreMode,
			Cause: fmt.Errorf("unsupported store mode %q", cfg.StoreMode),
		}
	}
}

func openSQL(log *logger.Logger, cfg Config) (*gorm.DB, error) {
	if cfg.StoreMode == StoreModePostgres {
		return db.OpenPostgres(log, cfg.PostgresDSN)
	}
	return db.OpenSQLite(log, cfg.SQLitePath)
}

func closeSQL(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Migrate runs schema migration for the SQL modes and is a no-op otherwise.
func Migrate(log *logger.Logger, cfg Config) error {
	if cfg.StoreMode != StoreModePostgres && cfg.StoreMode != StoreModeSQLite {
		log.Info("Store mode needs no migration", "mode", cfg.StoreMode)
		return nil
	}
	gdb, err := openSQL(log, cfg)
	if err != nil {
		return &StoreProviderBootstrapError{Code: StoreProviderBootstrapErrorConnectFailed, Mode: cfg.StoreMode, Cause: err}
	}
	defer closeSQL(gdb)
	if err := db.AutoMigrateAll(log, gdb); err != nil {
		return &StoreProviderBootstrapError{Code: StoreProviderBootstrapErrorMigrateFailed, Mode: cfg.StoreMode, Cause: err}
	}
	return nil
}
