package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("RETRO_CONFIG_FILE", "")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8000" || cfg.StoreMode != StoreModeMemory || cfg.EventBufferSize != 100 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.OptimisticLocking {
		t.Fatalf("optimistic locking must default off")
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retro.yaml")
	body := `
http_addr: ":9000"
store_mode: sqlite
sqlite_path: /tmp/board.db
access_token_ttl: 30m
vote_policy: open
cors_allow_origins: ["https://a.example.com"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RETRO_HTTP_ADDR", ":9100")
	t.Setenv("STORE_OPTIMISTIC_LOCKING", "true")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://b.example.com,https://c.example.com")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9100" {
		t.Fatalf("env should override file, got %q", cfg.HTTPAddr)
	}
	if cfg.StoreMode != StoreModeSQLite || cfg.SQLitePath != "/tmp/board.db" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.AccessTokenTTL != 30*time.Minute || cfg.VotePolicy != "open" || !cfg.OptimisticLocking {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.CORSAllowOrigins) != 2 || cfg.CORSAllowOrigins[1] != "https://c.example.com" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowOrigins)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("RETRO_CONFIG_FILE", "")
	t.Setenv("STORE_MODE", "mongo")
	t.Setenv("VOTE_POLICY", "anyone")
	_, err := LoadConfig("")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"STORE_MODE", "VOTE_POLICY"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidateRequiresBackendSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StoreMode = StoreModeRedis
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "REDIS_ADDR") {
		t.Fatalf("expected REDIS_ADDR error, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.StoreMode = StoreModePostgres
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "POSTGRES_DSN") {
		t.Fatalf("expected POSTGRES_DSN error, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.LogMode = "production"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET_KEY") {
		t.Fatalf("production must not run on the dev secret, got %v", err)
	}
}
