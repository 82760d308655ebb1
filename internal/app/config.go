package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/retroboard-backend/internal/services"
)

type StoreMode string

const (
	StoreModeMemory   StoreMode = "memory"
	StoreModeRedis    StoreMode = "redis"
	StoreModePostgres StoreMode = "postgres"
	StoreModeSQLite   StoreMode = "sqlite"
)

func (m StoreMode) Valid() bool {
	switch m {
	case StoreModeMemory, StoreModeRedis, StoreModePostgres, StoreModeSQLite:
		return true
	}
	return false
}

const devJWTSecret = "defaultsecret"

// Config is read from an optional YAML file first; environment variables
// override whatever the file set.
type Config struct {
	HTTPAddr    string `yaml:"http_addr" env:"RETRO_HTTP_ADDR"`
	LogMode     string `yaml:"log_mode" env:"LOG_MODE"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	Environment string `yaml:"environment" env:"RETRO_ENV"`

	JWTSecretKey   string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL"`

	StoreMode          StoreMode `yaml:"store_mode" env:"STORE_MODE"`
	RedisAddr          string    `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword      string    `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB            int       `yaml:"redis_db" env:"REDIS_DB"`
	RedisKeyPrefix     string    `yaml:"redis_key_prefix" env:"REDIS_KEY_PREFIX"`
	PostgresDSN        string    `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	SQLitePath         string    `yaml:"sqlite_path" env:"SQLITE_PATH"`
	AutoMigrate        bool      `yaml:"auto_migrate" env:"STORE_AUTO_MIGRATE"`
	OptimisticLocking  bool      `yaml:"optimistic_locking" env:"STORE_OPTIMISTIC_LOCKING"`
	StoreRetryAttempts int       `yaml:"store_retry_attempts" env:"STORE_RETRY_ATTEMPTS"`

	MutationAttempts int           `yaml:"mutation_attempts" env:"RETRO_MUTATION_ATTEMPTS"`
	VotePolicy       string        `yaml:"vote_policy" env:"VOTE_POLICY"`
	EventBufferSize  int           `yaml:"event_buffer_size" env:"EVENT_BUFFER_SIZE"`
	SSEHeartbeat     time.Duration `yaml:"sse_heartbeat" env:"SSE_HEARTBEAT"`

	CORSAllowOrigins []string `yaml:"cors_allow_origins" env:"CORS_ALLOW_ORIGINS" envSeparator:","`

	MetricsEnabled  bool    `yaml:"metrics_enabled" env:"METRICS_ENABLED"`
	OtelEnabled     bool    `yaml:"otel_enabled" env:"OTEL_ENABLED"`
	OtelEndpoint    string  `yaml:"otel_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelInsecure    bool    `yaml:"otel_insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
	OtelSampleRatio float64 `yaml:"otel_sample_ratio" env:"OTEL_SAMPLER_RATIO"`
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr:           ":8000",
		LogMode:            "development",
		ServiceName:        "retroboard",
		Environment:        "local",
		JWTSecretKey:       devJWTSecret,
		AccessTokenTTL:     time.Hour,
		StoreMode:          StoreModeMemory,
		RedisKeyPrefix:     "retro",
		SQLitePath:         "retro.db",
		AutoMigrate:        true,
		StoreRetryAttempts: 3,
		MutationAttempts:   3,
		VotePolicy:         string(services.VotePolicyCreatorOnly),
		EventBufferSize:    100,
		SSEHeartbeat:       15 * time.Second,
		MetricsEnabled:     true,
		OtelSampleRatio:    1,
	}
}

// LoadConfig applies defaults, then the YAML file at path (or
// RETRO_CONFIG_FILE when path is empty), then the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		path = os.Getenv("RETRO_CONFIG_FILE")
	}
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreMode = StoreMode(strings.ToLower(strings.TrimSpace(string(cfg.StoreMode))))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	mode := strings.ToLower(strings.TrimSpace(c.LogMode))
	return mode == "production" || mode == "prod"
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("RETRO_HTTP_ADDR is required"))
	}
	if strings.TrimSpace(c.JWTSecretKey) == "" || (c.IsProduction() && c.JWTSecretKey == devJWTSecret) {
		errs = append(errs, errors.New("JWT_SECRET_KEY must be set"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if !c.StoreMode.Valid() {
		errs = append(errs, fmt.Errorf("STORE_MODE %q is not one of memory, redis, postgres, sqlite", c.StoreMode))
	}
	switch c.StoreMode {
	case StoreModeRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for STORE_MODE=redis"))
		}
	case StoreModePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for STORE_MODE=postgres"))
		}
	case StoreModeSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for STORE_MODE=sqlite"))
		}
	}
	if c.StoreRetryAttempts < 1 {
		errs = append(errs, errors.New("STORE_RETRY_ATTEMPTS must be at least 1"))
	}
	if c.MutationAttempts < 1 {
		errs = append(errs, errors.New("RETRO_MUTATION_ATTEMPTS must be at least 1"))
	}
	if c.EventBufferSize < 1 {
		errs = append(errs, errors.New("EVENT_BUFFER_SIZE must be at least 1"))
	}
	if c.SSEHeartbeat <= 0 {
		errs = append(errs, errors.New("SSE_HEARTBEAT must be positive"))
	}
	if _, err := services.ParseVotePolicy(c.VotePolicy); err != nil {
		errs = append(errs, fmt.Errorf("VOTE_POLICY: %w", err))
	}
	if c.OtelSampleRatio < 0 || c.OtelSampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLER_RATIO must be within [0, 1]"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
