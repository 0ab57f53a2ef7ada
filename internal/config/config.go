// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WorkerConfig tunes the execution engine. The per-job wall clock is bounded
// by SubmitAttempts backoffs plus PollBudget.
type WorkerConfig struct {
	MaxConcurrent  int           `yaml:"max_concurrent"`  // pool slots, process-wide
	ClaimInterval  time.Duration `yaml:"claim_interval"`  // queue poll cadence
	PollInterval   time.Duration `yaml:"poll_interval"`   // provider poll cadence
	PollBudget     time.Duration `yaml:"poll_budget"`     // wall-clock cap per async job
	SubmitAttempts int           `yaml:"submit_attempts"` // retry budget for submit
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffCap     time.Duration `yaml:"backoff_cap"`
	CleanupGrace   time.Duration `yaml:"cleanup_grace"` // terminal-job retention
}

type ProviderLimitConfig struct {
	Requests int           `yaml:"requests"` // per provider per window, 0 = unlimited
	Window   time.Duration `yaml:"window"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"` // 16/24/32 bytes, AES-GCM
	JWTSecret     string `yaml:"jwt_secret"`
}

type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Worker        WorkerConfig        `yaml:"worker"`
	ProviderLimit ProviderLimitConfig `yaml:"provider_limit"`
	Security      SecurityConfig      `yaml:"security"`
	Notify        NotifyConfig        `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Security.JWTSecret == "" {
		return nil, errors.New("security.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	w := &cfg.Worker
	if w.MaxConcurrent <= 0 {
		w.MaxConcurrent = 5
	}
	if w.ClaimInterval <= 0 {
		w.ClaimInterval = 500 * time.Millisecond
	}
	if w.PollInterval <= 0 {
		w.PollInterval = 5 * time.Second
	}
	if w.PollBudget <= 0 {
		w.PollBudget = 10 * time.Minute
	}
	if w.SubmitAttempts <= 0 {
		w.SubmitAttempts = 3
	}
	if w.BackoffBase <= 0 {
		w.BackoffBase = 2 * time.Second
	}
	if w.BackoffCap <= 0 {
		w.BackoffCap = 30 * time.Second
	}
	if w.CleanupGrace <= 0 {
		w.CleanupGrace = 24 * time.Hour
	}
	if cfg.ProviderLimit.Window <= 0 {
		cfg.ProviderLimit.Window = time.Minute
	}
}
