// Package config loads the orchestration core's runtime configuration from
// environment variables, once, behind a sync.Once guard.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"fightclaw/internal/app"
)

// Config bundles every environment-sourced knob the process needs at
// startup. Each field is read from one environment variable, except
// ActorConfig, which groups the per-match tuning variables;
// SUBSCRIBER_BACKLOG_MAX fills both ActorConfig.SubscriberBacklog and
// SubBacklogMax.
type Config struct {
	Port          string
	DatabaseURL   string
	APIKeyPepper  string
	AdminKey      string
	CORSOrigin    string
	LogLevel      string
	ActorConfig   app.ActorConfig
	EventWaitMax  time.Duration
	BufferCapMax  int
	SubBacklogMax int
}

var (
	cfg      *Config
	loadOnce sync.Once
	loadErr  error
)

// Load reads and validates the environment, populating the global Config.
// It is idempotent: subsequent calls return the result of the first call.
func Load() (*Config, error) {
	loadOnce.Do(func() {
		cfg, loadErr = load()
	})
	return cfg, loadErr
}

// Get returns the already-loaded Config. Every entry point (cmd/fightclawd,
// tests that need config) is expected to call Load at startup; Get panics
// if that never happened.
func Get() *Config {
	if cfg == nil {
		panic("config: Get called before Load")
	}
	return cfg
}

func load() (*Config, error) {
	pepper := os.Getenv("API_KEY_PEPPER")
	if pepper == "" {
		return nil, fmt.Errorf("config: API_KEY_PEPPER is required")
	}
	adminKey := os.Getenv("ADMIN_KEY")
	if adminKey == "" {
		return nil, fmt.Errorf("config: ADMIN_KEY is required")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}

	turnTimeout, err := durationMsEnv("MATCH_TURN_TIMEOUT_MS", app.DefaultTurnTimeout)
	if err != nil {
		return nil, err
	}
	disconnectGrace, err := durationMsEnv("MATCH_DISCONNECT_GRACE_MS", app.DefaultDisconnectGrace)
	if err != nil {
		return nil, err
	}
	eventWaitMax, err := durationSecEnv("EVENT_WAIT_TIMEOUT_MAX_S", app.DefaultEventWaitMax)
	if err != nil {
		return nil, err
	}
	bufferCapMax, err := intEnv("PER_AGENT_EVENT_BUFFER_MAX", app.DefaultPerAgentBufferCap)
	if err != nil {
		return nil, err
	}
	subBacklogMax, err := intEnv("SUBSCRIBER_BACKLOG_MAX", app.DefaultSubscriberBacklog)
	if err != nil {
		return nil, err
	}
	eloK, err := floatEnv("MATCH_ELO_K", app.DefaultEloK)
	if err != nil {
		return nil, err
	}
	idempotencyRetention, err := durationMsEnv("MATCH_IDEMPOTENCY_RETENTION_MS", app.DefaultIdempotencyRetention)
	if err != nil {
		return nil, err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		Port:         port,
		DatabaseURL:  dbURL,
		APIKeyPepper: pepper,
		AdminKey:     adminKey,
		CORSOrigin:   os.Getenv("CORS_ORIGIN"),
		LogLevel:     envOr("LOG_LEVEL", "info"),
		ActorConfig: app.ActorConfig{
			TurnTimeout:          turnTimeout,
			DisconnectGrace:      disconnectGrace,
			SubscriberBacklog:    subBacklogMax,
			IdempotencyRetention: idempotencyRetention,
			EloK:                 eloK,
		},
		EventWaitMax:  eventWaitMax,
		BufferCapMax:  bufferCapMax,
		SubBacklogMax: subBacklogMax,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationMsEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer number of milliseconds: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func durationSecEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	s, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer number of seconds: %w", key, err)
	}
	return time.Duration(s) * time.Second, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a number: %w", key, err)
	}
	return f, nil
}
