package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration. It merges file defaults and
// environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	AuthorityBaseURL        string
	AuthorityTimeout        time.Duration
	AuthorityMaxAttempts    int
	AuthorityInitialBackoff time.Duration

	CheckoutBaseURL string

	StatusCacheTTL         time.Duration
	SubscriptionStaleAfter time.Duration
	TrialDuration          time.Duration
	LedgerCap              int
	RefreshInterval        time.Duration
	BurstInterval          time.Duration
	BurstDeadline          time.Duration

	MaxDBConns int32
}

// configFile mirrors the YAML schema used by configs/default.yaml. It is
// intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Authority struct {
		BaseURL     string `yaml:"base_url"`
		CheckoutURL string `yaml:"checkout_url"`
	} `yaml:"authority"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:               "entitlement-service",
		HTTPPort:                8080,
		GRPCPort:                9090,
		AuthorityBaseURL:        "https://api.threadlens.app",
		AuthorityTimeout:        15 * time.Second,
		AuthorityMaxAttempts:    3,
		AuthorityInitialBackoff: time.Second,
		CheckoutBaseURL:         "https://threadlens.app/checkout",
		StatusCacheTTL:          30 * time.Second,
		SubscriptionStaleAfter:  24 * time.Hour,
		TrialDuration:           72 * time.Hour,
		LedgerCap:               100,
		RefreshInterval:         time.Minute,
		BurstInterval:           3 * time.Second,
		BurstDeadline:           2 * time.Minute,
		MaxDBConns:              10,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Authority.BaseURL != "" {
			cfg.AuthorityBaseURL = f.Authority.BaseURL
		}
		if f.Authority.CheckoutURL != "" {
			cfg.CheckoutBaseURL = f.Authority.CheckoutURL
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.AuthorityBaseURL = envOrDefault("AUTHORITY_BASE_URL", cfg.AuthorityBaseURL)
	cfg.CheckoutBaseURL = envOrDefault("CHECKOUT_BASE_URL", cfg.CheckoutBaseURL)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.AuthorityMaxAttempts = envInt("AUTHORITY_MAX_ATTEMPTS", cfg.AuthorityMaxAttempts)
	cfg.LedgerCap = envInt("USAGE_LEDGER_CAP", cfg.LedgerCap)

	cfg.AuthorityTimeout = time.Duration(envInt("AUTHORITY_TIMEOUT_SECONDS", int(cfg.AuthorityTimeout.Seconds()))) * time.Second
	cfg.AuthorityInitialBackoff = time.Duration(envInt("AUTHORITY_BACKOFF_MS", int(cfg.AuthorityInitialBackoff.Milliseconds()))) * time.Millisecond
	cfg.StatusCacheTTL = time.Duration(envInt("STATUS_CACHE_TTL_SECONDS", int(cfg.StatusCacheTTL.Seconds()))) * time.Second
	cfg.SubscriptionStaleAfter = time.Duration(envInt("SUBSCRIPTION_STALE_HOURS", int(cfg.SubscriptionStaleAfter.Hours()))) * time.Hour
	cfg.TrialDuration = time.Duration(envInt("TRIAL_DURATION_HOURS", int(cfg.TrialDuration.Hours()))) * time.Hour
	cfg.RefreshInterval = time.Duration(envInt("REFRESH_INTERVAL_SECONDS", int(cfg.RefreshInterval.Seconds()))) * time.Second
	cfg.BurstInterval = time.Duration(envInt("BURST_INTERVAL_SECONDS", int(cfg.BurstInterval.Seconds()))) * time.Second
	cfg.BurstDeadline = time.Duration(envInt("BURST_DEADLINE_SECONDS", int(cfg.BurstDeadline.Seconds()))) * time.Second

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.AuthorityBaseURL == "" {
		return Config{}, fmt.Errorf("missing AUTHORITY_BASE_URL")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
