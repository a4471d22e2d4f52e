package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// RemoteConfig describes the upstream session service the pool
// authenticates against.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type PoolConfig struct {
	MaxSize                int `yaml:"max_size"`
	SessionLifetimeSeconds int `yaml:"session_lifetime_seconds"`
	ExpiryMarginSeconds    int `yaml:"expiry_margin_seconds"`
	MaxAcquireAttempts     int `yaml:"max_acquire_attempts"`
	RetryDelayMs           int `yaml:"retry_delay_ms"`
	PrewarmCount           int `yaml:"prewarm_count"`
	SweepIntervalSeconds   int `yaml:"sweep_interval_seconds"`
}

type Config struct {
	Listen      string       `yaml:"listen"`
	APIKey      string       `yaml:"api_key"`
	JournalPath string       `yaml:"journal_path"`
	Remote      RemoteConfig `yaml:"remote"`
	Pool        PoolConfig   `yaml:"pool"`
}

func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

func (p PoolConfig) SessionLifetime() time.Duration {
	return time.Duration(p.SessionLifetimeSeconds) * time.Second
}

func (p PoolConfig) ExpiryMargin() time.Duration {
	return time.Duration(p.ExpiryMarginSeconds) * time.Second
}

func (p PoolConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelayMs) * time.Millisecond
}

func (p PoolConfig) SweepInterval() time.Duration {
	return time.Duration(p.SweepIntervalSeconds) * time.Second
}

func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		Listen:      "127.0.0.1:8088",
		JournalPath: "./tokenpool.db",
		Remote: RemoteConfig{
			BaseURL:        "http://127.0.0.1:9000",
			TimeoutSeconds: 30,
		},
		Pool: PoolConfig{
			MaxSize:                4,
			SessionLifetimeSeconds: 1200,
			ExpiryMarginSeconds:    60,
			MaxAcquireAttempts:     10,
			RetryDelayMs:           500,
			PrewarmCount:           0,
			SweepIntervalSeconds:   60,
		},
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TOKENPOOL_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("TOKENPOOL_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("TOKENPOOL_JOURNAL_PATH"); v != "" {
		cfg.JournalPath = v
	}
	if v := os.Getenv("TOKENPOOL_REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("TOKENPOOL_REMOTE_USERNAME"); v != "" {
		cfg.Remote.Username = v
	}
	if v := os.Getenv("TOKENPOOL_REMOTE_PASSWORD"); v != "" {
		cfg.Remote.Password = v
	}
	if v := os.Getenv("TOKENPOOL_REMOTE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Remote.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("TOKENPOOL_POOL_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.MaxSize = n
		}
	}
	if v := os.Getenv("TOKENPOOL_SESSION_LIFETIME_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.SessionLifetimeSeconds = n
		}
	}
	if v := os.Getenv("TOKENPOOL_EXPIRY_MARGIN_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.ExpiryMarginSeconds = n
		}
	}
	if v := os.Getenv("TOKENPOOL_MAX_ACQUIRE_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.MaxAcquireAttempts = n
		}
	}
	if v := os.Getenv("TOKENPOOL_RETRY_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.RetryDelayMs = n
		}
	}
	if v := os.Getenv("TOKENPOOL_PREWARM_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.PrewarmCount = n
		}
	}
	if v := os.Getenv("TOKENPOOL_SWEEP_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.SweepIntervalSeconds = n
		}
	}
}
