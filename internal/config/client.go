package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultBaseURL        = "http://localhost:8080/api/v1"
	defaultTokenStore     = "sqlite"
	defaultCallTimeout    = 30 * time.Second
	defaultMaxPINFailures = 5
	defaultPINLockout     = 30 * time.Second
)

// Token store backends accepted by NENA_TOKEN_STORE.
const (
	TokenStoreMemory = "memory"
	TokenStoreSQLite = "sqlite"
	TokenStoreRedis  = "redis"
)

// ClientConfig configures the terminal client.
type ClientConfig struct {
	BaseURL        string
	TokenStore     string
	TokenPath      string
	RedisURL       string
	DeviceID       string
	CallTimeout    time.Duration
	MaxPINFailures int
	PINLockout     time.Duration
	LogLevel       string
}

// LoadClient reads NENA_* variables.
func LoadClient() (ClientConfig, error) {
	cfg := ClientConfig{
		BaseURL:    strings.TrimRight(getEnv("NENA_BASE_URL", defaultBaseURL), "/"),
		TokenStore: strings.ToLower(getEnv("NENA_TOKEN_STORE", defaultTokenStore)),
		TokenPath:  os.Getenv("NENA_TOKEN_PATH"),
		RedisURL:   os.Getenv("NENA_REDIS_URL"),
		DeviceID:   getEnv("NENA_DEVICE_ID", "default"),
		LogLevel:   strings.ToLower(getEnv("LOG_LEVEL", "warn")),
	}

	var err error
	if cfg.CallTimeout, err = getDuration("NENA_CALL_TIMEOUT", defaultCallTimeout); err != nil {
		return ClientConfig{}, err
	}
	if cfg.MaxPINFailures, err = getInt("NENA_MAX_PIN_FAILURES", defaultMaxPINFailures); err != nil {
		return ClientConfig{}, err
	}
	if cfg.PINLockout, err = getDuration("NENA_PIN_LOCKOUT", defaultPINLockout); err != nil {
		return ClientConfig{}, err
	}

	switch cfg.TokenStore {
	case TokenStoreMemory:
	case TokenStoreSQLite:
		if cfg.TokenPath == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return ClientConfig{}, fmt.Errorf("resolve token path: %w", err)
			}
			cfg.TokenPath = filepath.Join(dir, "nena", "token.db")
		}
	case TokenStoreRedis:
		if cfg.RedisURL == "" {
			return ClientConfig{}, fmt.Errorf("NENA_REDIS_URL must be set when NENA_TOKEN_STORE=redis")
		}
	default:
		return ClientConfig{}, fmt.Errorf("unknown NENA_TOKEN_STORE %q", cfg.TokenStore)
	}

	return cfg, nil
}
