package config

import (
	"errors"
	"strings"
	"time"

	platformconfig "github.com/example/study-spots/internal/platform/config"
)

type Config struct {
	RedisURL string        `koanf:"redis_url"`
	CacheTTL time.Duration `koanf:"cache_ttl"`

	ProviderBaseURL    string        `koanf:"provider_base_url"`
	ProviderAPIKey     string        `koanf:"provider_api_key"`
	ProviderCategories string        `koanf:"provider_categories"`
	ProviderLimit      int           `koanf:"provider_limit"`
	MaxRetries         int           `koanf:"provider_max_retries"`
	RetryBaseDelay     time.Duration `koanf:"provider_retry_base_delay"`
	CBFailureThreshold uint32        `koanf:"cb_failure_threshold"`
	CBTimeout          time.Duration `koanf:"cb_timeout"`
	DefaultRadius      int           `koanf:"default_radius"`
}

func Load() (Config, error) {
	cfg := Config{
		CacheTTL:           10 * time.Minute,
		ProviderBaseURL:    "https://api.yelp.com/v3",
		ProviderCategories: "coffee,cafes,libraries",
		ProviderLimit:      20,
		MaxRetries:         2,
		RetryBaseDelay:     200 * time.Millisecond,
		CBFailureThreshold: 5,
		CBTimeout:          30 * time.Second,
		DefaultRadius:      1600,
	}
	if err := platformconfig.LoadSection(&cfg); err != nil {
		return Config{}, err
	}
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.ProviderAPIKey = strings.TrimSpace(cfg.ProviderAPIKey)
	if cfg.ProviderLimit <= 0 || cfg.ProviderLimit > 50 {
		return Config{}, errors.New("PROVIDER_LIMIT must be between 1 and 50")
	}
	if cfg.CBFailureThreshold == 0 {
		cfg.CBFailureThreshold = 5
	}
	return cfg, nil
}
