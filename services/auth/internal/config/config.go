package config

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	platformconfig "github.com/example/study-spots/internal/platform/config"
)

type Config struct {
	AccessTokenTTL time.Duration `koanf:"access_token_ttl"`
	BcryptCost     int           `koanf:"bcrypt_cost"`
}

func Load() (Config, error) {
	cfg := Config{
		AccessTokenTTL: 24 * time.Hour,
		BcryptCost:     bcrypt.DefaultCost,
	}
	if err := platformconfig.LoadSection(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL <= 0 {
		return Config{}, errors.New("ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, errors.New("BCRYPT_COST out of range")
	}
	return cfg, nil
}
