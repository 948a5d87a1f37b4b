package config

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AccessTokenTTL != 24*time.Hour || cfg.BcryptCost != bcrypt.DefaultCost {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("BCRYPT_COST", "4")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AccessTokenTTL != 15*time.Minute || cfg.BcryptCost != 4 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoad_Rejects(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "-1m")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative ttl")
	}
	t.Setenv("ACCESS_TOKEN_TTL", "1m")
	t.Setenv("BCRYPT_COST", "99")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for cost out of range")
	}
}
