// Package config loads service configuration in three layers: struct
// defaults, an optional YAML file, then environment variables. Keys are flat
// and match the environment variable name lower-cased (HTTP_ADDR -> http_addr),
// so the same name works in the YAML file and in the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

var DefaultPaths = []string{"config.yaml", "config.yml"}

type HTTPConfig struct {
	Addr string
}

type AppConfig struct {
	ServiceName string
	AppEnv      string
	LogLevel    string
	HTTP        HTTPConfig
	DatabaseURL string
	JWTSecret   string
	NATSURL     string

	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
}

// common is the flat on-disk / environment shape of AppConfig.
type common struct {
	ServiceName        string        `koanf:"service_name"`
	AppEnv             string        `koanf:"app_env"`
	LogLevel           string        `koanf:"log_level"`
	HTTPAddr           string        `koanf:"http_addr"`
	DatabaseURL        string        `koanf:"database_url"`
	JWTSecret          string        `koanf:"jwt_secret"`
	NATSURL            string        `koanf:"nats_url"`
	CORSAllowedOrigins string        `koanf:"cors_allowed_origins"`
	RateLimitRequests  int           `koanf:"rate_limit_requests"`
	RateLimitWindow    time.Duration `koanf:"rate_limit_window"`
}

// IsProduction reports whether APP_ENV=production.
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

func Load() (AppConfig, error) {
	raw := common{
		AppEnv:            "development",
		LogLevel:          "info",
		HTTPAddr:          ":8080",
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
	if err := LoadSection(&raw); err != nil {
		return AppConfig{}, err
	}
	cfg := AppConfig{
		ServiceName:        strings.TrimSpace(raw.ServiceName),
		AppEnv:             strings.TrimSpace(raw.AppEnv),
		LogLevel:           strings.TrimSpace(raw.LogLevel),
		HTTP:               HTTPConfig{Addr: strings.TrimSpace(raw.HTTPAddr)},
		DatabaseURL:        strings.TrimSpace(raw.DatabaseURL),
		JWTSecret:          strings.TrimSpace(raw.JWTSecret),
		NATSURL:            strings.TrimSpace(raw.NATSURL),
		CORSAllowedOrigins: SplitList(raw.CORSAllowedOrigins),
		RateLimitRequests:  raw.RateLimitRequests,
		RateLimitWindow:    raw.RateLimitWindow,
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.IsProduction() && strings.TrimSpace(cfg.JWTSecret) == "" {
		return AppConfig{}, errors.New("JWT_SECRET is required in production")
	}
	return cfg, nil
}

// LoadSection fills out, which must be a pointer to a struct with koanf tags
// already holding its defaults, from the config file and the environment.
func LoadSection(out any) error {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(out, "koanf"), nil); err != nil {
		return fmt.Errorf("config: load defaults: %w", err)
	}
	if path := findFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("config: load file %s: %w", path, err)
		}
	}
	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return fmt.Errorf("config: load env: %w", err)
	}
	if err := k.Unmarshal("", out); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}
	return nil
}

// envValue maps HTTP_ADDR to http_addr. Blank variables are skipped so they
// never clobber a default or a file value.
func envValue(name, value string) (string, any) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(name)), value
}

func findFile() string {
	if p := strings.TrimSpace(os.Getenv(PathEnvVar)); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// SplitList splits a comma-separated value, dropping blanks.
func SplitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
