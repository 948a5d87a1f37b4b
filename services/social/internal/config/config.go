package config

import (
	"errors"
	"time"

	platformconfig "github.com/example/study-spots/internal/platform/config"
)

type Config struct {
	WorkerEnabled    bool          `koanf:"worker_enabled"`
	WorkerBatchSize  int           `koanf:"worker_batch_size"`
	WorkerMaxWait    time.Duration `koanf:"worker_max_wait"`
	WorkerRetryDelay time.Duration `koanf:"worker_retry_delay"`
}

func Load() (Config, error) {
	cfg := Config{
		WorkerEnabled:    true,
		WorkerBatchSize:  100,
		WorkerMaxWait:    2 * time.Second,
		WorkerRetryDelay: 5 * time.Second,
	}
	if err := platformconfig.LoadSection(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.WorkerBatchSize <= 0 {
		return Config{}, errors.New("WORKER_BATCH_SIZE must be positive")
	}
	return cfg, nil
}
