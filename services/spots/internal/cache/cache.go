// Package cache keeps provider responses so repeated searches for the same
// area do not hit the place provider.
package cache

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/study-spots/internal/platform/metrics"
)

// InvalidateSubject carries keys to drop; an empty payload or "ALL" flushes.
const InvalidateSubject = "spots.cache.invalidate"

// Cache stores JSON-encodable values. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

func SearchKey(location string, radius int) string {
	return fmt.Sprintf("search:%s:%d", strings.ToLower(strings.TrimSpace(location)), radius)
}

func PhotosKey(externalID string) string {
	return "photos:" + externalID
}

// Fetch returns the cached value for key or calls load and stores its result.
// Cache errors are logged and behave like a miss; only load errors are returned.
func Fetch[T any](ctx context.Context, c Cache, log *zap.Logger, key string, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}
	if log == nil {
		log = zap.NewNop()
	}

	var cached T
	hit, err := c.Get(ctx, key, &cached)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	case hit:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
