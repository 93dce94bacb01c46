package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"localpulse/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Aside serves dest from Redis when the key is present. On a miss it calls
// fetch, which fills dest, and stores the result for ttl. Redis failures are
// logged and never fail the read.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	hit, err := load(ctx, key, dest)
	if hit {
		return nil
	}
	if err != nil {
		observability.Logger.DebugContext(ctx, "cache read failed",
			slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := fetch(); err != nil {
		return err
	}
	if err := store(ctx, key, dest, ttl); err != nil {
		observability.Logger.DebugContext(ctx, "cache write failed",
			slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

func load(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	// A corrupt entry is a miss; the refetch overwrites it.
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func store(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, raw, ttl).Err()
}
