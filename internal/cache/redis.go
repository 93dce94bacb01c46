// Package cache holds the shared Redis client and the read-through
// helpers built on it. A nil client turns every helper into a no-op.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"localpulse/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// errorCounter counts failed commands in observability.RedisErrors.
// Misses (redis.Nil) are not failures.
type errorCounter struct{}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countFailure(cmd.Name(), err)
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		for _, cmd := range cmds {
			countFailure(cmd.Name(), cmd.Err())
		}
		return err
	}
}

func countFailure(command string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrors.WithLabelValues(command).Inc()
	}
}

// NewClient accepts a redis:// or rediss:// URL, or a bare host:port.
func NewClient(addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}
	c := redis.NewClient(opts)
	c.AddHook(errorCounter{})
	return c, nil
}

// InitRedis connects the shared client. An empty address, a bad URL or a
// failed ping leave caching off; the API keeps working without Redis.
func InitRedis(addr string) {
	client = nil
	if addr == "" {
		observability.Logger.Info("redis not configured, caching disabled")
		return
	}

	c, err := NewClient(addr)
	if err != nil {
		observability.Logger.Warn("invalid REDIS_URL, caching disabled", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		observability.Logger.Warn("redis unreachable, caching disabled",
			slog.String("addr", c.Options().Addr), slog.String("error", err.Error()))
		_ = c.Close()
		return
	}

	client = c
	observability.Logger.Info("redis connected", slog.String("addr", c.Options().Addr))
}

// SetClient replaces the shared client. Passing nil disables caching.
func SetClient(c *redis.Client) {
	client = c
}

// GetClient returns the shared client, or nil when caching is off.
func GetClient() *redis.Client {
	return client
}
