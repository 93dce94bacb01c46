package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"localpulse/internal/models"
	"localpulse/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what Throttle does when Redis errors.
type FailPolicy int

const (
	FailOpen FailPolicy = iota
	// FailClosed answers 503 so expensive writes stop while limits cannot be enforced.
	FailClosed
)

// CodeRateLimited is the error code of a 429 response.
const CodeRateLimited = "RATE_LIMITED"

// Rule is a fixed-window budget for one route family.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	Policy FailPolicy
}

// Quota is the state of one bucket after a request was counted.
type Quota struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

func rateLimitDisabled() bool {
	return cfg != nil && (cfg.Env == "test" || cfg.Env == "stress")
}

// Allow counts one request against bucket and reports whether it fits in
// limit per window. A bucket that lost its expiry gets a fresh one. Without
// a Redis client nothing is limited.
func Allow(ctx context.Context, rdb *redis.Client, bucket string, limit int, window time.Duration) (Quota, error) {
	if rateLimitDisabled() || rdb == nil {
		return Quota{Allowed: true, Remaining: limit, ResetIn: window}, nil
	}

	key := "rl:" + bucket
	pipe := rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Quota{}, fmt.Errorf("rate limit %s: %w", bucket, err)
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		if err := rdb.PExpire(ctx, key, window).Err(); err != nil {
			return Quota{}, fmt.Errorf("rate limit %s: %w", bucket, err)
		}
		resetIn = window
	}

	count := int(incr.Val())
	return Quota{
		Allowed:   count <= limit,
		Remaining: max(limit-count, 0),
		ResetIn:   resetIn,
	}, nil
}

// Throttle limits requests per authenticated user, or per IP for
// anonymous callers, and reports the budget in X-RateLimit-* headers.
func Throttle(rdb *redis.Client, rule Rule) fiber.Handler {
	if rule.Name == "" {
		panic("middleware: rate limit rule needs a name")
	}
	return func(c *fiber.Ctx) error {
		who := "ip:" + c.IP()
		if id := UserID(c); id != 0 {
			who = "user:" + strconv.FormatUint(uint64(id), 10)
		}

		q, err := Allow(c.UserContext(), rdb, rule.Name+":"+who, rule.Limit, rule.Window)
		if err != nil {
			observability.Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
				slog.String("rule", rule.Name),
				slog.Bool("fail_closed", rule.Policy == FailClosed),
				slog.String("error", err.Error()))
			if rule.Policy == FailClosed {
				return models.RespondWithError(c, fiber.StatusServiceUnavailable,
					models.NewRetryableError(errors.New("rate limit unavailable")))
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
		if !q.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(q.ResetIn.Round(time.Second)/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "rate limit exceeded",
				Code:  CodeRateLimited,
			})
		}
		return c.Next()
	}
}
