package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"localpulse/internal/observability"
)

// Cached keys. Profiles are cached per user; the anonymous grouped feed is a
// single entry dropped whenever published content or its engagement changes.
const (
	FeedGroupedKey = "feed:grouped"
	UserTTL        = 5 * time.Minute
)

func UserKey(userID uint) string {
	return "user:" + strconv.FormatUint(uint64(userID), 10)
}

// Invalidate deletes keys. It is best effort; the entries expire anyway.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		observability.Logger.DebugContext(ctx, "cache invalidation failed",
			slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateFeed drops the cached anonymous feed.
func InvalidateFeed(ctx context.Context) {
	Invalidate(ctx, FeedGroupedKey)
}
