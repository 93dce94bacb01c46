package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pagerOver(ids []uint) RecipientPager {
	return func(_ context.Context, afterID uint, limit int) ([]uint, error) {
		var page []uint
		for _, id := range ids {
			if id > afterID {
				page = append(page, id)
				if len(page) == limit {
					break
				}
			}
		}
		return page, nil
	}
}

func seq(n int) []uint {
	out := make([]uint, n)
	for i := range out {
		out[i] = uint(i + 1)
	}
	return out
}

func TestPlan_RunDeliversEveryRecipientOnce(t *testing.T) {
	for _, size := range []int{1, 3, 7, 10, 50} {
		plan := NewPlan(pagerOver(seq(23)), size)
		var mu sync.Mutex
		seen := map[uint]int{}

		report, err := plan.Run(context.Background(), 4, func(_ context.Context, c *Chunk) error {
			assert.LessOrEqual(t, len(c.Recipients), size)
			mu.Lock()
			defer mu.Unlock()
			for _, id := range c.Recipients {
				seen[id]++
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 23, report.Recipients)
		assert.Equal(t, 23, report.Delivered)
		assert.True(t, report.Complete())
		assert.Len(t, seen, 23)
		for id, n := range seen {
			assert.Equal(t, 1, n, "recipient %d", id)
		}
	}
}

func TestPlan_FailedChunksParkedUntilRequeued(t *testing.T) {
	plan := NewPlan(pagerOver(seq(10)), 4)
	failOnce := true
	var mu sync.Mutex

	report, err := plan.Run(context.Background(), 1, func(_ context.Context, c *Chunk) error {
		mu.Lock()
		defer mu.Unlock()
		if c.Index == 1 && failOnce {
			failOnce = false
			return errors.New("rejected")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, report.Recipients)
	assert.Equal(t, 6, report.Delivered)
	assert.Equal(t, 1, report.FailedChunks)
	assert.Equal(t, 4, report.FailedRecipients)
	assert.False(t, report.Complete())

	failed := plan.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, []uint{5, 6, 7, 8}, failed[0].Recipients)
	assert.EqualError(t, failed[0].Err, "rejected")

	assert.Equal(t, 1, plan.Requeue())
	report, err = plan.Run(context.Background(), 1, func(context.Context, *Chunk) error { return nil })
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Equal(t, 10, report.Delivered)
}

func TestPlan_PagerErrorStopsRun(t *testing.T) {
	calls := 0
	plan := NewPlan(func(_ context.Context, afterID uint, limit int) ([]uint, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("store unavailable")
		}
		return []uint{1, 2}, nil
	}, 2)

	report, err := plan.Run(context.Background(), 2, func(context.Context, *Chunk) error { return nil })
	require.Error(t, err)
	assert.Equal(t, 2, report.Delivered)
	assert.False(t, report.Exhausted)
	assert.False(t, report.Complete())
}

func TestPlan_RunResumesFromCursorAfterPagerError(t *testing.T) {
	source := pagerOver(seq(7))
	var broken atomic.Bool
	calls := 0
	plan := NewPlan(func(ctx context.Context, afterID uint, limit int) ([]uint, error) {
		calls++
		if calls == 2 && broken.Load() {
			return nil, errors.New("store unavailable")
		}
		return source(ctx, afterID, limit)
	}, 3)
	broken.Store(true)

	var mu sync.Mutex
	seen := map[uint]int{}
	commit := func(_ context.Context, c *Chunk) error {
		mu.Lock()
		defer mu.Unlock()
		for _, id := range c.Recipients {
			seen[id]++
		}
		return nil
	}

	report, err := plan.Run(context.Background(), 1, commit)
	require.Error(t, err)
	assert.Equal(t, 3, report.Delivered)
	assert.False(t, report.Complete())

	broken.Store(false)
	report, err = plan.Run(context.Background(), 1, commit)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Equal(t, 7, report.Recipients)
	assert.Len(t, seen, 7)
	for id, n := range seen {
		assert.Equal(t, 1, n, "recipient %d", id)
	}
}

func TestPlan_EmptySource(t *testing.T) {
	plan := NewPlan(pagerOver(nil), 5)
	report, err := plan.Run(context.Background(), 2, func(context.Context, *Chunk) error {
		t.Fatal("commit should not be called")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Report{Exhausted: true}, report)
	assert.True(t, report.Complete())
}
