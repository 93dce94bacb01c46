package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr())
	require.NoError(t, err)
	SetClient(c)
	t.Cleanup(func() {
		SetClient(nil)
		_ = c.Close()
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *[]int) func() error {
		return func() error {
			calls++
			*dest = []int{1, 2, 3}
			return nil
		}
	}

	var first []int
	require.NoError(t, Aside(ctx, "k", &first, time.Minute, fetch(&first)))
	assert.Equal(t, []int{1, 2, 3}, first)
	assert.True(t, mr.Exists("k"))

	var second []int
	require.NoError(t, Aside(ctx, "k", &second, time.Minute, fetch(&second)))
	assert.Equal(t, []int{1, 2, 3}, second)
	assert.Equal(t, 1, calls)
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	var dest string
	err := Aside(context.Background(), "bad", &dest, time.Minute, func() error {
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.False(t, mr.Exists("bad"))
}

func TestAside_NoClientCallsFetch(t *testing.T) {
	SetClient(nil)
	var dest string
	require.NoError(t, Aside(context.Background(), "x", &dest, time.Minute, func() error {
		dest = "fresh"
		return nil
	}))
	assert.Equal(t, "fresh", dest)
}

func TestInvalidateUser(t *testing.T) {
	mr := setupMiniredis(t)
	require.NoError(t, mr.Set(UserKey(7), "{}"))
	InvalidateUser(context.Background(), 7)
	assert.False(t, mr.Exists(UserKey(7)))
}
