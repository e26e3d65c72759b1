package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCache runs the behaviour every cache implementation shares
func testCache(t *testing.T, cache Cache) {
	ctx := context.Background()

	t.Run("Missing key is a miss", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Set then get", func(t *testing.T) {
		key := uuid.NewString()
		require.NoError(t, cache.Set(ctx, key, []byte(`{"answer":"Settings"}`), time.Hour))

		value, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"answer":"Settings"}`, string(value))
	})

	t.Run("Set overwrites", func(t *testing.T) {
		key := uuid.NewString()
		require.NoError(t, cache.Set(ctx, key, []byte("a"), 0))
		require.NoError(t, cache.Set(ctx, key, []byte("b"), 0))

		value, _, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "b", string(value))
	})

	t.Run("Delete removes the key", func(t *testing.T) {
		key := uuid.NewString()
		require.NoError(t, cache.Set(ctx, key, []byte("a"), time.Hour))
		require.NoError(t, cache.Delete(ctx, key))

		_, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Expired key is a miss", func(t *testing.T) {
		key := uuid.NewString()
		require.NoError(t, cache.Set(ctx, key, []byte("a"), time.Second))

		assert.Eventually(t, func() bool {
			_, ok, err := cache.Get(ctx, key)
			return err == nil && !ok
		}, 5*time.Second, 100*time.Millisecond, "Expected key to expire")
	})
}

func TestBadger(t *testing.T) {
	cache, err := OpenBadger("", true, helper.NewLogger(io.Discard, slog.LevelDebug))
	require.NoError(t, err, "Expected OpenBadger to not return an error")
	defer func() {
		assert.NoError(t, cache.Close())
	}()

	testCache(t, cache)

	t.Run("Cancelled context is rejected", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := cache.Get(ctx, "key")
		assert.Error(t, err)
	})
}

func TestBadgerOnDisk(t *testing.T) {
	t.Run("Values survive reopening", func(t *testing.T) {
		path := t.TempDir()
		logger := helper.NewLogger(io.Discard, slog.LevelDebug)

		cache, err := OpenBadger(path, false, logger)
		require.NoError(t, err)
		require.NoError(t, cache.Set(context.Background(), "key", []byte("value"), time.Hour))
		require.NoError(t, cache.Close())

		cache, err = OpenBadger(path, false, logger)
		require.NoError(t, err)
		defer cache.Close()

		value, ok, err := cache.Get(context.Background(), "key")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "value", string(value))
	})
}

func TestRedis(t *testing.T) {
	cache, err := NewRedis(context.Background(), redisEndpoint, "", 0, "wikigraph-test")
	require.NoError(t, err, "Expected NewRedis to not return an error")
	defer func() {
		assert.NoError(t, cache.Close())
	}()

	testCache(t, cache)

	t.Run("Unreachable redis returns error", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := NewRedis(ctx, "localhost:1", "", 0, "")
		assert.Error(t, err)
	})
}
