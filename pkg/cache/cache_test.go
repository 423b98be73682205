package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.SetWithTTL("a", 1, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheInvalidatePrefix(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("conference:a", 1)
	c.Set("conference:b", 2)
	c.Set("other", 3)

	c.Invalidate("conference:")

	_, ok := c.Get("conference:a")
	assert.False(t, ok)
	_, ok = c.Get("other")
	assert.True(t, ok)
}

func TestGetOrSetLoadsOnce(t *testing.T) {
	c := NewCacheWithFallback(time.Minute)
	defer c.Stop()

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrSet(context.Background(), "k", loader, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "value", v)
	}
	assert.Equal(t, 1, calls)
}

func TestGetOrSetDoesNotCacheErrors(t *testing.T) {
	c := NewCacheWithFallback(time.Minute)
	defer c.Stop()

	boom := errors.New("boom")
	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return nil, boom
	}

	_, err := c.GetOrSet(context.Background(), "k", loader, time.Minute)
	assert.ErrorIs(t, err, boom)
	_, err = c.GetOrSet(context.Background(), "k", loader, time.Minute)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}
