package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("value"), time.Minute)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "k", []byte("value"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok, "expired entry must not be returned")
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "k", []byte("value"), 0)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "k", []byte("value"), time.Minute)
	c.Delete(ctx, "k")

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryPurge(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "stale", []byte("old"), time.Millisecond)
	c.Set(ctx, "fresh", []byte("new"), time.Minute)
	time.Sleep(5 * time.Millisecond)

	c.Purge(ctx)

	c.mu.Lock()
	_, staleKept := c.m["stale"]
	_, freshKept := c.m["fresh"]
	c.mu.Unlock()
	assert.False(t, staleKept)
	assert.True(t, freshKept)
}

func TestMemoryCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	buf := []byte("value")
	c.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'X'

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)
}

func TestNewAutoSelectsBackend(t *testing.T) {
	assert.IsType(t, &Memory{}, NewAuto(""))
	assert.IsType(t, &Redis{}, NewAuto("localhost:6379"))
}
