package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return clock }

	require.NoError(t, c.Set(ctx, "stages", []byte("v1"), time.Minute))
	got, ok, err := c.Get(ctx, "stages")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	clock = clock.Add(time.Minute)
	_, ok, err = c.Get(ctx, "stages")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "pinned", []byte("x"), 0))
	clock = clock.Add(24 * time.Hour)
	_, ok, _ = c.Get(ctx, "pinned")
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "pinned"))
	_, ok, _ = c.Get(ctx, "pinned")
	assert.False(t, ok)
}

func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	c := NewNoop()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
