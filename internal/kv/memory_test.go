package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSetEx(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetEx(ctx, "k", "v", time.Hour))
	value, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestMemoryTTLExpiry(t *testing.T) {
	s := NewMemory().(*memoryStore)
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }
	require.NoError(t, s.SetEx(ctx, "k", "v", time.Minute))

	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryListSemantics(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, s.RPush(ctx, "list", v))
	}

	full, err := s.LRange(ctx, "list", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, full)

	tail, err := s.LRange(ctx, "list", -2, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, tail)

	empty, err := s.LRange(ctx, "list", 5, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	missing, err := s.LRange(ctx, "nope", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, missing)
}
