package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchKey(t *testing.T) {
	a := SearchKey("jobs", "Golang", " Berlin ")
	b := SearchKey("jobs", "golang", "berlin")
	c := SearchKey("jobs", "golang", "munich")
	d := SearchKey("products", "golang", "berlin")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.True(t, strings.HasPrefix(a, "search:jobs:"))
	assert.Len(t, strings.TrimPrefix(a, "search:jobs:"), 24)

	// Part boundaries matter.
	assert.NotEqual(t, SearchKey("jobs", "ab", "c"), SearchKey("jobs", "a", "bc"))
}

func TestTokenKeyHidesToken(t *testing.T) {
	key := TokenKey("secret-token")
	assert.NotContains(t, key, "secret")
	assert.Equal(t, key, TokenKey("secret-token"))
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", map[string]int{"n": 1}, time.Minute))
	var got map[string]int
	require.NoError(t, m.Get(ctx, "k", &got))
	assert.Equal(t, 1, got["n"])

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, m.Get(ctx, "k", &got), ErrNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", "v", 0))
	require.NoError(t, m.Delete(ctx, "k"))
	var s string
	assert.ErrorIs(t, m.Get(ctx, "k", &s), ErrNotFound)
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	var s string
	assert.ErrorIs(t, c.Get(ctx, "k", &s), ErrNotFound)
	assert.Equal(t, "disabled", c.Health(ctx)["status"])
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions("redis://:pw@cache.internal:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = redisOptions("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	_, err = redisOptions("http://nope")
	assert.Error(t, err)
}

func TestNewRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, "127.0.0.1:1", time.Minute)
	assert.Error(t, err)
}

var (
	_ Cache = (*Redis)(nil)
	_ Cache = (*Memory)(nil)
	_ Cache = Nop{}
)
