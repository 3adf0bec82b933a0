package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Versioned {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "reports", time.Minute)
}

func TestVersionedFetchCachesUntilBump(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"calls": calls}, nil
	}

	key, err := c.BuildKey(ctx, "dashboard", "2025-01-01")
	require.NoError(t, err)
	require.Equal(t, "reports:dashboard:2025-01-01:v1", key)

	var out map[string]int
	require.NoError(t, c.FetchJSON(ctx, key, &out, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, 1, calls)
	require.Equal(t, 1, out["calls"])

	require.NoError(t, c.Bump(ctx))
	key, err = c.BuildKey(ctx, "dashboard", "2025-01-01")
	require.NoError(t, err)
	require.Equal(t, "reports:dashboard:2025-01-01:v2", key)
	require.NoError(t, c.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, 2, calls)
	require.Equal(t, 2, out["calls"])
}

func TestVersionedWithoutClientCallsLoader(t *testing.T) {
	c := NewVersioned(nil, "reports", time.Minute)
	ctx := context.Background()
	var out string
	require.NoError(t, c.FetchJSON(ctx, "k", &out, func(context.Context) (any, error) { return "fresh", nil }))
	require.Equal(t, "fresh", out)
	require.NoError(t, c.Bump(ctx))

	boom := errors.New("boom")
	require.ErrorIs(t, c.FetchJSON(ctx, "k", &out, func(context.Context) (any, error) { return nil, boom }), boom)
}
