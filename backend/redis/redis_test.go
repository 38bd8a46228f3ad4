package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/idcache/backend"
)

func newTestBackend(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	b, err := New(Config{Client: client, CloseClient: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b, s
}

func TestNilClient(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrNilClient)
}

func TestAddAndCAS(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	_, found, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)

	ok, err := b.Add(ctx, "k", []byte("v1"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Add(ctx, "k", []byte("v2"))
	require.NoError(t, err)
	require.False(t, ok)

	it, found, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), it.Value)
	require.NotZero(t, it.Token)

	ok, err = b.CAS(ctx, "k", []byte("v2"), it.Token)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.CAS(ctx, "k", []byte("v3"), it.Token)
	require.NoError(t, err)
	require.False(t, ok, "stale token")

	ok, err = b.CAS(ctx, "gone", []byte("v"), it.Token)
	require.NoError(t, err)
	require.False(t, ok, "CAS on a missing key")
}

func TestTombstoneExpiresAndBlocksAdd(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)

	require.NoError(t, b.Set(ctx, "k", []byte("tomb"), 10*time.Second))
	ok, err := b.Add(ctx, "k", []byte("stale"))
	require.NoError(t, err)
	require.False(t, ok)

	s.FastForward(11 * time.Second)
	ok, err = b.Add(ctx, "k", []byte("fresh"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestForeignBytesAreReplaceable(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	require.NoError(t, s.Set("k", "written-by-someone-else"))

	it, found, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, backend.Token(0), it.Token)

	ok, err := b.CAS(ctx, "k", []byte("ours"), it.Token)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBackend(t)
	s.Close()

	_, _, err := b.Get(ctx, "k")
	require.ErrorIs(t, err, backend.ErrUnavailable)
	_, err = b.Add(ctx, "k", []byte("v"))
	require.ErrorIs(t, err, backend.ErrUnavailable)
}
