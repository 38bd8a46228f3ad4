package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/idcache"
	"github.com/unkn0wn-root/idcache/backend/bigcache"
	"github.com/unkn0wn-root/idcache/backend/breaker"
	"github.com/unkn0wn-root/idcache/backend/memory"
	"github.com/unkn0wn-root/idcache/backend/ristretto"
)

func TestParseDefaults(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, Default(), f)
	require.Equal(t, idcache.DefaultTombstoneTTL, f.TombstoneTTL)
}

func TestParseFull(t *testing.T) {
	f, err := Parse([]byte(`
namespace: app
tombstone_ttl: 5s
coalesce_loads: true
backend:
  kind: redis
  default_ttl: 1h
  redis:
    addrs: ["localhost:6379"]
    db: 2
breaker:
  enabled: true
  timeout: 2s
log:
  level: debug
  format: console
`))
	require.NoError(t, err)
	require.Equal(t, "app", f.Namespace)
	require.Equal(t, 5*time.Second, f.TombstoneTTL)
	require.Equal(t, time.Hour, f.Backend.DefaultTTL)
	require.Equal(t, []string{"localhost:6379"}, f.Backend.Redis.Addrs)
	require.Equal(t, 2*time.Second, f.Breaker.Timeout)
	require.True(t, f.CoalesceLoads)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"unknown kind":     "backend: {kind: memcached}",
		"redis no section": "backend: {kind: redis}",
		"redis no addrs":   "backend: {kind: redis, redis: {db: 0}}",
		"bad addr":         "backend: {kind: redis, redis: {addrs: [nohost]}}",
		"negative ttl":     "tombstone_ttl: -1s",
		"bad level":        "log: {level: loud}",
		"bad threshold":    "breaker: {failure_threshold: 2}",
		"ristretto zero":   "backend: {kind: ristretto, ristretto: {num_counters: 0, max_cost: 1, buffer_items: 1}}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := Parse([]byte("nmespace: typo"))
	require.Error(t, err, "unknown keys must be rejected")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespace: fromfile\n"), 0o600))
	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "fromfile", f.Namespace)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	f := Default()
	b, err := f.OpenBackend(ctx)
	require.NoError(t, err)
	require.IsType(t, &memory.Backend{}, b)

	f.Breaker.Enabled = true
	b, err = f.OpenBackend(ctx)
	require.NoError(t, err)
	require.IsType(t, &breaker.Backend{}, b)

	f = Default()
	f.Backend.Kind = KindRistretto
	b, err = f.OpenBackend(ctx)
	require.NoError(t, err)
	require.IsType(t, &ristretto.Backend{}, b)
	require.NoError(t, b.Close(ctx))

	f.Backend.Kind = KindBigCache
	b, err = f.OpenBackend(ctx)
	require.NoError(t, err)
	require.IsType(t, &bigcache.Backend{}, b)
	require.NoError(t, b.Close(ctx))
}

func TestCacheConfig(t *testing.T) {
	f, err := Parse([]byte("namespace: app\ndisabled: true\n"))
	require.NoError(t, err)
	l, err := f.Logger()
	require.NoError(t, err)

	b := memory.New()
	cfg := f.CacheConfig(b, l)
	require.Equal(t, "app", cfg.Namespace)
	require.True(t, cfg.Disabled)
	require.NotNil(t, cfg.Logger)

	c, err := idcache.New(cfg)
	require.NoError(t, err)
	require.False(t, c.Enabled())
	require.Equal(t, "app:", c.Keys().Prefix())
}
