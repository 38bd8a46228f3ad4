package promhook

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/idcache"
	"github.com/unkn0wn-root/idcache/backend/memory"
	"github.com/unkn0wn-root/idcache/keys"
)

func TestCountersFromCache(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	h := New("test").MustRegister(reg)

	c, err := idcache.New(idcache.Config{Backend: memory.New(), Hooks: h})
	require.NoError(t, err)
	m, err := idcache.NewModel(c, idcache.ModelOptions[string, int]{
		Name:    "Note",
		Columns: []keys.Column{{Name: "id", Type: "integer"}},
		ID:      func(string) int { return 1 },
		Load: func(context.Context, int) (string, bool, error) {
			return "body", true, nil
		},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err := m.FetchByID(ctx, 1)
		require.NoError(t, err)
	}
	_, _, err = m.FetchByID(idcache.WithTransaction(ctx), 1)
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(h.Reads.WithLabelValues("blob", "miss")))
	require.Equal(t, 2.0, testutil.ToFloat64(h.Reads.WithLabelValues("blob", "hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.Bypasses.WithLabelValues(idcache.BypassTransaction)))
}

func TestErrorCounters(t *testing.T) {
	h := New("")
	h.BackendError("get", "blob:X:1", errors.New("down"))
	h.TombstoneFailed("app:index:X:title:abc", errors.New("down"))
	h.LostRace("custom-key")

	require.Equal(t, 1.0, testutil.ToFloat64(h.Errors.WithLabelValues("get")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.Tombstones.WithLabelValues("index")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.LostRaces.WithLabelValues("other")))

	expected := `
# HELP idcache_backend_errors_total Backend failures by primitive.
# TYPE idcache_backend_errors_total counter
idcache_backend_errors_total{op="get"} 1
`
	require.NoError(t, testutil.CollectAndCompare(h.Errors, strings.NewReader(expected)))
}
