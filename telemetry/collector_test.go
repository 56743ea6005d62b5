package telemetry

import "strings"
import "testing"

import s "github.com/bnclabs/gosettings"
import "github.com/prometheus/client_golang/prometheus"
import "github.com/prometheus/client_golang/prometheus/testutil"
import "github.com/stretchr/testify/require"

import "github.com/theroutercompany/sydradb-sub002/malloc"

func newmanager(t *testing.T, shards int64) *malloc.Manager {
	setts := s.Settings{
		"shards":            shards,
		"slab.size":         int64(4096),
		"fallback.capacity": int64(16 * 1024 * 1024),
	}
	mgr, err := malloc.NewManager("telemetry", setts)
	require.NoError(t, err)
	return mgr
}

func TestCollectorRegister(t *testing.T) {
	mgr := newmanager(t, 2)
	defer mgr.Release()

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector("tsdb_malloc", mgr)))

	h := mgr.Register()
	defer h.Close()
	ptr, err := h.Alloc(64, 0)
	require.NoError(t, err)
	defer h.Free(ptr)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, family := range families {
		names[family.GetName()] = true
	}
	for _, name := range []string{
		"tsdb_malloc_shard_allocs_total",
		"tsdb_malloc_shard_deferred",
		"tsdb_malloc_class_allocated_nodes",
		"tsdb_malloc_global_epoch",
		"tsdb_malloc_fallback_allocs_total",
		"tsdb_malloc_fallback_request_size_bytes",
	} {
		require.True(t, names[name], "missing %v", name)
	}
}

func TestCollectorValues(t *testing.T) {
	mgr := newmanager(t, 2)
	defer mgr.Release()
	c := NewCollector("tsdb_malloc", mgr)

	ha, hb := mgr.Register(), mgr.Register()
	defer ha.Close()
	defer hb.Close()
	ptr, _ := ha.Alloc(64, 0)
	other, _ := hb.Alloc(64, 0)
	hb.Free(ptr) // cross-shard
	big, _ := ha.Alloc(1000, 0)

	// 2 shards, 12 shard metrics + 2 class metrics per class.
	nclasses := len(mgr.Sizeclasses())
	n := testutil.CollectAndCount(c, "tsdb_malloc_shard_allocs_total")
	require.Equal(t, 2, n)
	n = testutil.CollectAndCount(c, "tsdb_malloc_class_allocated_nodes")
	require.Equal(t, 2*nclasses, n)

	expected := `
# HELP tsdb_malloc_shard_deferred Cross-shard frees pending on shard.
# TYPE tsdb_malloc_shard_deferred gauge
tsdb_malloc_shard_deferred{shard="0"} 1
tsdb_malloc_shard_deferred{shard="1"} 0
# HELP tsdb_malloc_fallback_allocs_total Fallback allocations.
# TYPE tsdb_malloc_fallback_allocs_total counter
tsdb_malloc_fallback_allocs_total 1
# HELP tsdb_malloc_deferred_pending Deferred frees pending across shards.
# TYPE tsdb_malloc_deferred_pending gauge
tsdb_malloc_deferred_pending 1
`
	err := testutil.CollectAndCompare(
		c, strings.NewReader(expected),
		"tsdb_malloc_shard_deferred", "tsdb_malloc_fallback_allocs_total",
		"tsdb_malloc_deferred_pending")
	require.NoError(t, err)

	mgr.Advanceepoch()
	mgr.Collectall()
	expected = `
# HELP tsdb_malloc_deferred_pending Deferred frees pending across shards.
# TYPE tsdb_malloc_deferred_pending gauge
tsdb_malloc_deferred_pending 0
# HELP tsdb_malloc_global_epoch Global reclamation epoch.
# TYPE tsdb_malloc_global_epoch gauge
tsdb_malloc_global_epoch 1
`
	err = testutil.CollectAndCompare(
		c, strings.NewReader(expected),
		"tsdb_malloc_deferred_pending", "tsdb_malloc_global_epoch")
	require.NoError(t, err)

	ha.Free(big)
	hb.Free(other)
}

func TestSizebuckets(t *testing.T) {
	count, buckets := sizebuckets(map[string]int64{
		"0": 0, "16": 2, "32": 5, "+": 7,
	})
	require.Equal(t, uint64(7), count)
	require.Equal(t, uint64(2), buckets[15])
	require.Equal(t, uint64(5), buckets[31])
	require.Len(t, buckets, 3)

	count, buckets = sizebuckets(nil)
	require.Equal(t, uint64(0), count)
	require.Empty(t, buckets)
}
