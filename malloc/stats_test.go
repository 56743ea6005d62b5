package malloc

import "reflect"
import "testing"

import "github.com/stretchr/testify/require"

import "github.com/theroutercompany/sydradb-sub002/api"
import "github.com/theroutercompany/sydradb-sub002/lib"

func TestStatsIdempotent(t *testing.T) {
	mgr, err := NewManager("idempotent", testsettings(2))
	require.NoError(t, err)
	defer mgr.Release()

	ha, hb := mgr.Register(), mgr.Register()
	defer ha.Close()
	defer hb.Close()

	ptrs := []api.Pointer{}
	for _, size := range []int64{16, 48, 100, 256, 300, 5000} {
		ptr, err := ha.Alloc(size, 0)
		require.NoError(t, err)
		ptrs = append(ptrs, ptr)
	}
	hb.Alloc(16, 0)
	hb.Free(ptrs[0])
	mgr.Advanceepoch()
	mgr.Collectall()

	ss1, ss2 := mgr.Stats(), mgr.Stats()
	if !reflect.DeepEqual(ss1, ss2) {
		t.Errorf("expected %v, got %v", ss1, ss2)
	}
	if !reflect.DeepEqual(ss1.Map(), ss2.Map()) {
		t.Errorf("expected %v, got %v", ss1.Map(), ss2.Map())
	}
}

func TestStatsCounters(t *testing.T) {
	mgr, err := NewManager("counters", testsettings(2))
	require.NoError(t, err)
	defer mgr.Release()

	h := mgr.Register()
	defer h.Close()

	ptr1, _ := h.Alloc(64, 0)
	ptr2, _ := h.Alloc(64, 0)
	ptr3, _ := h.Alloc(1000, 0)

	ss := mgr.Stats()
	require.Equal(t, "counters", ss.Name)
	require.True(t, ss.Enabled)
	require.Equal(t, int64(1), ss.Handles)
	require.Len(t, ss.Shards, 2)
	require.Equal(t, int64(64*2+1000), ss.Livebytes())

	shard := ss.Shards[h.Shard()]
	require.Equal(t, int64(2), shard.Allocs)
	require.Equal(t, int64(2), shard.Hits)
	require.Equal(t, int64(1), shard.Slabs)
	for _, class := range shard.Classes {
		if class.Size == 64 {
			require.Equal(t, int64(2), class.Allocated)
			require.Equal(t, int64(64), class.Capacity)
			require.Equal(t, int64(62), class.Free)
			require.Equal(t, int64(1), class.Slabs)
		} else {
			require.Equal(t, int64(0), class.Capacity)
		}
	}
	require.Equal(t, int64(1), ss.Fallback.Allocs)
	require.Equal(t, int64(1000), ss.Fallback.Allocated)
	require.Equal(t, int64(1000), ss.Fallback.Sizesum)
	require.Equal(t, int64(1), ss.Fallback.Sizes["+"])
	require.Equal(t, int64(4096), ss.Fallback.Slabbytes)

	total := ss.Totals()
	require.Equal(t, int64(-1), total.Id)
	require.Equal(t, int64(2), total.Allocs)

	h.Free(ptr1)
	h.Free(ptr2)
	h.Free(ptr3)
	ss = mgr.Stats()
	require.Equal(t, int64(0), ss.Livebytes())
	require.Equal(t, int64(2), ss.Totals().Frees)
	require.Equal(t, int64(1), ss.Fallback.Frees)
}

func TestStatsMap(t *testing.T) {
	mgr, err := NewManager("statsmap", testsettings(2))
	require.NoError(t, err)
	defer mgr.Release()

	h := mgr.Register()
	defer h.Close()
	ptr, _ := h.Alloc(32, 0)
	defer h.Free(ptr)

	stats := mgr.Stats().Map()
	keys := []string{
		"name", "enabled", "globalepoch", "minobserved", "n_handles",
		"n_advances", "n_direct", "n_pending", "livebytes", "n_shards",
		"fallback.n_allocs", "fallback.h_sizes", "shard0.n_allocs",
		"shard1.n_hits", "shard0.h_reclaims", "shard1.n_deferred",
		"shard0.class32.n_allocated", "shard1.class256.n_capacity",
	}
	for _, key := range keys {
		if _, ok := stats[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	require.Equal(t, int64(2), stats["n_shards"])
	require.Equal(t, int64(32), stats["livebytes"])
	prefix := "shard" + []string{"0", "1"}[h.Shard()]
	require.Equal(t, int64(1), stats[prefix+".class32.n_allocated"])

	// map shall be json friendly.
	require.NotEmpty(t, lib.Prettystats(stats, false))
	require.NotEmpty(t, lib.Prettystats(stats, true))
}

func TestStatsLog(t *testing.T) {
	LogComponents("malloc")
	mgr, err := NewManager("log", testsettings(2))
	require.NoError(t, err)
	defer mgr.Release()

	h := mgr.Register()
	defer h.Close()
	ptr, _ := h.Alloc(64, 0)
	mgr.Log(true)
	mgr.Log(false)
	h.Free(ptr)
}

func BenchmarkStats(b *testing.B) {
	mgr, _ := NewManager("bench", testsettings(4))
	defer mgr.Release()
	for i := 0; i < b.N; i++ {
		mgr.Stats()
	}
}

func TestStatsMergedTotals(t *testing.T) {
	mgr, err := NewManager("merged", testsettings(2))
	require.NoError(t, err)
	defer mgr.Release()

	ha, hb := mgr.Register(), mgr.Register()
	defer ha.Close()
	defer hb.Close()

	pa, err := ha.Alloc(32, 0)
	require.NoError(t, err)
	pb, err := hb.Alloc(32, 0)
	require.NoError(t, err)
	require.NotEqual(t, ha.Shard(), hb.Shard())

	// cross frees are deferred to the owner shard.
	ha.Free(pb)
	hb.Free(pa)
	mgr.Advanceepoch()
	require.Equal(t, int64(2), mgr.Collectall())

	ss := mgr.Stats()
	var passes int64
	for _, shard := range ss.Shards {
		passes += shard.Gcpassns["samples"].(int64)
	}
	require.Equal(t, passes, ss.Gcpassns["samples"])
	require.Equal(t, passes, ss.Reclaims["samples"])
	require.Equal(t, int64(1), ss.Reclaims["max"])

	total := ss.Totals()
	require.Equal(t, ss.Reclaims, total.Reclaims)
	require.Equal(t, ss.Gcpassns, total.Gcpassns)
	require.Equal(t, ss.Reclaims, ss.Map()["h_reclaims"])
}
