package malloc

import "fmt"
import "sync/atomic"

import humanize "github.com/dustin/go-humanize"

import "github.com/theroutercompany/sydradb-sub002/lib"

// Classstats occupancy of a size class within a shard.
type Classstats struct {
	Size      int64
	Slabs     int64
	Capacity  int64 // nodes
	Free      int64
	Allocated int64 // includes nodes pending in deferred queue
}

// Shardstats counters for a single shard.
type Shardstats struct {
	Id            int64
	Epoch         uint64
	Allocs        int64
	Frees         int64
	Hits          int64
	Misses        int64
	Slabs         int64
	Deferred      int64 // pending in deferred queue
	Deferredtotal int64
	Reclaimed     int64
	Gcpasses      int64
	Gcconflicts   int64
	Contended     int64
	Waitns        int64
	Maxwaitns     int64
	Classes       []Classstats
	Reclaims      map[string]interface{}
	Gcpassns      map[string]interface{} // latency of gc passes
}

// Fallbackstats counters for the fallback allocator.
type Fallbackstats struct {
	Capacity  int64
	Allocs    int64
	Frees     int64
	Live      int64
	Allocated int64 // bytes
	Slabs     int64
	Slabbytes int64
	Ooms      int64
	Sizesum   int64
	Sizes     map[string]int64 // cumulative, see lib.HistogramInt64
	Sizestats map[string]interface{}
}

// Snapshot of allocator statistics, each field is read atomically but
// the snapshot as a whole is not. Taking a snapshot does not modify any
// counter.
type Snapshot struct {
	Name        string
	Enabled     bool
	Globalepoch uint64
	Minobserved uint64
	Handles     int64
	Advances    int64
	Direct      int64
	Pending     int64
	Shards      []Shardstats
	Fallback    Fallbackstats
	Reclaims    map[string]interface{} // merged across shards
	Gcpassns    map[string]interface{} // merged across shards
}

// Stats return a snapshot of allocator statistics.
func (mgr *Manager) Stats() Snapshot {
	ss := Snapshot{
		Name:        mgr.name,
		Enabled:     mgr.enabled,
		Globalepoch: mgr.rc.current(),
		Minobserved: mgr.rc.minobserved(),
		Handles:     mgr.rc.count(),
		Advances:    atomic.LoadInt64(&mgr.n_advances),
		Direct:      atomic.LoadInt64(&mgr.n_direct),
		Pending:     atomic.LoadInt64(&mgr.pending),
		Shards:      make([]Shardstats, 0, len(mgr.shards)),
		Fallback:    mgr.fallback.stats(),
	}
	reclaims, gcpassns := newreclaims(), &lib.AverageInt64{}
	for _, shard := range mgr.shards {
		ss.Shards = append(ss.Shards, shard.stats(reclaims, gcpassns))
	}
	ss.Reclaims, ss.Gcpassns = reclaims.Fullstats(), gcpassns.Stats()
	return ss
}

// stats for this shard, reclaim and gc-pass samples are also merged
// into the supplied accumulators.
func (shard *Shard) stats(reclaims *lib.HistogramInt64, gcpassns *lib.AverageInt64) Shardstats {
	stats := Shardstats{
		Id:            shard.id,
		Epoch:         atomic.LoadUint64(&shard.epoch),
		Allocs:        atomic.LoadInt64(&shard.n_allocs),
		Frees:         atomic.LoadInt64(&shard.n_frees),
		Hits:          atomic.LoadInt64(&shard.n_hits),
		Misses:        atomic.LoadInt64(&shard.n_misses),
		Slabs:         atomic.LoadInt64(&shard.n_slabs),
		Deferred:      shard.deferred.length(),
		Deferredtotal: atomic.LoadInt64(&shard.n_deferred),
		Reclaimed:     atomic.LoadInt64(&shard.n_reclaimed),
		Gcpasses:      atomic.LoadInt64(&shard.n_gcpasses),
		Gcconflicts:   atomic.LoadInt64(&shard.n_gcconflicts),
		Contended:     atomic.LoadInt64(&shard.n_contended),
		Waitns:        atomic.LoadInt64(&shard.n_waitns),
		Maxwaitns:     atomic.LoadInt64(&shard.n_maxwaitns),
		Classes:       make([]Classstats, 0, len(shard.flists)),
	}
	for _, fl := range shard.flists {
		capacity, free, allocated := fl.info()
		stats.Classes = append(stats.Classes, Classstats{
			Size:      fl.class.Size,
			Slabs:     fl.slabcount(),
			Capacity:  capacity,
			Free:      free,
			Allocated: allocated,
		})
	}
	shard.statmu.Lock()
	stats.Reclaims = shard.h_reclaims.Fullstats()
	stats.Gcpassns = shard.a_gcpassns.Stats()
	reclaims.Merge(shard.h_reclaims)
	gcpassns.Merge(shard.a_gcpassns)
	shard.statmu.Unlock()
	return stats
}

func (fb *Fallback) stats() Fallbackstats {
	stats := Fallbackstats{
		Capacity:  fb.capacity,
		Allocs:    atomic.LoadInt64(&fb.n_allocs),
		Frees:     atomic.LoadInt64(&fb.n_frees),
		Allocated: atomic.LoadInt64(&fb.allocated),
		Slabs:     atomic.LoadInt64(&fb.n_slabs),
		Slabbytes: atomic.LoadInt64(&fb.slabbytes),
		Ooms:      atomic.LoadInt64(&fb.n_ooms),
	}
	fb.mu.RLock()
	stats.Live = int64(len(fb.blocks))
	stats.Sizesum = fb.h_sizes.Sum()
	stats.Sizes = fb.h_sizes.Stats()
	stats.Sizestats = fb.h_sizes.Fullstats()
	fb.mu.RUnlock()
	return stats
}

// Totals sum up counters across all shards.
func (ss Snapshot) Totals() Shardstats {
	var total Shardstats
	total.Id = -1
	total.Reclaims, total.Gcpassns = ss.Reclaims, ss.Gcpassns
	for _, shard := range ss.Shards {
		total.Allocs += shard.Allocs
		total.Frees += shard.Frees
		total.Hits += shard.Hits
		total.Misses += shard.Misses
		total.Slabs += shard.Slabs
		total.Deferred += shard.Deferred
		total.Deferredtotal += shard.Deferredtotal
		total.Reclaimed += shard.Reclaimed
		total.Gcpasses += shard.Gcpasses
		total.Gcconflicts += shard.Gcconflicts
		total.Contended += shard.Contended
		total.Waitns += shard.Waitns
		if shard.Maxwaitns > total.Maxwaitns {
			total.Maxwaitns = shard.Maxwaitns
		}
		if shard.Epoch > total.Epoch {
			total.Epoch = shard.Epoch
		}
	}
	return total
}

// Livebytes return bytes held by live allocations, slab blocks are
// counted by their size class.
func (ss Snapshot) Livebytes() int64 {
	live := ss.Fallback.Allocated
	for _, shard := range ss.Shards {
		for _, class := range shard.Classes {
			live += class.Allocated * class.Size
		}
	}
	return live
}

// Map return snapshot as a flat map, counters are prefixed with "n_"
// and histograms with "h_".
func (ss Snapshot) Map() map[string]interface{} {
	stats := map[string]interface{}{
		"name":               ss.Name,
		"enabled":            ss.Enabled,
		"globalepoch":        ss.Globalepoch,
		"minobserved":        ss.Minobserved,
		"n_handles":          ss.Handles,
		"n_advances":         ss.Advances,
		"n_direct":           ss.Direct,
		"n_pending":          ss.Pending,
		"livebytes":          ss.Livebytes(),
		"n_shards":           int64(len(ss.Shards)),
		"fallback.capacity":  ss.Fallback.Capacity,
		"fallback.n_allocs":  ss.Fallback.Allocs,
		"fallback.n_frees":   ss.Fallback.Frees,
		"fallback.n_live":    ss.Fallback.Live,
		"fallback.allocated": ss.Fallback.Allocated,
		"fallback.n_slabs":   ss.Fallback.Slabs,
		"fallback.slabbytes": ss.Fallback.Slabbytes,
		"fallback.n_ooms":    ss.Fallback.Ooms,
		"fallback.h_sizes":   ss.Fallback.Sizestats,
		"h_reclaims":         ss.Reclaims,
		"a_gcpassns":         ss.Gcpassns,
	}
	for _, shard := range ss.Shards {
		prefix := fmt.Sprintf("shard%v.", shard.Id)
		stats[prefix+"epoch"] = shard.Epoch
		stats[prefix+"n_allocs"] = shard.Allocs
		stats[prefix+"n_frees"] = shard.Frees
		stats[prefix+"n_hits"] = shard.Hits
		stats[prefix+"n_misses"] = shard.Misses
		stats[prefix+"n_slabs"] = shard.Slabs
		stats[prefix+"n_deferred"] = shard.Deferred
		stats[prefix+"n_deferredtotal"] = shard.Deferredtotal
		stats[prefix+"n_reclaimed"] = shard.Reclaimed
		stats[prefix+"n_gcpasses"] = shard.Gcpasses
		stats[prefix+"n_gcconflicts"] = shard.Gcconflicts
		stats[prefix+"n_contended"] = shard.Contended
		stats[prefix+"n_waitns"] = shard.Waitns
		stats[prefix+"n_maxwaitns"] = shard.Maxwaitns
		stats[prefix+"h_reclaims"] = shard.Reclaims
		stats[prefix+"a_gcpassns"] = shard.Gcpassns
		for _, class := range shard.Classes {
			cprefix := fmt.Sprintf("%vclass%v.", prefix, class.Size)
			stats[cprefix+"n_slabs"] = class.Slabs
			stats[cprefix+"n_capacity"] = class.Capacity
			stats[cprefix+"n_free"] = class.Free
			stats[cprefix+"n_allocated"] = class.Allocated
		}
	}
	return stats
}

// Log allocator statistics, humanize byte counts if `humanize` is
// true.
func (mgr *Manager) Log(humanized bool) {
	ss := mgr.Stats()
	bytes := func(n int64) interface{} {
		if humanized {
			return humanize.Bytes(uint64(n))
		}
		return n
	}
	count := func(n int64) interface{} {
		if humanized {
			return humanize.Comma(n)
		}
		return n
	}

	total := ss.Totals()
	fmsg := "%v epoch:%v minobserved:%v handles:%v pending:%v\n"
	infof(fmsg, mgr.logprefix, ss.Globalepoch, ss.Minobserved, ss.Handles, ss.Pending)
	fmsg = "%v allocs:%v frees:%v hits:%v misses:%v reclaimed:%v\n"
	infof(fmsg, mgr.logprefix, count(total.Allocs), count(total.Frees),
		count(total.Hits), count(total.Misses), count(total.Reclaimed))
	for _, shard := range ss.Shards {
		fmsg = "%v shard %v epoch:%v allocs:%v deferred:%v slabs:%v contended:%v\n"
		infof(fmsg, mgr.logprefix, shard.Id, shard.Epoch, count(shard.Allocs),
			count(shard.Deferred), shard.Slabs, count(shard.Contended))
	}
	fb := ss.Fallback
	fmsg = "%v fallback allocs:%v live:%v allocated:%v slabs:%v cap:%v\n"
	infof(fmsg, mgr.logprefix, count(fb.Allocs), count(fb.Live),
		bytes(fb.Allocated), bytes(fb.Slabbytes), bytes(fb.Capacity))
	infof("%v livebytes:%v\n", mgr.logprefix, bytes(ss.Livebytes()))
}
