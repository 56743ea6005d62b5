package malloc

import "sync"
import "time"
import "sync/atomic"

import "golang.org/x/sys/cpu"

import "github.com/theroutercompany/sydradb-sub002/api"
import "github.com/theroutercompany/sydradb-sub002/lib"

// Shard owns a free list per size class. Allocations and local frees
// are served by the goroutines bound to this shard, while frees from
// other shards land in the deferred queue.
type Shard struct {
	_ cpu.CacheLinePad

	// 64-bit aligned stats
	epoch         uint64
	n_allocs      int64
	n_frees       int64
	n_hits        int64
	n_misses      int64
	n_slabs       int64
	n_deferred    int64
	n_reclaimed   int64
	n_gcpasses    int64
	n_contended   int64
	n_waitns      int64
	n_maxwaitns   int64
	n_gcconflicts int64

	id       int64
	mu       sync.Mutex // serialize free lists
	flists   []*flist
	gcmu     sync.Mutex // single consumer for deferred queue
	deferred deferqueue

	statmu     sync.Mutex
	h_reclaims *lib.HistogramInt64
	a_gcpassns *lib.AverageInt64

	_ cpu.CacheLinePad
}

// reclaim batch sizes are bucketed over [0, 1024) in steps of 32.
func newreclaims() *lib.HistogramInt64 {
	return lib.NewhistogramInt64(0, 1024, 32)
}

func newshard(id int64, classes []Sizeclass, slabsize, maxslabs int64) *Shard {
	shard := &Shard{
		id:         id,
		flists:     make([]*flist, 0, len(classes)),
		h_reclaims: newreclaims(),
		a_gcpassns: &lib.AverageInt64{},
	}
	for _, class := range classes {
		fl := newflist(id, class, slabsize, maxslabs)
		shard.flists = append(shard.flists, fl)
	}
	return shard
}

// lock the shard, uncontended acquisition is a single TryLock, else
// contention and wait time is accounted.
func (shard *Shard) lock() {
	if shard.mu.TryLock() {
		return
	}
	start := time.Now()
	shard.mu.Lock()
	wait := int64(time.Since(start))
	atomic.AddInt64(&shard.n_contended, 1)
	atomic.AddInt64(&shard.n_waitns, wait)
	for {
		max := atomic.LoadInt64(&shard.n_maxwaitns)
		if wait <= max {
			break
		} else if atomic.CompareAndSwapInt64(&shard.n_maxwaitns, max, wait) {
			break
		}
	}
}

// alloc a node from class, pop from free list and on failure collect
// deferred frees, if any, and pop again. If there is still nothing,
// grow a new slab while the class is under its slab limit.
func (shard *Shard) alloc(mgr *Manager, class int64) (api.Pointer, bool) {
	atomic.AddInt64(&shard.n_allocs, 1)
	fl := shard.flists[class]

	shard.lock()
	node, ok := fl.pop()
	shard.mu.Unlock()

	if !ok && shard.deferred.length() > 0 {
		mgr.collectgarbage(shard)
	}

	if !ok {
		shard.lock()
		if node, ok = fl.pop(); !ok && fl.cangrow() {
			if mem, err := mgr.fallback.slab(fl.nodes * fl.class.Size); err == nil {
				fl.grow(mem)
				atomic.AddInt64(&shard.n_slabs, 1)
				node, ok = fl.pop()
				fmsg := "%v shard %v class %v grew to %v slabs\n"
				debugf(fmsg, mgr.logprefix, shard.id, fl.class.Size, fl.slabcount())
			} else {
				warnf("%v shard %v class %v: %v\n", mgr.logprefix, shard.id, fl.class.Size, err)
			}
		}
		shard.mu.Unlock()
	}

	if !ok {
		atomic.AddInt64(&shard.n_misses, 1)
		return api.Nilptr, false
	}
	atomic.AddInt64(&shard.n_hits, 1)
	ptr := api.Slabpointer(shard.id, class, node)
	initblock(fl.bytes(node))
	return ptr, true
}

// freelocal return node to its free list, caller is bound to this
// shard.
func (shard *Shard) freelocal(ptr api.Pointer, debug bool) {
	fl := shard.flists[ptr.Class()]
	shard.lock()
	if debug {
		if err := fl.checkfree(ptr); err != nil {
			shard.mu.Unlock()
			panic(err)
		}
	}
	fl.push(ptr.Node())
	shard.mu.Unlock()
	atomic.AddInt64(&shard.n_frees, 1)
}

// deferfree queue the node, tagged with current epoch, to be reclaimed
// by this shard's garbage collection.
func (shard *Shard) deferfree(ptr api.Pointer, epoch uint64, debug bool) {
	if debug {
		fl := shard.flists[ptr.Class()]
		shard.lock()
		if err := fl.checkfree(ptr); err != nil {
			shard.mu.Unlock()
			panic(err)
		}
		fl.markdeferred(ptr.Node())
		shard.mu.Unlock()
	}
	shard.deferred.push(deferitem{ptr: ptr, epoch: epoch})
	atomic.AddInt64(&shard.n_deferred, 1)
}

// collect deferred frees whose epoch is older than minobserved. Only
// one goroutine can collect at a time, concurrent callers return ZERO.
func (shard *Shard) collect(minobserved, globalepoch uint64) int64 {
	if !shard.gcmu.TryLock() {
		atomic.AddInt64(&shard.n_gcconflicts, 1)
		return 0
	}
	defer shard.gcmu.Unlock()

	start := time.Now()
	items := shard.deferred.drain()
	keep, reclaimed := items[:0], int64(0)
	if len(items) > 0 {
		shard.lock()
		for _, item := range items {
			if reclaimable(item.epoch, minobserved) {
				shard.flists[item.ptr.Class()].push(item.ptr.Node())
				reclaimed++
				continue
			}
			keep = append(keep, item)
		}
		shard.mu.Unlock()
	}
	shard.deferred.requeue(keep, reclaimed)
	shard.deferred.recycle(items)

	for { // shard's epoch is monotonic
		epoch := atomic.LoadUint64(&shard.epoch)
		if globalepoch <= epoch {
			break
		} else if atomic.CompareAndSwapUint64(&shard.epoch, epoch, globalepoch) {
			break
		}
	}

	atomic.AddInt64(&shard.n_frees, reclaimed)
	atomic.AddInt64(&shard.n_reclaimed, reclaimed)
	atomic.AddInt64(&shard.n_gcpasses, 1)
	shard.statmu.Lock()
	shard.h_reclaims.Add(reclaimed)
	shard.a_gcpassns.Add(int64(time.Since(start)))
	shard.statmu.Unlock()
	return reclaimed
}

// release all slabs held by this shard, return bytes released.
func (shard *Shard) release() int64 {
	var released int64
	shard.lock()
	for _, fl := range shard.flists {
		released += fl.release()
	}
	shard.mu.Unlock()
	return released
}
