package malloc

import "fmt"
import "sync"
import "sync/atomic"

import s "github.com/bnclabs/gosettings"

import "github.com/theroutercompany/sydradb-sub002/api"
import "github.com/theroutercompany/sydradb-sub002/lib"

// Manager is the process wide allocator instance. Goroutines obtain a
// Handle via Register() and allocate through it.
type Manager struct {
	// 64-bit aligned
	roundrobin int64
	pending    int64 // deferred frees across all shards
	n_direct   int64 // requests forwarded straight to fallback
	n_advances int64
	released   int64

	name      string
	logprefix string
	enabled   bool
	debug     bool
	classes   []Sizeclass
	shards    []*Shard
	fallback  *Fallback
	rc        *reclaimer

	// settings
	nshards   int64
	minblock  int64
	maxblock  int64
	slabsize  int64
	maxslabs  int64
	capacity  int64
	epochtick int64
	threshold int64
	setts     s.Settings

	// housekeeper
	hmu     sync.Mutex
	triggch chan bool
	finch   chan struct{}
	hwg     sync.WaitGroup
}

// NewManager create a new allocator instance, settings not supplied by
// `setts` are picked from Defaultsettings(). Invalid settings are
// reported as ErrorMisconfig.
func NewManager(name string, setts s.Settings) (*Manager, error) {
	mgr := &Manager{
		name:      name,
		logprefix: fmt.Sprintf("MALLOC [%s]", name),
		rc:        newreclaimer(),
		triggch:   make(chan bool, 1),
	}
	mgr.setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	if err := mgr.readsettings(mgr.setts); err != nil {
		return nil, err
	}

	mgr.fallback = newfallback(mgr.capacity, mgr.maxblock)
	if mgr.enabled {
		mgr.shards = make([]*Shard, 0, mgr.nshards)
		for i := int64(0); i < mgr.nshards; i++ {
			shard := newshard(i, mgr.classes, mgr.slabsize, mgr.maxslabs)
			mgr.shards = append(mgr.shards, shard)
		}
	}

	fmsg := "%v started with %v shards and %v size classes {%v..%v}\n"
	infof(fmsg, mgr.logprefix, len(mgr.shards), len(mgr.classes), mgr.minblock, mgr.maxblock)
	return mgr, nil
}

func (mgr *Manager) readsettings(setts s.Settings) (err error) {
	defer func() { // gosettings panics on missing or mistyped keys.
		if r := recover(); r != nil {
			err = misconfigf("%v", r)
		}
	}()

	mode := setts.String("mode")
	mgr.nshards = setts.Int64("shards")
	mgr.minblock = setts.Int64("minblock")
	mgr.maxblock = setts.Int64("maxblock")
	mgr.slabsize = setts.Int64("slab.size")
	mgr.maxslabs = setts.Int64("slab.maxcount")
	mgr.capacity = setts.Int64("fallback.capacity")
	mgr.epochtick = setts.Int64("epoch.tick")
	mgr.threshold = setts.Int64("epoch.threshold")
	mgr.debug = setts.Bool("debug")

	switch mode {
	case "enabled":
		mgr.enabled = mgr.nshards > 0
	case "disabled":
		mgr.enabled = false
	default:
		return misconfigf("invalid mode %q", mode)
	}

	if mgr.nshards < 0 || mgr.nshards > api.MaxShards {
		return misconfigf("shards %v out of range [0, %v]", mgr.nshards, api.MaxShards)
	} else if mgr.capacity <= 0 || mgr.capacity > Maxcapacity {
		fmsg := "fallback.capacity %v out of range (0, %v]"
		return misconfigf(fmsg, mgr.capacity, Maxcapacity)
	} else if mgr.epochtick <= 0 {
		return misconfigf("epoch.tick %v must be positive", mgr.epochtick)
	} else if mgr.threshold < 0 {
		return misconfigf("epoch.threshold %v is negative", mgr.threshold)
	}
	if mgr.classes, err = Sizeclasses(mgr.minblock, mgr.maxblock); err != nil {
		return err
	}
	if mgr.slabsize < mgr.maxblock || mgr.slabsize > Maxslabsize {
		fmsg := "slab.size %v out of range [%v, %v]"
		return misconfigf(fmsg, mgr.slabsize, mgr.maxblock, Maxslabsize)
	} else if mgr.slabsize%Slabalign != 0 {
		fmsg := "slab.size %v is not multiple of %v"
		return misconfigf(fmsg, mgr.slabsize, Slabalign)
	} else if mgr.maxslabs <= 0 {
		return misconfigf("slab.maxcount %v must be positive", mgr.maxslabs)
	} else if nodes := mgr.maxslabs * (mgr.slabsize / mgr.minblock); nodes > api.MaxNodes {
		fmsg := "slab.maxcount %v addresses %v nodes, exceeds %v"
		return misconfigf(fmsg, mgr.maxslabs, nodes, api.MaxNodes)
	}
	return nil
}

// Register a new handle, to be used by a single goroutine.
func (mgr *Manager) Register() *Handle {
	mgr.checkreleased()
	h := &Handle{observed: inactive, mgr: mgr, shard: -1}
	mgr.rc.register(h)
	return h
}

// Sizeclasses configured for this instance, empty if slabs are
// disabled.
func (mgr *Manager) Sizeclasses() []Sizeclass {
	if !mgr.enabled {
		return nil
	}
	classes := make([]Sizeclass, len(mgr.classes))
	copy(classes, mgr.classes)
	return classes
}

// Shards return the number of shards, ZERO if sharding is disabled.
func (mgr *Manager) Shards() int64 {
	return int64(len(mgr.shards))
}

// Settings used by this instance.
func (mgr *Manager) Settings() s.Settings {
	return mgr.setts
}

func (mgr *Manager) shardof(h *Handle) *Shard {
	if h.shard < 0 {
		n := atomic.AddInt64(&mgr.roundrobin, 1) - 1
		h.shard = n % int64(len(mgr.shards))
		debugf("%v handle %v bound to shard %v\n", mgr.logprefix, h.id, h.shard)
	}
	return mgr.shards[h.shard]
}

func (mgr *Manager) alloc(h *Handle, size, align int64) (api.Pointer, error) {
	mgr.checkreleased()
	if size < 0 {
		return api.Nilptr, ErrorInvalidSize
	} else if align == 0 {
		align = Minalign
	} else if !lib.Ispowerof2(align) || align > Maxalign {
		return api.Nilptr, ErrorInvalidAlign
	}

	if !mgr.enabled {
		atomic.AddInt64(&mgr.n_direct, 1)
		return mgr.fallbackalloc(size, align)
	}
	class, ok := Suitableclass(mgr.classes, size)
	if ok && mgr.classes[class].Align < align {
		class, ok = alignedclass(mgr.classes, class, align)
	}
	if !ok {
		atomic.AddInt64(&mgr.n_direct, 1)
		return mgr.fallbackalloc(size, align)
	}

	if ptr, ok := mgr.shardof(h).alloc(mgr, class); ok {
		return ptr, nil
	}
	return mgr.fallbackalloc(size, align)
}

func (mgr *Manager) fallbackalloc(size, align int64) (api.Pointer, error) {
	ptr, err := mgr.fallback.alloc(size, align)
	if err != nil {
		warnf("%v fallback alloc %v bytes: %v\n", mgr.logprefix, size, err)
	}
	return ptr, err
}

func (mgr *Manager) free(h *Handle, ptr api.Pointer) {
	mgr.checkreleased()
	switch {
	case ptr.IsNil():
		return

	case ptr.IsFallback():
		mgr.fallback.free(ptr, mgr.debug)
		return

	case ptr.IsSlab():
		owner, class := ptr.Shard(), ptr.Class()
		if owner >= int64(len(mgr.shards)) {
			if mgr.debug {
				panic(invalidfreef("%v shard out of range", ptr))
			}
			panicerr("free on pointer %v, shard out of range", ptr)
		} else if class >= int64(len(mgr.classes)) {
			if mgr.debug {
				panic(invalidfreef("%v size class out of range", ptr))
			}
			panicerr("free on pointer %v, size class out of range", ptr)
		}
		shard := mgr.shards[owner]
		if h.shard == owner {
			shard.freelocal(ptr, mgr.debug)
			return
		}
		shard.deferfree(ptr, mgr.rc.current(), mgr.debug)
		pending := atomic.AddInt64(&mgr.pending, 1)
		if mgr.threshold > 0 && pending >= mgr.threshold {
			select {
			case mgr.triggch <- true:
			default:
			}
		}
		return
	}
	if mgr.debug {
		panic(invalidfreef("%v is not a valid pointer", ptr))
	}
}

// Bytes return the memory backing ptr, can be called from any
// goroutine. For slab blocks the returned slice spans the whole size
// class, for fallback blocks it spans the requested size.
func (mgr *Manager) Bytes(ptr api.Pointer) []byte {
	switch {
	case ptr.IsSlab():
		return mgr.shards[ptr.Shard()].flists[ptr.Class()].bytes(ptr.Node())
	case ptr.IsFallback():
		return mgr.fallback.bytes(ptr)
	}
	return nil
}

// Usablesize return the number of bytes usable via ptr.
func (mgr *Manager) Usablesize(ptr api.Pointer) int64 {
	if ptr.IsSlab() {
		return mgr.classes[ptr.Class()].Size
	}
	return int64(len(mgr.Bytes(ptr)))
}

// Advanceepoch increment the global epoch and return the new value.
// Deferred frees become eligible for collection only after the epoch
// advances past their tag and every bracketed handle has moved on.
func (mgr *Manager) Advanceepoch() uint64 {
	atomic.AddInt64(&mgr.n_advances, 1)
	return mgr.rc.advance()
}

// Collectgarbage recycle reclaimable deferred frees of shard `id`,
// return the number of blocks recycled. Concurrent calls on the same
// shard do not block, all but one return ZERO.
func (mgr *Manager) Collectgarbage(id int64) int64 {
	if id < 0 || id >= int64(len(mgr.shards)) {
		return 0
	}
	return mgr.collectgarbage(mgr.shards[id])
}

// Collectall run Collectgarbage on every shard.
func (mgr *Manager) Collectall() int64 {
	var n int64
	for _, shard := range mgr.shards {
		n += mgr.collectgarbage(shard)
	}
	return n
}

func (mgr *Manager) collectgarbage(shard *Shard) int64 {
	global := mgr.rc.current()
	n := shard.collect(mgr.rc.minobserved(), global)
	if n > 0 {
		atomic.AddInt64(&mgr.pending, -n)
		debugf("%v shard %v reclaimed %v blocks at epoch %v\n", mgr.logprefix, shard.id, n, global)
	}
	return n
}

// Release all memory held by the manager. Outstanding pointers become
// invalid and the manager cannot be used after this call.
func (mgr *Manager) Release() {
	if !atomic.CompareAndSwapInt64(&mgr.released, 0, 1) {
		return
	}
	mgr.Stop()
	for _, shard := range mgr.shards {
		mgr.fallback.unslab(shard.release())
	}
	mgr.fallback.release()
	atomic.StoreInt64(&mgr.pending, 0)
	infof("%v released\n", mgr.logprefix)
}

func (mgr *Manager) checkreleased() {
	if atomic.LoadInt64(&mgr.released) > 0 {
		panicerr("%v already released", mgr.logprefix)
	}
}
