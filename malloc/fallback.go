package malloc

import "sync"
import "sync/atomic"

import "github.com/theroutercompany/sydradb-sub002/api"
import "github.com/theroutercompany/sydradb-sub002/lib"

// Fallback allocator serve requests that cannot be served from slabs,
// oversized or over-aligned requests, requests on an exhausted size
// class and every request when sharding is disabled. It also supplies
// memory for new slabs. Memory is taken from Go heap and accounted
// against a fixed capacity.
type Fallback struct {
	// 64-bit aligned stats
	used       int64 // allocated + slabbytes
	allocated  int64
	slabbytes  int64
	n_allocs   int64
	n_frees    int64
	n_slabs    int64
	n_ooms     int64
	n_released int64
	capacity   int64

	mu      sync.RWMutex
	nextid  uint64
	blocks  map[uint64][]byte
	h_sizes *lib.HistogramInt64
}

func newfallback(capacity, maxblock int64) *Fallback {
	till := 4 * maxblock
	if till < 1024 {
		till = 1024
	}
	return &Fallback{
		capacity: capacity,
		blocks:   make(map[uint64][]byte),
		h_sizes:  lib.NewhistogramInt64(0, till, Sizeinterval),
	}
}

// reserve size bytes against capacity, pad is the extra memory needed
// to align the block and must also fit within capacity.
func (fb *Fallback) reserve(size, pad int64) error {
	for {
		used := atomic.LoadInt64(&fb.used)
		if size > fb.capacity-used-pad {
			atomic.AddInt64(&fb.n_ooms, 1)
			return ErrorOutofMemory
		} else if atomic.CompareAndSwapInt64(&fb.used, used, used+size) {
			return nil
		}
	}
}

func (fb *Fallback) alloc(size, align int64) (api.Pointer, error) {
	if err := fb.reserve(size, align-1); err != nil {
		return api.Nilptr, err
	}
	block := lib.Alignedbytes(size, align)
	initblock(block)

	fb.mu.Lock()
	fb.nextid++
	id := fb.nextid
	fb.blocks[id] = block
	fb.h_sizes.Add(size)
	fb.mu.Unlock()

	atomic.AddInt64(&fb.allocated, size)
	atomic.AddInt64(&fb.n_allocs, 1)
	return api.Fallbackpointer(id), nil
}

func (fb *Fallback) free(ptr api.Pointer, debug bool) {
	id := ptr.Blockid()
	fb.mu.Lock()
	block, ok := fb.blocks[id]
	delete(fb.blocks, id)
	fb.mu.Unlock()

	if !ok {
		if debug {
			panic(invalidfreef("%v unknown block", ptr))
		}
		return
	}
	size := int64(len(block))
	atomic.AddInt64(&fb.used, -size)
	atomic.AddInt64(&fb.allocated, -size)
	atomic.AddInt64(&fb.n_frees, 1)
}

func (fb *Fallback) bytes(ptr api.Pointer) []byte {
	fb.mu.RLock()
	block := fb.blocks[ptr.Blockid()]
	fb.mu.RUnlock()
	return block
}

// slab allocate memory for a new slab, aligned to Slabalign. Slabs are
// not counted as fallback allocations.
func (fb *Fallback) slab(size int64) ([]byte, error) {
	if err := fb.reserve(size, 0); err != nil {
		return nil, err
	}
	atomic.AddInt64(&fb.slabbytes, size)
	atomic.AddInt64(&fb.n_slabs, 1)
	return lib.Alignedbytes(size, Slabalign), nil
}

// unslab account for slab memory given back on release.
func (fb *Fallback) unslab(size int64) {
	atomic.AddInt64(&fb.used, -size)
	atomic.AddInt64(&fb.slabbytes, -size)
}

func (fb *Fallback) release() {
	fb.mu.Lock()
	released := int64(len(fb.blocks))
	for _, block := range fb.blocks {
		atomic.AddInt64(&fb.used, -int64(len(block)))
		atomic.AddInt64(&fb.allocated, -int64(len(block)))
	}
	fb.blocks = make(map[uint64][]byte)
	fb.mu.Unlock()
	atomic.AddInt64(&fb.n_released, released)
}
