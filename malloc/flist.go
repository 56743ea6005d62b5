package malloc

import "sync/atomic"

import "github.com/theroutercompany/sydradb-sub002/api"

const (
	nodeFree uint8 = iota
	nodeAllocated
	nodeDeferred
)

// slab is a block of memory carved into nodes of the same size.
type slab struct {
	mem   []byte
	next  []int64 // free-list links, global node index or -1.
	state []uint8
}

// flist manage slabs of a single size class for a single shard. All
// mutations are serialized by the shard's lock, while the slab table is
// published copy-on-write so that blocks can be read from any goroutine.
type flist struct {
	// 64-bit aligned, read by stats without the shard's lock.
	n_nodes     int64
	n_free      int64
	n_allocated int64
	n_slabs     int64

	class    Sizeclass
	shard    int64
	nodes    int64 // per slab
	maxslabs int64
	head     int64
	slabs    atomic.Pointer[[]*slab]
}

func newflist(shard int64, class Sizeclass, slabsize, maxslabs int64) *flist {
	fl := &flist{
		class:    class,
		shard:    shard,
		nodes:    slabsize / class.Size,
		maxslabs: maxslabs,
		head:     -1,
	}
	slabs := make([]*slab, 0)
	fl.slabs.Store(&slabs)
	return fl
}

func (fl *flist) cangrow() bool {
	return atomic.LoadInt64(&fl.n_slabs) < fl.maxslabs
}

// grow add a new slab backed by `mem` and link all its nodes to the
// free list, such that nodes are popped in ascending order.
func (fl *flist) grow(mem []byte) {
	old := *fl.slabs.Load()
	base := int64(len(old)) * fl.nodes
	sl := &slab{
		mem:   mem,
		next:  make([]int64, fl.nodes),
		state: make([]uint8, fl.nodes),
	}
	for i := fl.nodes - 1; i >= 0; i-- {
		sl.next[i] = fl.head
		fl.head = base + i
	}
	slabs := make([]*slab, len(old), len(old)+1)
	copy(slabs, old)
	slabs = append(slabs, sl)
	fl.slabs.Store(&slabs)

	atomic.AddInt64(&fl.n_slabs, 1)
	atomic.AddInt64(&fl.n_nodes, fl.nodes)
	atomic.AddInt64(&fl.n_free, fl.nodes)
}

func (fl *flist) pop() (int64, bool) {
	if fl.head < 0 {
		return -1, false
	}
	node := fl.head
	sl, off := fl.locate(node)
	fl.head, sl.next[off] = sl.next[off], -1
	sl.state[off] = nodeAllocated
	atomic.AddInt64(&fl.n_free, -1)
	atomic.AddInt64(&fl.n_allocated, 1)
	return node, true
}

func (fl *flist) push(node int64) {
	sl, off := fl.locate(node)
	sl.next[off], fl.head = fl.head, node
	sl.state[off] = nodeFree
	atomic.AddInt64(&fl.n_free, 1)
	atomic.AddInt64(&fl.n_allocated, -1)
}

func (fl *flist) locate(node int64) (*slab, int64) {
	slabs := *fl.slabs.Load()
	return slabs[node/fl.nodes], node % fl.nodes
}

func (fl *flist) bytes(node int64) []byte {
	sl, off := fl.locate(node)
	start, end := off*fl.class.Size, (off+1)*fl.class.Size
	return sl.mem[start:end:end]
}

// checkfree validate that `ptr` can be freed, node shall be allocated.
func (fl *flist) checkfree(ptr api.Pointer) error {
	node := ptr.Node()
	if node >= atomic.LoadInt64(&fl.n_nodes) {
		return invalidfreef("%v node out of range", ptr)
	}
	sl, off := fl.locate(node)
	switch sl.state[off] {
	case nodeFree:
		return invalidfreef("%v node is free", ptr)
	case nodeDeferred:
		return invalidfreef("%v node is already freed", ptr)
	}
	return nil
}

func (fl *flist) markdeferred(node int64) {
	sl, off := fl.locate(node)
	sl.state[off] = nodeDeferred
}

func (fl *flist) slabcount() int64 {
	return atomic.LoadInt64(&fl.n_slabs)
}

// info return capacity, free and allocated nodes.
func (fl *flist) info() (capacity, free, allocated int64) {
	capacity = atomic.LoadInt64(&fl.n_nodes)
	free = atomic.LoadInt64(&fl.n_free)
	allocated = atomic.LoadInt64(&fl.n_allocated)
	return capacity, free, allocated
}

// release all slabs, return the number of bytes released.
func (fl *flist) release() int64 {
	var released int64
	for _, sl := range *fl.slabs.Load() {
		released += int64(len(sl.mem))
	}
	slabs := make([]*slab, 0)
	fl.slabs.Store(&slabs)
	fl.head = -1
	atomic.StoreInt64(&fl.n_nodes, 0)
	atomic.StoreInt64(&fl.n_free, 0)
	atomic.StoreInt64(&fl.n_allocated, 0)
	atomic.StoreInt64(&fl.n_slabs, 0)
	return released
}
