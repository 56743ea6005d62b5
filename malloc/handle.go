package malloc

import "github.com/theroutercompany/sydradb-sub002/api"

// Handle binds a goroutine to the Manager. It implements api.Mallocer
// and shall be used by a single goroutine. The handle is bound to a
// shard on its first allocation, and frees made through it on blocks
// owned by other shards are deferred to their owners.
type Handle struct {
	observed uint64 // 64-bit aligned, atomic access

	id    uint64
	mgr   *Manager
	shard int64 // -1 until first allocation
	depth int64 // nesting of epoch brackets
}

// Alloc implement api.Mallocer{} interface.
func (h *Handle) Alloc(size, align int64) (api.Pointer, error) {
	return h.mgr.alloc(h, size, align)
}

// Free implement api.Mallocer{} interface.
func (h *Handle) Free(ptr api.Pointer) {
	h.mgr.free(h, ptr)
}

// Bytes implement api.Mallocer{} interface.
func (h *Handle) Bytes(ptr api.Pointer) []byte {
	return h.mgr.Bytes(ptr)
}

// Enterepoch implement api.Epocher{} interface. Brackets can nest, only
// the outermost one observes the epoch.
func (h *Handle) Enterepoch() {
	if h.depth++; h.depth == 1 {
		h.mgr.rc.enter(h)
	}
}

// Leaveepoch implement api.Epocher{} interface.
func (h *Handle) Leaveepoch() {
	switch {
	case h.depth <= 0:
		panicerr("Leaveepoch() without Enterepoch()")
	case h.depth == 1:
		h.mgr.rc.leave(h)
	}
	h.depth--
}

// Shard return the shard bound to this handle, -1 if none.
func (h *Handle) Shard() int64 {
	return h.shard
}

// Close unregister the handle, it shall not be used after this call.
// Blocks allocated via this handle remain valid.
func (h *Handle) Close() {
	if h.depth > 0 {
		h.depth = 0
		h.mgr.rc.leave(h)
	}
	h.mgr.rc.unregister(h)
}
