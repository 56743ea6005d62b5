package malloc

import "sync"
import "sync/atomic"

// inactive is the observed epoch of a handle outside any bracket.
const inactive = ^uint64(0)

// reclaimer track the global epoch and the epochs observed by every
// registered handle. A deferred free tagged with epoch `e` can be
// recycled once the minimum observed epoch is greater than `e`.
type reclaimer struct {
	globalepoch uint64 // 64-bit aligned
	nextid      uint64

	mu      sync.RWMutex
	handles map[uint64]*Handle
}

func newreclaimer() *reclaimer {
	return &reclaimer{handles: make(map[uint64]*Handle)}
}

func (rc *reclaimer) current() uint64 {
	return atomic.LoadUint64(&rc.globalepoch)
}

func (rc *reclaimer) advance() uint64 {
	return atomic.AddUint64(&rc.globalepoch, 1)
}

func (rc *reclaimer) register(h *Handle) {
	rc.mu.Lock()
	rc.nextid++
	h.id = rc.nextid
	rc.handles[h.id] = h
	rc.mu.Unlock()
}

func (rc *reclaimer) unregister(h *Handle) {
	rc.mu.Lock()
	delete(rc.handles, h.id)
	rc.mu.Unlock()
}

func (rc *reclaimer) count() int64 {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return int64(len(rc.handles))
}

// enter publish the current global epoch as observed by `h`. Retry
// until the published value is the current epoch, so that a reclaimer
// scanning after enter returns cannot miss it.
func (rc *reclaimer) enter(h *Handle) {
	for {
		epoch := rc.current()
		atomic.StoreUint64(&h.observed, epoch)
		if rc.current() == epoch {
			return
		}
	}
}

func (rc *reclaimer) leave(h *Handle) {
	atomic.StoreUint64(&h.observed, inactive)
}

// minobserved return the smallest epoch observed by handles inside a
// bracket, global epoch if there are none.
func (rc *reclaimer) minobserved() uint64 {
	min := rc.current()
	rc.mu.RLock()
	for _, h := range rc.handles {
		if epoch := atomic.LoadUint64(&h.observed); epoch < min {
			min = epoch
		}
	}
	rc.mu.RUnlock()
	return min
}

func reclaimable(epoch, minobserved uint64) bool {
	return minobserved > epoch
}
