package malloc

import "sync"
import "sync/atomic"

import "github.com/theroutercompany/sydradb-sub002/api"

type deferitem struct {
	ptr   api.Pointer
	epoch uint64
}

// deferqueue is a multi-producer single-consumer queue of frees made by
// goroutines bound to other shards. Producers append to `put` under
// lock, the consumer swaps it with its spare buffer and works on it
// without holding the lock.
type deferqueue struct {
	count int64 // 64-bit aligned

	mu    sync.Mutex
	put   []deferitem
	spare []deferitem // owned by consumer
}

func (q *deferqueue) push(item deferitem) {
	q.mu.Lock()
	q.put = append(q.put, item)
	q.mu.Unlock()
	atomic.AddInt64(&q.count, 1)
}

// drain shall be called by the consumer, items returned are owned by
// the consumer until handed back via recycle.
func (q *deferqueue) drain() []deferitem {
	q.mu.Lock()
	items := q.put
	q.put = q.spare[:0]
	q.mu.Unlock()
	q.spare = nil
	return items
}

// requeue items that could not be reclaimed, and account for the ones
// that were.
func (q *deferqueue) requeue(items []deferitem, reclaimed int64) {
	if len(items) > 0 {
		q.mu.Lock()
		q.put = append(q.put, items...)
		q.mu.Unlock()
	}
	atomic.AddInt64(&q.count, -reclaimed)
}

func (q *deferqueue) recycle(items []deferitem) {
	q.spare = items[:0]
}

func (q *deferqueue) length() int64 {
	return atomic.LoadInt64(&q.count)
}
