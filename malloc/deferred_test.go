package malloc

import "sync"
import "testing"

import "github.com/stretchr/testify/require"

import "github.com/theroutercompany/sydradb-sub002/api"

func TestDeferqueue(t *testing.T) {
	q := &deferqueue{}
	require.Empty(t, q.drain())

	for i := int64(0); i < 10; i++ {
		q.push(deferitem{ptr: api.Slabpointer(0, 0, i), epoch: uint64(i)})
	}
	require.Equal(t, int64(10), q.length())

	items := q.drain()
	require.Len(t, items, 10)
	require.Equal(t, int64(10), q.length(), "drain does not account")

	// producers keep pushing while consumer works.
	q.push(deferitem{ptr: api.Slabpointer(0, 0, 10), epoch: 10})

	keep := items[:0]
	for _, item := range items {
		if item.epoch >= 5 {
			keep = append(keep, item)
		}
	}
	q.requeue(keep, int64(len(items)-len(keep)))
	q.recycle(items)
	require.Equal(t, int64(6), q.length())

	items = q.drain()
	require.Len(t, items, 6)
	epochs := map[uint64]bool{}
	for _, item := range items {
		epochs[item.epoch] = true
	}
	for epoch := uint64(5); epoch <= 10; epoch++ {
		require.True(t, epochs[epoch], "missing epoch %v", epoch)
	}
	q.requeue(nil, 6)
	q.recycle(items)
	require.Equal(t, int64(0), q.length())
	require.Empty(t, q.drain())
}

func TestDeferqueueConcur(t *testing.T) {
	q := &deferqueue{}
	nproducers, repeat := 8, 10000

	var wg sync.WaitGroup
	wg.Add(nproducers)
	for n := 0; n < nproducers; n++ {
		go func(n int) {
			defer wg.Done()
			for i := 0; i < repeat; i++ {
				node := int64(n*repeat + i)
				q.push(deferitem{ptr: api.Slabpointer(0, 0, node)})
			}
		}(n)
	}

	seen := make(map[api.Pointer]bool)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	consume := func() {
		items := q.drain()
		for _, item := range items {
			require.False(t, seen[item.ptr], "duplicate %v", item.ptr)
			seen[item.ptr] = true
		}
		q.requeue(nil, int64(len(items)))
		q.recycle(items)
	}
loop:
	for {
		select {
		case <-done:
			break loop
		default:
			consume()
		}
	}
	consume()
	require.Len(t, seen, nproducers*repeat)
	require.Equal(t, int64(0), q.length())
}
