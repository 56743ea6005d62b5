package main

import "fmt"
import "sync"
import "time"
import "math/rand"

import hm "github.com/dustin/go-humanize"

import "github.com/theroutercompany/sydradb-sub002/api"
import "github.com/theroutercompany/sydradb-sub002/malloc"

type block struct {
	n    byte
	size int64
	ptr  api.Pointer
}

// churn allocate blocks of random size from `routines` go-routines,
// free a share of them locally and hand over the rest to freeing
// go-routines bound to other shards.
func churn(mgr *malloc.Manager) {
	var awg, fwg sync.WaitGroup

	chans := make([]chan block, 0, options.routines)
	for n := 0; n < options.routines; n++ {
		chans = append(chans, make(chan block, 1000))
	}

	finch := make(chan struct{})
	if options.housekeep {
		mgr.Start()
	} else {
		go advancer(mgr, finch)
	}
	if options.memtick > 0 {
		go memticker(mgr, finch)
	}

	awg.Add(options.routines)
	fwg.Add(options.routines)
	for n := 0; n < options.routines; n++ {
		go allocator(mgr, byte(n), chans, &awg)
		go freer(mgr, chans[n], &fwg)
	}
	awg.Wait()
	for _, ch := range chans {
		close(ch)
	}
	fwg.Wait()
	close(finch)
	mgr.Stop()

	// drain what is left over.
	mgr.Advanceepoch()
	mgr.Collectall()
}

func allocator(
	mgr *malloc.Manager, n byte, chans []chan block, wg *sync.WaitGroup) {

	defer wg.Done()

	h := mgr.Register()
	defer h.Close()

	rnd := rand.New(rand.NewSource(int64(n)))
	for i := 0; i < options.repeat; i++ {
		size := int64(rnd.Intn(options.maxsize))
		ptr, err := h.Alloc(size, 0)
		if err != nil {
			panic(err)
		}
		data := h.Bytes(ptr)
		for k := int64(0); k < size; k++ {
			data[k] = n
		}
		if rnd.Intn(100) >= options.cross {
			verify(h, block{n: n, size: size, ptr: ptr})
			h.Free(ptr)
			continue
		}
		chans[rnd.Intn(len(chans))] <- block{n: n, size: size, ptr: ptr}
	}
}

func freer(mgr *malloc.Manager, ch chan block, wg *sync.WaitGroup) {
	defer wg.Done()

	h := mgr.Register()
	defer h.Close()

	for blk := range ch {
		h.Enterepoch()
		verify(h, blk)
		h.Leaveepoch()
		h.Free(blk.ptr)
	}
}

func verify(h *malloc.Handle, blk block) {
	data := h.Bytes(blk.ptr)
	for k := int64(0); k < blk.size; k++ {
		if data[k] != blk.n {
			panic(fmt.Errorf("block %v corrupted at %v", blk.ptr, k))
		}
	}
}

func advancer(mgr *malloc.Manager, finch chan struct{}) {
	tick := time.NewTicker(time.Duration(options.tick) * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			mgr.Advanceepoch()
			mgr.Collectall()
		case <-finch:
			return
		}
	}
}

func memticker(mgr *malloc.Manager, finch chan struct{}) {
	tick := time.NewTicker(time.Duration(options.memtick) * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			ss := mgr.Stats()
			total := ss.Totals()
			fmt.Printf("epoch:%v allocs:%v pending:%v live:%v\n",
				ss.Globalepoch, hm.Comma(total.Allocs), hm.Comma(ss.Pending),
				hm.Bytes(uint64(ss.Livebytes())))
		case <-finch:
			return
		}
	}
}
