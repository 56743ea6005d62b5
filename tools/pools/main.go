package main

import "os"
import "fmt"
import "flag"
import "time"
import "runtime/pprof"

import hm "github.com/dustin/go-humanize"
import s "github.com/bnclabs/gosettings"

import "github.com/theroutercompany/sydradb-sub002/lib"
import "github.com/theroutercompany/sydradb-sub002/malloc"

var options struct {
	minblock  int
	maxblock  int
	shards    int
	routines  int
	repeat    int
	maxsize   int
	cross     int
	slabsize  int
	tick      int
	memtick   int
	churn     bool
	housekeep bool
	stats     bool
	pprof     string
	httpaddr  string
}

func argParse() {
	flag.IntVar(&options.minblock, "minblock", 16,
		"minimum block size")
	flag.IntVar(&options.maxblock, "maxblock", 256,
		"maximum block size")
	flag.BoolVar(&options.churn, "churn", false,
		"run allocation churn after printing size classes")
	flag.IntVar(&options.shards, "shards", 4,
		"number of shards, 0 to disable sharding")
	flag.IntVar(&options.routines, "routines", 8,
		"number of allocating go-routines, as many freeing go-routines")
	flag.IntVar(&options.repeat, "repeat", 100000,
		"allocations per go-routine")
	flag.IntVar(&options.maxsize, "maxsize", 320,
		"allocate sizes between [0,maxsize)")
	flag.IntVar(&options.cross, "cross", 50,
		"percentage of blocks freed by another go-routine")
	flag.IntVar(&options.slabsize, "slabsize", 64*1024,
		"bytes per slab")
	flag.IntVar(&options.tick, "tick", 100,
		"epoch tick in ms, for housekeeper")
	flag.BoolVar(&options.housekeep, "housekeep", true,
		"start housekeeper, else advance epochs from the harness")
	flag.IntVar(&options.memtick, "memtick", 0,
		"log allocator stats for every tick, in ms")
	flag.BoolVar(&options.stats, "stats", false,
		"dump full stats at the end of churn")
	flag.StringVar(&options.pprof, "pprof", "",
		"dump cpu-profile to file")
	flag.StringVar(&options.httpaddr, "http", "",
		"serve prometheus metrics on address, while churning")
	flag.Parse()
}

func main() {
	argParse()
	if err := tellutilization(); err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	if options.churn == false {
		return
	}

	if options.pprof != "" {
		fd, err := os.Create(options.pprof)
		if err != nil {
			fmt.Printf("unable to create %q: %v\n", options.pprof, err)
			os.Exit(1)
		}
		defer fd.Close()
		pprof.StartCPUProfile(fd)
		defer pprof.StopCPUProfile()
	}

	setts := s.Settings{
		"shards":     int64(options.shards),
		"minblock":   int64(options.minblock),
		"maxblock":   int64(options.maxblock),
		"slab.size":  int64(options.slabsize),
		"epoch.tick": int64(options.tick),
	}
	mgr, err := malloc.NewManager("pools", setts)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	defer mgr.Release()

	if options.httpaddr != "" {
		go servemetrics(mgr, options.httpaddr)
	}

	now := time.Now()
	churn(mgr)
	took := time.Since(now)
	report(mgr, took)
}

func tellutilization() error {
	classes, err := malloc.Sizeclasses(
		int64(options.minblock), int64(options.maxblock))
	if err != nil {
		return err
	}
	fmt.Println(options.minblock, options.maxblock)
	for i, class := range classes {
		from := int64(0)
		if i > 0 {
			from = classes[i-1].Size
		}
		u := (float64(from+class.Size) / 2.0) / float64(class.Size)
		fmsg := "class %2v size %6v align %2v util %.3f\n"
		fmt.Printf(fmsg, class.Index, class.Size, class.Align, u)
	}
	fmt.Printf("total %v size classes\n", len(classes))
	return nil
}

func report(mgr *malloc.Manager, took time.Duration) {
	ss := mgr.Stats()
	total := ss.Totals()
	allocs := int64(options.routines * options.repeat)
	fmt.Printf("took %v for %v allocations, %v per op\n",
		took, hm.Comma(allocs), took/time.Duration(allocs))
	fmt.Printf("shards:%v hits:%v misses:%v direct:%v\n",
		len(ss.Shards), hm.Comma(total.Hits), hm.Comma(total.Misses),
		hm.Comma(ss.Direct))
	fmt.Printf("deferred:%v reclaimed:%v gcpasses:%v epoch:%v\n",
		hm.Comma(total.Deferredtotal), hm.Comma(total.Reclaimed),
		hm.Comma(total.Gcpasses), ss.Globalepoch)
	fmt.Printf("contended:%v wait:%v maxwait:%v\n",
		hm.Comma(total.Contended), time.Duration(total.Waitns),
		time.Duration(total.Maxwaitns))
	fb := ss.Fallback
	fmt.Printf("fallback allocs:%v slabs:%v slabmem:%v ooms:%v\n",
		hm.Comma(fb.Allocs), hm.Comma(fb.Slabs),
		hm.Bytes(uint64(fb.Slabbytes)), hm.Comma(fb.Ooms))
	fmt.Printf("livebytes:%v\n", hm.Bytes(uint64(ss.Livebytes())))
	if options.stats {
		fmt.Println(lib.Prettystats(ss.Map(), true))
	}
}
