package malloc

import "runtime"

import "github.com/cloudfoundry/gosigar"
import s "github.com/bnclabs/gosettings"

import "github.com/theroutercompany/sydradb-sub002/api"

// Sizeinterval minblock and maxblock should be multiples of Sizeinterval,
// and size classes are spaced by multiples of Sizeinterval.
const Sizeinterval = int64(16)

// MEMUtilization is the ratio between allocated memory to application
// and useful memory carved out of slabs.
const MEMUtilization = float64(0.95)

// Slabalign every slab starts at an address aligned to Slabalign, which
// is also the largest alignment guaranteed for a slab block.
const Slabalign = int64(64)

// Minalign alignment assumed when caller passes zero.
const Minalign = int64(8)

// Maxalign largest alignment accepted from caller.
const Maxalign = int64(4096)

// Maxcapacity upper bound on fallback capacity, a single Go heap
// allocation cannot exceed this.
const Maxcapacity = int64(1 << 46)

// Maxslabsize maximum size of a single slab.
const Maxslabsize = int64(16 * 1024 * 1024)

// Defaultcapacity used as fallback capacity when free memory cannot be
// learnt from the system.
const Defaultcapacity = int64(1024 * 1024 * 1024 * 1024)

// Defaultsettings for a Manager.
//
// "mode" (string, default: "enabled")
//		If "disabled", every request is forwarded to the fallback
//		allocator.
//
// "shards" (int64, default: GOMAXPROCS)
//		Number of shards, ZERO disables sharding and every request is
//		forwarded to the fallback allocator.
//
// "minblock" (int64, default: <api.MinBlocksize>)
//		Smallest size class.
//
// "maxblock" (int64, default: <api.MaxBlocksize>)
//		Largest size class, larger requests go to the fallback.
//
// "slab.size" (int64, default: 65536)
//		Bytes per slab, each slab is carved into nodes of a single
//		size class.
//
// "slab.maxcount" (int64, default: 1024)
//		Maximum number of slabs per size class per shard. Once reached,
//		requests for that class are forwarded to the fallback.
//
// "fallback.capacity" (int64, default: free RAM)
//		Memory the fallback allocator can hand out, including slabs.
//
// "epoch.tick" (int64, default: 100)
//		Time period, in millisecond, for the housekeeper to advance the
//		epoch and collect deferred frees. Applicable after Start().
//
// "epoch.threshold" (int64, default: 4096)
//		Wake up the housekeeper when these many frees are pending
//		across all shards. ZERO disables the trigger.
//
// "debug" (bool, default: false, true with debug build tag)
//		Validate every free, panic with ErrorInvalidFree on violation.
func Defaultsettings() s.Settings {
	_, _, free := getsysmem()
	capacity := int64(free)
	if capacity <= 0 {
		capacity = Defaultcapacity
	} else if capacity > Maxcapacity {
		capacity = Maxcapacity
	}
	return s.Settings{
		"mode":              "enabled",
		"shards":            int64(runtime.GOMAXPROCS(0)),
		"minblock":          api.MinBlocksize,
		"maxblock":          api.MaxBlocksize,
		"slab.size":         int64(64 * 1024),
		"slab.maxcount":     int64(1024),
		"fallback.capacity": capacity,
		"epoch.tick":        int64(100), // 100 millisecond
		"epoch.threshold":   int64(4096),
		"debug":             debugbuild,
	}
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}
