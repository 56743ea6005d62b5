package malloc

import "sort"

import "github.com/theroutercompany/sydradb-sub002/api"
import "github.com/theroutercompany/sydradb-sub002/lib"

// Sizeclass of blocks served from slabs.
type Sizeclass struct {
	Index int64
	Size  int64
	// Align largest power of two dividing Size, upto Slabalign.
	Align int64
}

// Sizeclasses generate size classes between minblock and maxblock, to
// acheive MEMUtilization.
func Sizeclasses(minblock, maxblock int64) ([]Sizeclass, error) {
	sizes, err := Blocksizes(minblock, maxblock)
	if err != nil {
		return nil, err
	} else if int64(len(sizes)) > api.MaxClasses {
		fmsg := "%v size classes exceed %v"
		return nil, misconfigf(fmsg, len(sizes), api.MaxClasses)
	}
	classes := make([]Sizeclass, 0, len(sizes))
	for i, size := range sizes {
		align := lib.Largestpow2(size)
		if align > Slabalign {
			align = Slabalign
		}
		classes = append(classes, Sizeclass{
			Index: int64(i), Size: size, Align: align,
		})
	}
	return classes, nil
}

// Blocksizes generate suitable block-sizes between minblock-size and
// maxblock-size, to acheive MEMUtilization.
func Blocksizes(minblock, maxblock int64) ([]int64, error) {
	if minblock <= 0 {
		return nil, misconfigf("minblock %v must be positive", minblock)
	} else if maxblock < minblock {
		return nil, misconfigf("minblock %v > maxblock %v", minblock, maxblock)
	} else if (minblock % Sizeinterval) != 0 {
		fmsg := "minblock %v is not multiple of %v"
		return nil, misconfigf(fmsg, minblock, Sizeinterval)
	} else if (maxblock % Sizeinterval) != 0 {
		fmsg := "maxblock %v is not multiple of %v"
		return nil, misconfigf(fmsg, maxblock, Sizeinterval)
	}

	nextsize := func(from int64) int64 {
		addby := int64(float64(from) * (1.0 - MEMUtilization))
		if addby <= Sizeinterval {
			addby = Sizeinterval
		} else if addby%Sizeinterval != 0 {
			addby = (addby / Sizeinterval) * Sizeinterval
		}
		size := from + addby
		for (float64(from+size)/2.0)/float64(size) > MEMUtilization {
			size += addby
		}
		return size
	}

	sizes := make([]int64, 0, 64)
	for size := minblock; size < maxblock; {
		sizes = append(sizes, size)
		size = nextsize(size)
	}
	sizes = append(sizes, maxblock)
	return sizes, nil
}

// Suitableclass pick the smallest class that can hold `size` bytes,
// return false if size is larger than the largest class.
func Suitableclass(classes []Sizeclass, size int64) (int64, bool) {
	i := sort.Search(len(classes), func(i int) bool {
		return classes[i].Size >= size
	})
	if i == len(classes) {
		return -1, false
	}
	return int64(i), true
}

// alignedclass pick the smallest class, starting from `from`, whose
// blocks are aligned atleast to `align`.
func alignedclass(classes []Sizeclass, from, align int64) (int64, bool) {
	for i := from; i < int64(len(classes)); i++ {
		if classes[i].Align >= align {
			return i, true
		}
	}
	return -1, false
}
