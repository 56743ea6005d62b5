package lib

import "fmt"
import "unsafe"
import "encoding/json"

// Prettystats uses json.MarshalIndent, if pretty is true, instead of
// json.Marshal. If Marshal return error Prettystats will panic.
func Prettystats(stats map[string]interface{}, pretty bool) string {
	if pretty {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			panic(err)
		}
		return string(data)
	}
	data, err := json.Marshal(stats)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Ispowerof2 return true if x is a power of two.
func Ispowerof2(x int64) bool {
	return x > 0 && (x&(x-1)) == 0
}

// Alignup round up x to the next multiple of align, align must be a
// power of two.
func Alignup(x, align int64) int64 {
	return (x + align - 1) &^ (align - 1)
}

// Largestpow2 return the largest power of two that divides x, x must
// be positive.
func Largestpow2(x int64) int64 {
	return x & -x
}

// Alignedbytes allocate a byte-slice of length size whose first byte is
// aligned to `align` bytes, align must be a power of two.
func Alignedbytes(size, align int64) []byte {
	if !Ispowerof2(align) {
		panic(fmt.Errorf("alignment %v is not a power of 2", align))
	}
	raw := make([]byte, size+align-1)
	if len(raw) == 0 {
		return raw
	}
	base := uintptr(unsafe.Pointer(&raw[0]))
	off := int64(uintptr(Alignup(int64(base), align)) - base)
	return raw[off : off+size : off+size]
}

// Address return the address of the first byte in block, zero for an
// empty block.
func Address(block []byte) uintptr {
	if cap(block) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&block[:1][0]))
}
