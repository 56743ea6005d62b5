//go:build debug

package malloc

// initbyte fill pattern for newly allocated blocks, a non-zero pattern
// makes reads of uninitialized memory stand out.
const initbyte = byte(0xff)

const debugbuild = true

func initblock(block []byte) {
	for i := range block {
		block[i] = initbyte
	}
}
