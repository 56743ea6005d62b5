package api

import "fmt"

// Pointer is a handle to a block of memory managed by the allocator. It
// is not an address, use Mallocer.Bytes() to access memory. Zero value
// is a nil pointer.
//
//	bit 63     : block is served by the fallback allocator.
//	bit 62     : block is served by a shard's slab.
//	bits 46-61 : owning shard (slab blocks).
//	bits 38-45 : size class index (slab blocks).
//	bits 0-37  : node index within size class (slab blocks) or
//	             block id (fallback blocks).
type Pointer uint64

// Nilptr is the nil pointer.
const Nilptr = Pointer(0)

const (
	ptrFallback = uint64(1) << 63
	ptrSlab     = uint64(1) << 62
	shardShift  = 46
	classShift  = 38
	shardMask   = uint64(0xffff)
	classMask   = uint64(0xff)
	nodeMask    = (uint64(1) << classShift) - 1
	idMask      = ptrSlab - 1
)

// MaxShards maximum number of shards that can be addressed by a Pointer.
const MaxShards = int64(shardMask) + 1

// MaxClasses maximum number of size classes that can be addressed by a
// Pointer.
const MaxClasses = int64(classMask) + 1

// MaxNodes maximum number of nodes, per size class per shard, that can
// be addressed by a Pointer.
const MaxNodes = int64(nodeMask) + 1

// Slabpointer compose a pointer to a slab node.
func Slabpointer(shard, class, node int64) Pointer {
	p := ptrSlab | (uint64(shard)&shardMask)<<shardShift
	p |= (uint64(class) & classMask) << classShift
	return Pointer(p | (uint64(node) & nodeMask))
}

// Fallbackpointer compose a pointer to a fallback block.
func Fallbackpointer(id uint64) Pointer {
	return Pointer(ptrFallback | (id & idMask))
}

// IsNil return true for nil pointer.
func (ptr Pointer) IsNil() bool {
	return ptr == Nilptr
}

// IsSlab return true if pointer refers to a shard's slab node.
func (ptr Pointer) IsSlab() bool {
	return uint64(ptr)&ptrSlab != 0 && uint64(ptr)&ptrFallback == 0
}

// IsFallback return true if pointer refers to a fallback block.
func (ptr Pointer) IsFallback() bool {
	return uint64(ptr)&ptrFallback != 0
}

// Shard owning this pointer, valid only for slab pointers.
func (ptr Pointer) Shard() int64 {
	return int64((uint64(ptr) >> shardShift) & shardMask)
}

// Class index of this pointer, valid only for slab pointers.
func (ptr Pointer) Class() int64 {
	return int64((uint64(ptr) >> classShift) & classMask)
}

// Node index of this pointer, valid only for slab pointers.
func (ptr Pointer) Node() int64 {
	return int64(uint64(ptr) & nodeMask)
}

// Blockid of this pointer, valid only for fallback pointers.
func (ptr Pointer) Blockid() uint64 {
	return uint64(ptr) & idMask
}

func (ptr Pointer) String() string {
	switch {
	case ptr.IsNil():
		return "nil"
	case ptr.IsFallback():
		return fmt.Sprintf("fallback:%v", ptr.Blockid())
	}
	return fmt.Sprintf("%v:%v:%v", ptr.Shard(), ptr.Class(), ptr.Node())
}
