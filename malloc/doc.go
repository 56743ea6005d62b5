// Package malloc supplies a sharded small-object allocator for the
// ingest and query paths of the storage engine, with a limited scope:
//
//   - Blocks between a pre-configured minimum and maximum size are
//     served from per-shard slabs, anything else is forwarded to the
//     fallback allocator.
//   - Each goroutine registers a Handle with the Manager, the handle is
//     bound to a shard on its first allocation and stays there.
//   - Memory is allocated in slabs, of several kilobytes, where each slab
//     is carved into nodes of the same size class. Slabs are never given
//     back individually, they are released along with the Manager.
//   - Memory is addressed by api.Pointer handles, which are indices into
//     slabs, and not by raw addresses. Use Bytes() to access them.
//   - Blocks freed by a goroutine bound to a different shard are queued
//     on the owning shard and recycled only after every goroutine that
//     could be observing them has left its epoch. Epochs advance only
//     when the application calls Advanceepoch(), or when it starts the
//     housekeeper via Start(). Without either, deferred memory grows
//     without bound.
//   - Blocks served from slabs are aligned to the largest power of two
//     dividing their size class, upto 64 bytes.
//
// Manager is the entry point. It is safe for concurrent use, while
// Handle is not and shall be owned by a single goroutine.
//
// Related packages: api holds the narrow Mallocer and Epocher interfaces
// consumed by the rest of the engine, along with Pointer; lib holds
// histograms, averages and alignment helpers; telemetry exports a
// Snapshot as prometheus metrics; tools/pools prints size classes with
// their memory utilization and runs allocation churn.
package malloc
