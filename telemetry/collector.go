// Package telemetry export allocator statistics as prometheus metrics.
// Metrics are computed from a fresh snapshot on every scrape, there is
// no state kept between scrapes.
package telemetry

import "strconv"

import "github.com/prometheus/client_golang/prometheus"

import "github.com/theroutercompany/sydradb-sub002/malloc"

// Statser is the source of allocator snapshots, implemented by
// *malloc.Manager.
type Statser interface {
	Stats() malloc.Snapshot
}

type shardmetric struct {
	desc  *prometheus.Desc
	vtype prometheus.ValueType
	value func(ss malloc.Shardstats) float64
}

// Collector implement prometheus.Collector{} interface.
type Collector struct {
	src Statser

	shardmetrics []shardmetric
	occupancy    *prometheus.Desc
	capacity     *prometheus.Desc

	globalepoch *prometheus.Desc
	minobserved *prometheus.Desc
	handles     *prometheus.Desc
	pending     *prometheus.Desc
	direct      *prometheus.Desc
	livebytes   *prometheus.Desc

	fballocs    *prometheus.Desc
	fbfrees     *prometheus.Desc
	fbooms      *prometheus.Desc
	fballocated *prometheus.Desc
	fbslabbytes *prometheus.Desc
	fbcapacity  *prometheus.Desc
	fbsizes     *prometheus.Desc
}

// NewCollector create a collector for allocator statistics, metric
// names are prefixed with `namespace`.
func NewCollector(namespace string, src Statser) *Collector {
	shardlabels := []string{"shard"}
	classlabels := []string{"shard", "class"}
	desc := func(subsystem, name, help string, labels []string) *prometheus.Desc {
		fqname := prometheus.BuildFQName(namespace, subsystem, name)
		return prometheus.NewDesc(fqname, help, labels, nil)
	}
	shardcounter := func(name, help string, fn func(malloc.Shardstats) float64) shardmetric {
		return shardmetric{
			desc:  desc("shard", name, help, shardlabels),
			vtype: prometheus.CounterValue,
			value: fn,
		}
	}
	shardgauge := func(name, help string, fn func(malloc.Shardstats) float64) shardmetric {
		return shardmetric{
			desc:  desc("shard", name, help, shardlabels),
			vtype: prometheus.GaugeValue,
			value: fn,
		}
	}

	c := &Collector{src: src}
	c.shardmetrics = []shardmetric{
		shardcounter("allocs_total", "Allocations routed to shard.",
			func(ss malloc.Shardstats) float64 { return float64(ss.Allocs) }),
		shardcounter("frees_total", "Blocks returned to shard free lists.",
			func(ss malloc.Shardstats) float64 { return float64(ss.Frees) }),
		shardcounter("hits_total", "Allocations served from shard slabs.",
			func(ss malloc.Shardstats) float64 { return float64(ss.Hits) }),
		shardcounter("misses_total", "Allocations forwarded to fallback on exhausted class.",
			func(ss malloc.Shardstats) float64 { return float64(ss.Misses) }),
		shardcounter("slabs_total", "Slabs carved by shard.",
			func(ss malloc.Shardstats) float64 { return float64(ss.Slabs) }),
		shardcounter("deferred_total", "Cross-shard frees queued on shard.",
			func(ss malloc.Shardstats) float64 { return float64(ss.Deferredtotal) }),
		shardcounter("reclaimed_total", "Deferred frees recycled by garbage collection.",
			func(ss malloc.Shardstats) float64 { return float64(ss.Reclaimed) }),
		shardcounter("gc_passes_total", "Garbage collection passes.",
			func(ss malloc.Shardstats) float64 { return float64(ss.Gcpasses) }),
		shardcounter("contended_total", "Contended acquisitions of shard lock.",
			func(ss malloc.Shardstats) float64 { return float64(ss.Contended) }),
		shardcounter("contention_wait_seconds_total", "Time spent waiting for shard lock.",
			func(ss malloc.Shardstats) float64 { return float64(ss.Waitns) / 1e9 }),
		shardgauge("deferred", "Cross-shard frees pending on shard.",
			func(ss malloc.Shardstats) float64 { return float64(ss.Deferred) }),
		shardgauge("epoch", "Global epoch observed by latest garbage collection.",
			func(ss malloc.Shardstats) float64 { return float64(ss.Epoch) }),
	}
	c.occupancy = desc("class", "allocated_nodes", "Allocated nodes per size class.", classlabels)
	c.capacity = desc("class", "capacity_nodes", "Carved nodes per size class.", classlabels)

	c.globalepoch = desc("", "global_epoch", "Global reclamation epoch.", nil)
	c.minobserved = desc("", "min_observed_epoch", "Smallest epoch observed by readers.", nil)
	c.handles = desc("", "handles", "Registered handles.", nil)
	c.pending = desc("", "deferred_pending", "Deferred frees pending across shards.", nil)
	c.direct = desc("", "direct_total", "Requests forwarded to fallback without touching shards.", nil)
	c.livebytes = desc("", "live_bytes", "Bytes held by live allocations.", nil)

	c.fballocs = desc("fallback", "allocs_total", "Fallback allocations.", nil)
	c.fbfrees = desc("fallback", "frees_total", "Fallback frees.", nil)
	c.fbooms = desc("fallback", "out_of_memory_total", "Requests failed for want of capacity.", nil)
	c.fballocated = desc("fallback", "allocated_bytes", "Bytes held by fallback allocations.", nil)
	c.fbslabbytes = desc("fallback", "slab_bytes", "Bytes held by slabs.", nil)
	c.fbcapacity = desc("fallback", "capacity_bytes", "Fallback capacity.", nil)
	c.fbsizes = desc("fallback", "request_size_bytes", "Size of fallback allocations.", nil)
	return c
}

// Describe implement prometheus.Collector{} interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.shardmetrics {
		ch <- m.desc
	}
	descs := []*prometheus.Desc{
		c.occupancy, c.capacity, c.globalepoch, c.minobserved, c.handles,
		c.pending, c.direct, c.livebytes, c.fballocs, c.fbfrees, c.fbooms,
		c.fballocated, c.fbslabbytes, c.fbcapacity, c.fbsizes,
	}
	for _, desc := range descs {
		ch <- desc
	}
}

// Collect implement prometheus.Collector{} interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ss := c.src.Stats()

	for _, shard := range ss.Shards {
		id := strconv.Itoa(int(shard.Id))
		for _, m := range c.shardmetrics {
			ch <- prometheus.MustNewConstMetric(m.desc, m.vtype, m.value(shard), id)
		}
		for _, class := range shard.Classes {
			size := strconv.Itoa(int(class.Size))
			ch <- prometheus.MustNewConstMetric(
				c.occupancy, prometheus.GaugeValue, float64(class.Allocated), id, size)
			ch <- prometheus.MustNewConstMetric(
				c.capacity, prometheus.GaugeValue, float64(class.Capacity), id, size)
		}
	}

	gauge := func(desc *prometheus.Desc, value float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value)
	}
	counter := func(desc *prometheus.Desc, value float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, value)
	}
	gauge(c.globalepoch, float64(ss.Globalepoch))
	gauge(c.minobserved, float64(ss.Minobserved))
	gauge(c.handles, float64(ss.Handles))
	gauge(c.pending, float64(ss.Pending))
	counter(c.direct, float64(ss.Direct))
	gauge(c.livebytes, float64(ss.Livebytes()))

	fb := ss.Fallback
	counter(c.fballocs, float64(fb.Allocs))
	counter(c.fbfrees, float64(fb.Frees))
	counter(c.fbooms, float64(fb.Ooms))
	gauge(c.fballocated, float64(fb.Allocated))
	gauge(c.fbslabbytes, float64(fb.Slabbytes))
	gauge(c.fbcapacity, float64(fb.Capacity))

	count, buckets := sizebuckets(fb.Sizes)
	ch <- prometheus.MustNewConstHistogram(
		c.fbsizes, count, float64(fb.Sizesum), buckets)
}

// sizebuckets convert cumulative histogram, where key `k` counts
// samples less than `k`, into prometheus buckets counting samples less
// than or equal to the bucket bound. Samples are whole bytes.
func sizebuckets(sizes map[string]int64) (uint64, map[float64]uint64) {
	buckets := make(map[float64]uint64)
	count := uint64(0)
	for key, value := range sizes {
		if key == "+" {
			count = uint64(value)
			continue
		}
		bound, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		buckets[float64(bound-1)] = uint64(value)
	}
	return count, buckets
}
