// Package metrics exposes the core's runtime state as Prometheus
// collectors: the memory allocator's per-type allocation/usage, the
// submission queue's pending-job depth, the built-in frame pacer's
// latency/sleep distribution, and per-fence wait/timeout counts
// (SPEC_FULL.md's [AMBIENT] metrics package).
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dxvkgo/core/fence"
	"github.com/dxvkgo/core/memalloc"
	"github.com/dxvkgo/core/submit"
)

// Collector implements prometheus.Collector over a live Device's
// subsystems. Unlike most collectors it keeps no internal counters of
// its own: every Collect call reads straight through to
// memalloc.Allocator.Stats, submit.Queue.PendingJobs,
// submit.BuiltinTracker.Stats/LastFrameID and each tracked fence's
// WaitCounts, so a scrape always reflects the allocator/queue/tracker's
// current state rather than a snapshot cached at registration time.
type Collector struct {
	allocator *memalloc.Allocator
	queue     *submit.Queue
	tracker   *submit.BuiltinTracker
	fences    func() []*fence.Fence

	memAllocated *prometheus.Desc
	memUsed      *prometheus.Desc
	memChunks    *prometheus.Desc

	queueDepth *prometheus.Desc

	frameLatency *prometheus.Desc
	sleepTime    *prometheus.Desc

	fenceWaits    *prometheus.Desc
	fenceTimeouts *prometheus.Desc
}

// Device is the narrow slice of *device.Device this collector needs.
// device.Device satisfies it; it is an interface here so metrics never
// imports device, avoiding an import cycle (device could reasonably
// want to expose a /metrics handler of its own someday).
type Device interface {
	MemoryAllocator() *memalloc.Allocator
	Queue() *submit.Queue
	Tracker() *submit.BuiltinTracker
	Fences() []*fence.Fence
}

// NewCollector builds a Collector over dev. Register it with a
// prometheus.Registry the usual way:
//
//	reg.MustRegister(metrics.NewCollector(dev))
func NewCollector(dev Device) *Collector {
	return &Collector{
		allocator: dev.MemoryAllocator(),
		queue:     dev.Queue(),
		tracker:   dev.Tracker(),
		fences:    dev.Fences,

		memAllocated: prometheus.NewDesc(
			"dxvkcore_memory_allocated_bytes",
			"Bytes currently allocated from the device, per memory type.",
			[]string{"type_index"}, nil,
		),
		memUsed: prometheus.NewDesc(
			"dxvkcore_memory_used_bytes",
			"Bytes of allocated memory currently handed out to resources, per memory type.",
			[]string{"type_index"}, nil,
		),
		memChunks: prometheus.NewDesc(
			"dxvkcore_memory_chunk_count",
			"Number of chunks backing a memory type's pools.",
			[]string{"type_index"}, nil,
		),
		queueDepth: prometheus.NewDesc(
			"dxvkcore_submission_queue_depth",
			"Submit/present jobs enqueued but not yet issued to the device queue.",
			nil, nil,
		),
		frameLatency: prometheus.NewDesc(
			"dxvkcore_frame_latency_seconds",
			"Measured latency (frame start to GPU present) of the most recently completed frame.",
			nil, nil,
		),
		sleepTime: prometheus.NewDesc(
			"dxvkcore_frame_pacer_sleep_seconds",
			"Time the frame pacer slept before beginning the most recently completed frame.",
			nil, nil,
		),
		fenceWaits: prometheus.NewDesc(
			"dxvkcore_fence_waits_total",
			"Total Wait calls served across every fence this device has created.",
			nil, nil,
		),
		fenceTimeouts: prometheus.NewDesc(
			"dxvkcore_fence_wait_timeouts_total",
			"Total Wait calls that returned without the requested value being reached.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.memAllocated
	ch <- c.memUsed
	ch <- c.memChunks
	ch <- c.queueDepth
	ch <- c.frameLatency
	ch <- c.sleepTime
	ch <- c.fenceWaits
	ch <- c.fenceTimeouts
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.allocator.Stats() {
		label := strconv.Itoa(s.TypeIndex)
		ch <- prometheus.MustNewConstMetric(c.memAllocated, prometheus.GaugeValue, float64(s.Allocated), label)
		ch <- prometheus.MustNewConstMetric(c.memUsed, prometheus.GaugeValue, float64(s.Used), label)
		ch <- prometheus.MustNewConstMetric(c.memChunks, prometheus.GaugeValue, float64(s.ChunkCount), label)
	}

	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(c.queue.PendingJobs()))

	stats := c.tracker.Stats(c.tracker.LastFrameID())
	ch <- prometheus.MustNewConstMetric(c.frameLatency, prometheus.GaugeValue, stats.FrameLatency.Seconds())
	ch <- prometheus.MustNewConstMetric(c.sleepTime, prometheus.GaugeValue, stats.SleepDuration.Seconds())

	var waits, timeouts uint64
	for _, f := range c.fences() {
		w, t := f.WaitCounts()
		waits += w
		timeouts += t
	}
	ch <- prometheus.MustNewConstMetric(c.fenceWaits, prometheus.CounterValue, float64(waits))
	ch <- prometheus.MustNewConstMetric(c.fenceTimeouts, prometheus.CounterValue, float64(timeouts))
}
