package device

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dxvkgo/core/fence"
	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/memalloc"
	"github.com/dxvkgo/core/resource"
	"github.com/dxvkgo/core/samplerpool"
	"github.com/dxvkgo/core/shadercache"
	"github.com/dxvkgo/core/submit"
)

// latencyTolerance is the built-in tracker's sleep-estimate slack
// (DxvkBuiltInLatencyTracker's constructor default in
// original_source/src/dxvk/dxvk_latency_builtin.cpp).
const latencyTolerance = 1 * time.Millisecond

// Config configures a Device. Every field has a usable zero value
// except Device itself, which New always requires.
type Config struct {
	Log *logrus.Logger

	// SamplerCapacity is the sampler pool's fixed slot count; defaults
	// to samplerpool.MinSamplerCount if zero.
	SamplerCapacity uint32

	// QueueIndex selects which device queue the submission thread
	// serializes against (spec.md §5: "externally synchronized
	// per-queue").
	QueueIndex int

	// ShaderCacheEnabled/ShaderCacheDir mirror dxvkenv.ShaderCacheEnabled/
	// ShaderCachePath; the caller reads the environment, Device only
	// consumes the resolved values so it stays testable without env
	// mutation.
	ShaderCacheEnabled bool
	ShaderCacheDir     string

	// MaxFrameRate feeds the built-in latency tracker's forced cap
	// (dxvkenv.MaxFrameRate). Zero means uncapped.
	MaxFrameRate float64
}

func (c Config) withDefaults() Config {
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}
	if c.SamplerCapacity == 0 {
		c.SamplerCapacity = samplerpool.MinSamplerCount
	}
	return c
}

// Device composes every subsystem behind the single contract spec.md
// §6 lists: Memory Allocator, Resource Allocation/Views, Sampler Pool,
// Fence, Submission Queue & Frame Pacer, and the Shader Cache. It owns
// their lifecycles — construction order here mirrors the dependency
// chain each subsystem's own constructor requires (memalloc before
// resource, a raw gpu.Device throughout).
type Device struct {
	dev gpu.Device
	log *logrus.Logger

	memory     *memalloc.Allocator
	resources  *resource.Manager
	samplers   *samplerpool.Pool
	queue      *submit.Queue
	queueIndex int
	cmdPool    *submit.CommandListPool
	tracker    *submit.BuiltinTracker
	cache      *shadercache.Cache

	mu           sync.Mutex
	sparse       map[uint64]*sparseBinding
	fences       map[*fence.Fence]struct{}
	frameCounter uint64
	closeMu      sync.Once
}

// New builds a Device over dev, starting the memory allocator's
// evictor, the submission thread and, if enabled, the shader cache's
// background writer.
func New(dev gpu.Device, cfg Config) (*Device, error) {
	cfg = cfg.withDefaults()

	memory := memalloc.New(dev, cfg.Log)
	memory.StartEvictor()

	samplers, err := samplerpool.New(dev, cfg.Log, cfg.SamplerCapacity)
	if err != nil {
		memory.Close()
		return nil, wrap(KindResource, err, "device: create sampler pool")
	}

	d := &Device{
		dev:        dev,
		log:        cfg.Log,
		memory:     memory,
		resources:  resource.NewManager(dev, memory),
		samplers:   samplers,
		queue:      submit.NewQueue(dev, cfg.QueueIndex, cfg.Log),
		queueIndex: cfg.QueueIndex,
		cmdPool:    submit.NewCommandListPool(dev),
		tracker:    submit.NewBuiltinTracker(latencyTolerance, cfg.MaxFrameRate),
		sparse:     make(map[uint64]*sparseBinding),
		fences:     make(map[*fence.Fence]struct{}),
	}

	if cfg.ShaderCacheEnabled {
		cache, err := shadercache.Open(cfg.ShaderCacheDir, cfg.Log.WithField("component", "shadercache"))
		if err != nil {
			// Lazy/transparent disable per spec.md §6: a cache that
			// fails to open is not a Device construction failure.
			cfg.Log.WithError(err).Warn("device: shader cache disabled")
		} else {
			d.cache = cache
		}
	}

	return d, nil
}

// Close tears down every subsystem in reverse dependency order. It is
// safe to call more than once.
func (d *Device) Close() {
	d.closeMu.Do(func() {
		if d.cache != nil {
			d.cache.Close()
		}
		// Draining the queue waits for every already-enqueued submit/
		// present to be issued before the command-list pool frees
		// anything they might still reference (spec.md §7 "Shutdown
		// during module detach ... skip synchronization, only
		// device-idle wait").
		if err := d.queue.WaitForIdle(); err != nil {
			d.log.WithError(err).Warn("device: wait for idle failed during close")
		}
		d.queue.Close()
		d.cmdPool.Close()
		d.memory.Close()
	})
}

// MemoryStats reports get_memory_stats(heap) → {allocated, used} for
// every memory type backed by heap, aggregated across the allocator's
// per-type pools (spec.md §6/§8 "sum(per-type allocated) ==
// sum(per-heap allocated)").
type MemoryStats struct {
	Allocated int64
	Used      int64
}

// GetMemoryStats implements spec.md §6's get_memory_stats(heap),
// aggregating every memory type belonging to heap (spec.md §8's
// invariant "sum(per-type allocated) == sum(per-heap allocated)" is
// exactly what this sum computes).
func (d *Device) GetMemoryStats(heap int) MemoryStats {
	heapOf := make(map[int]int, len(d.dev.MemoryTypes()))
	for _, mt := range d.dev.MemoryTypes() {
		heapOf[mt.Index] = mt.HeapIndex
	}

	var out MemoryStats
	for _, s := range d.memory.Stats() {
		if heapOf[s.TypeIndex] != heap {
			continue
		}
		out.Allocated += s.Allocated
		out.Used += s.Used
	}
	return out
}

// MemoryAllocator exposes the underlying allocator for package
// metrics's per-type gauges; nothing else outside this package should
// need it.
func (d *Device) MemoryAllocator() *memalloc.Allocator { return d.memory }

// Queue exposes the submission queue for package metrics's pending-job
// gauge.
func (d *Device) Queue() *submit.Queue { return d.queue }

// Tracker exposes the built-in frame pacer for package metrics's
// latency histogram.
func (d *Device) Tracker() *submit.BuiltinTracker { return d.tracker }

// WaitForIdle implements spec.md §6's wait_for_idle(): drain the
// submission queue, then lock it and wait for the device queue to go
// idle (submit.Queue.WaitForIdle already implements exactly this
// ordering).
func (d *Device) WaitForIdle() error {
	if err := d.queue.WaitForIdle(); err != nil {
		return wrap(KindSubmission, err, "device: wait for idle")
	}
	return nil
}
