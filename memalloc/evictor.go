package memalloc

import "time"

// evictionInterval matches spec.md §4.1's "background worker wakes
// every second".
const evictionInterval = time.Second

// maxUnusedIdle matches spec.md §4.1's "haven't been touched for 20s".
const maxUnusedIdle = 20 * time.Second

// StartEvictor launches the background chunk-trimming worker. Callers
// (package device) invoke this once per Allocator; Close stops it.
func (a *Allocator) StartEvictor() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(evictionInterval)
		defer t.Stop()
		for {
			select {
			case <-a.stop:
				return
			case <-t.C:
				a.evictAll()
			}
		}
	}()
}

func (a *Allocator) evictAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.types {
		a.evictPoolLocked(&a.types[i], a.types[i].devicePool)
		a.evictPoolLocked(&a.types[i], a.types[i].mappedPool)
	}
}

// drainEmptyLocked frees every currently-empty chunk unconditionally,
// ignoring the idle/size/unused-ratio policy evictPoolLocked applies
// during normal operation. Caller holds a.mu.
func (a *Allocator) drainEmptyLocked() {
	for i := range a.types {
		for _, p := range []*pool{a.types[i].devicePool, a.types[i].mappedPool} {
			kept := p.chunks[:0]
			for _, c := range p.chunks {
				if c.empty() {
					a.dev.FreeMemory(c.mem)
					p.allocated -= c.size
					continue
				}
				kept = append(kept, c)
			}
			p.chunks = kept
		}
	}
}

// evictHeapLocked is the preemptive path taken when an allocation is
// about to fail and the owning heap's budget usage exceeds 80% (spec.md
// §4.1): it forces an eviction pass restricted to that heap's types
// before the caller retries.
func (a *Allocator) evictHeapLocked(heapIndex int) {
	budget, usage := a.dev.HeapBudget(heapIndex)
	if budget <= 0 || float64(usage)/float64(budget) < 0.8 {
		return
	}
	for i := range a.types {
		if a.types[i].info.HeapIndex != heapIndex {
			continue
		}
		a.evictPoolLocked(&a.types[i], a.types[i].devicePool)
		a.evictPoolLocked(&a.types[i], a.types[i].mappedPool)
	}
}

// evictPoolLocked frees empty chunks that are smaller than the pool's
// current growth target, exceed the unused-memory policy (1x device
// pools, 4x mapped pools), or have been idle for maxUnusedIdle (spec.md
// §4.1 "Chunk eviction"). Caller holds a.mu.
func (a *Allocator) evictPoolLocked(mt *memType, p *pool) {
	now := a.now()
	maxUnused := 1.0
	if p.mappable {
		maxUnused = 4.0
	}

	kept := p.chunks[:0]
	for _, c := range p.chunks {
		if !c.empty() {
			kept = append(kept, c)
			continue
		}
		if c.unusedAt.IsZero() {
			c.unusedAt = now
			kept = append(kept, c)
			continue
		}

		idleTooLong := now.Sub(c.unusedAt) >= maxUnusedIdle
		tooSmall := c.size < p.nextChunkSize
		excessUnused := float64(p.allocated-p.used) > maxUnused*float64(p.used+1)

		if idleTooLong || tooSmall || excessUnused {
			a.dev.FreeMemory(c.mem)
			p.allocated -= c.size
			continue
		}
		kept = append(kept, c)
	}
	p.chunks = kept
}

// MemoryTypeStats reports aggregate allocation stats for one memory
// type (spec.md §4.1 "get_stats").
type MemoryTypeStats struct {
	TypeIndex  int
	Allocated  int64
	Used       int64
	ChunkCount int
}

// Stats reports per-type allocation stats across the allocator
// (spec.md §8 invariant: "sum(per-type allocated) == sum(per-heap
// allocated); used <= allocated at all times").
func (a *Allocator) Stats() []MemoryTypeStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]MemoryTypeStats, len(a.types))
	for i, mt := range a.types {
		out[i] = MemoryTypeStats{
			TypeIndex:  i,
			Allocated:  mt.devicePool.allocated + mt.mappedPool.allocated,
			Used:       mt.devicePool.used + mt.mappedPool.used,
			ChunkCount: len(mt.devicePool.chunks) + len(mt.mappedPool.chunks),
		}
	}
	return out
}
