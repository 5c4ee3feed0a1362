package samplerpool

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dxvkgo/core/internal/gpu"
)

// MaxSamplerCount is the Vulkan-guaranteed lower bound on the number of
// live sampler objects a device must support (DxvkSamplerPool::MaxSamplerCount).
const MaxSamplerCount = 4000

// MinSamplerCount is the smallest capacity Pool accepts.
const MinSamplerCount = 1024

// Stats reports sampler pool occupancy (DxvkSamplerStats).
type Stats struct {
	TotalCount int32
	LiveCount  int32
}

type entry struct {
	sampler          *Sampler
	lruPrev, lruNext int32
}

// Pool is a fixed-capacity cache of device samplers keyed by
// gpu.SamplerKey, with least-recently-released eviction, grounded on
// DxvkSamplerPool. Unreferenced samplers are kept alive in an LRU list
// instead of being destroyed immediately, so that a sampler requested
// again shortly after its last release does not pay for a fresh device
// object.
type Pool struct {
	dev gpu.SamplerDevice
	log *logrus.Logger

	mu       sync.Mutex
	capacity int32
	entries  []entry
	lut      map[gpu.SamplerKey]int32

	lruHead, lruTail int32

	live  atomic.Int32
	total atomic.Int32

	def *Sampler
}

// New builds a pool with room for capacity distinct samplers and
// creates the pool's persistent default sampler. capacity must be at
// least MinSamplerCount.
func New(dev gpu.SamplerDevice, log *logrus.Logger, capacity uint32) (*Pool, error) {
	if capacity < MinSamplerCount {
		return nil, errors.Errorf("samplerpool: capacity %d below minimum %d", capacity, MinSamplerCount)
	}

	p := &Pool{
		dev:      dev,
		log:      log,
		capacity: int32(capacity),
		entries:  make([]entry, capacity),
		lut:      make(map[gpu.SamplerKey]int32, capacity),
		lruHead:  0,
		lruTail:  int32(capacity) - 1,
	}

	// Every slot starts out unused, so every slot starts out in the
	// LRU list: it is immediately eligible to be claimed by the first
	// CreateSampler calls.
	for i := range p.entries {
		if i > 0 {
			p.entries[i].lruPrev = int32(i) - 1
		} else {
			p.entries[i].lruPrev = -1
		}
		if i+1 < len(p.entries) {
			p.entries[i].lruNext = int32(i) + 1
		} else {
			p.entries[i].lruNext = -1
		}
	}

	def, err := p.createLocked(DefaultKey())
	if err != nil {
		return nil, errors.Wrap(err, "samplerpool: create default sampler")
	}
	p.def = def

	return p, nil
}

// Stats returns current sampler counts. The result may be stale by the
// time the caller reads it.
func (p *Pool) Stats() Stats {
	return Stats{TotalCount: p.total.Load(), LiveCount: p.live.Load()}
}

// Default returns the pool's always-live fallback sampler.
func (p *Pool) Default() *Sampler { return p.def }

// CreateSampler returns the sampler for key, creating and caching a new
// device object on a miss, incrementing the existing one's reference
// count on a hit. If the pool is full and every entry is referenced,
// the fallback default sampler is returned instead and a warning is
// logged (DxvkSamplerPool::createSampler).
func (p *Pool) CreateSampler(key gpu.SamplerKey) (*Sampler, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createLocked(key)
}

func (p *Pool) createLocked(key gpu.SamplerKey) (*Sampler, error) {
	if idx, ok := p.lut[key]; ok {
		s := p.entries[idx].sampler
		if s.refCount.Add(1) == 1 {
			p.removeLRU(idx)
			p.live.Add(1)
		}
		return s, nil
	}

	if p.lruHead < 0 {
		if p.log != nil {
			p.log.Warn("samplerpool: exhausted, falling back to default sampler")
		}
		// The caller is handed a reference like any other return from
		// this function and is expected to DecRef it once; bump the
		// default's count so it never reaches zero from normal use
		// (DxvkSamplerPool::createSampler's Rc<> copy on this path
		// implicitly does the same via incRef).
		if p.def != nil {
			p.def.IncRef()
		}
		return p.def, nil
	}

	idx := p.lruHead
	e := &p.entries[idx]
	if e.sampler != nil {
		delete(p.lut, e.sampler.key)
		p.dev.DestroySampler(e.sampler.handle)
		e.sampler = nil
	}
	p.removeLRU(idx)

	handle, err := p.dev.CreateSampler(key)
	if err != nil {
		// Leave the slot out of the LRU list; it was already removed
		// above and has no live sampler, so a later CreateSampler on a
		// different key may still reuse it once re-linked on retry.
		p.appendLRU(idx)
		return nil, errors.Wrap(err, "samplerpool: create sampler")
	}

	s := &Sampler{pool: p, index: idx, key: key, handle: handle}
	s.refCount.Store(1)
	e.sampler = s
	p.lut[key] = idx

	p.total.Add(1)
	p.live.Add(1)
	return s, nil
}

// release is called by Sampler.DecRef once a sampler's reference count
// reaches zero. It does not destroy the sampler: it appends the slot to
// the LRU list so the object stays alive (and cheaply re-acquirable)
// until capacity pressure evicts it (DxvkSamplerPool::releaseSampler).
func (p *Pool) release(index int32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.live.Add(-1)

	e := &p.entries[index]
	if e.sampler == nil || e.sampler.refCount.Load() != 0 {
		// Reacquired again before the release reached the lock.
		return
	}
	if p.inLRU(index) {
		return
	}
	p.appendLRU(index)
}

func (p *Pool) inLRU(index int32) bool {
	return p.entries[index].lruPrev >= 0 || p.lruHead == index
}

func (p *Pool) appendLRU(index int32) {
	e := &p.entries[index]
	e.lruPrev = p.lruTail
	e.lruNext = -1

	if p.lruTail >= 0 {
		p.entries[p.lruTail].lruNext = index
	} else {
		p.lruHead = index
	}
	p.lruTail = index
}

func (p *Pool) removeLRU(index int32) {
	e := &p.entries[index]

	if e.lruPrev >= 0 {
		p.entries[e.lruPrev].lruNext = e.lruNext
	} else if p.lruHead == index {
		p.lruHead = e.lruNext
	}

	if e.lruNext >= 0 {
		p.entries[e.lruNext].lruPrev = e.lruPrev
	} else if p.lruTail == index {
		p.lruTail = e.lruPrev
	}

	e.lruPrev = -1
	e.lruNext = -1
}
