package samplerpool

import (
	"sync/atomic"

	"github.com/dxvkgo/core/internal/gpu"
)

// Sampler is a reference to a pool-managed sampler object, grounded on
// DxvkSampler. The zero value is not usable; every Sampler comes from
// Pool.CreateSampler.
type Sampler struct {
	pool  *Pool
	index int32

	key    gpu.SamplerKey
	handle gpu.Sampler

	refCount atomic.Int64
}

// Handle returns the underlying device sampler object.
func (s *Sampler) Handle() gpu.Sampler { return s.handle }

// Key returns the properties this sampler was created from.
func (s *Sampler) Key() gpu.SamplerKey { return s.key }

// IncRef adds a reference to the sampler (DxvkSampler::incRef). Callers
// that hand out an already-acquired Sampler to more than one owner must
// call this once per additional owner.
func (s *Sampler) IncRef() {
	s.refCount.Add(1)
}

// DecRef drops a reference. Once the count reaches zero the sampler is
// returned to the pool's LRU list, eligible for eviction or reuse
// (DxvkSampler::decRef).
func (s *Sampler) DecRef() {
	if s.refCount.Add(-1) == 0 {
		s.pool.release(s.index)
	}
}
