package device

import (
	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/samplerpool"
)

// CreateSampler implements spec.md §6's create_sampler, deduplicating
// against samplerpool's fixed-capacity LRU pool.
func (d *Device) CreateSampler(key gpu.SamplerKey) (*samplerpool.Sampler, error) {
	s, err := d.samplers.CreateSampler(key)
	if err != nil {
		return nil, wrap(KindResource, err, "device: create sampler")
	}
	return s, nil
}

// DefaultSampler returns the pool's always-resident default sampler
// (samplerpool's eviction never touches it).
func (d *Device) DefaultSampler() *samplerpool.Sampler {
	return d.samplers.Default()
}

// SamplerStats reports the pool's occupancy for get_memory_stats-style
// introspection callers.
func (d *Device) SamplerStats() samplerpool.Stats {
	return d.samplers.Stats()
}
