// Package samplerpool implements the bounded, LRU-managed sampler
// cache described in spec.md §4.7, grounded on
// original_source/src/dxvk/dxvk_sampler.{h,cpp}'s DxvkSamplerKey,
// DxvkSampler and DxvkSamplerPool.
package samplerpool

import "github.com/dxvkgo/core/internal/gpu"

// Filter values for gpu.SamplerKey.MinFilter/MagFilter.
const (
	FilterNearest uint8 = iota
	FilterLinear
)

// Mip filter values for gpu.SamplerKey.MipFilter.
const (
	MipModeNearest uint8 = iota
	MipModeLinear
)

// Address mode values for gpu.SamplerKey.AddrU/AddrV/AddrW.
const (
	AddrModeRepeat uint8 = iota
	AddrModeMirroredRepeat
	AddrModeClampToEdge
	AddrModeClampToBorder
)

// Compare op values for gpu.SamplerKey.CompareOp.
const (
	CompareOpNever uint8 = iota
	CompareOpLess
	CompareOpEqual
	CompareOpLessOrEqual
	CompareOpGreater
	CompareOpNotEqual
	CompareOpGreaterOrEqual
	CompareOpAlways
)

// Border color values for gpu.SamplerKey.BorderColor.
const (
	BorderColorTransparentBlack uint8 = iota
	BorderColorOpaqueBlack
	BorderColorOpaqueWhite
)

// DefaultKey returns the pool's implicit default sampler key: linear
// filtering, clamp-to-edge addressing, and the widest LOD range
// (DxvkSamplerPool's constructor).
func DefaultKey() gpu.SamplerKey {
	return gpu.SamplerKey{
		MinFilter: FilterLinear,
		MagFilter: FilterLinear,
		MipFilter: MipModeLinear,
		AddrU:     AddrModeClampToEdge,
		AddrV:     AddrModeClampToEdge,
		AddrW:     AddrModeClampToEdge,
		MinLOD:    -256,
		MaxLOD:    256,
	}
}
