package vkdev

/*
#include <vulkan/vulkan.h>
*/
import "C"

import "github.com/dxvkgo/core/internal/gpu"

func convFilter(f uint8) C.VkFilter {
	if f == 1 {
		return C.VK_FILTER_LINEAR
	}
	return C.VK_FILTER_NEAREST
}

func convMipFilter(f uint8) C.VkSamplerMipmapMode {
	if f == 1 {
		return C.VK_SAMPLER_MIPMAP_MODE_LINEAR
	}
	return C.VK_SAMPLER_MIPMAP_MODE_NEAREST
}

func convAddrMode(am uint8) C.VkSamplerAddressMode {
	switch am {
	case 1:
		return C.VK_SAMPLER_ADDRESS_MODE_MIRRORED_REPEAT
	case 2:
		return C.VK_SAMPLER_ADDRESS_MODE_CLAMP_TO_EDGE
	case 3:
		return C.VK_SAMPLER_ADDRESS_MODE_CLAMP_TO_BORDER
	default:
		return C.VK_SAMPLER_ADDRESS_MODE_REPEAT
	}
}

func convCompareOp(op uint8) C.VkCompareOp {
	// Ordering mirrors package samplerpool's CompareOp* constants,
	// the encoding gpu.SamplerKey.CompareOp carries: never, less,
	// equal, less-equal, greater, not-equal, greater-equal, always.
	ops := [...]C.VkCompareOp{
		C.VK_COMPARE_OP_NEVER,
		C.VK_COMPARE_OP_LESS,
		C.VK_COMPARE_OP_EQUAL,
		C.VK_COMPARE_OP_LESS_OR_EQUAL,
		C.VK_COMPARE_OP_GREATER,
		C.VK_COMPARE_OP_NOT_EQUAL,
		C.VK_COMPARE_OP_GREATER_OR_EQUAL,
		C.VK_COMPARE_OP_ALWAYS,
	}
	if int(op) < len(ops) {
		return ops[op]
	}
	return C.VK_COMPARE_OP_ALWAYS
}

func convBorderColor(bc uint8) C.VkBorderColor {
	colors := [...]C.VkBorderColor{
		C.VK_BORDER_COLOR_FLOAT_TRANSPARENT_BLACK,
		C.VK_BORDER_COLOR_FLOAT_OPAQUE_BLACK,
		C.VK_BORDER_COLOR_FLOAT_OPAQUE_WHITE,
	}
	if int(bc) < len(colors) {
		return colors[bc]
	}
	return C.VK_BORDER_COLOR_FLOAT_OPAQUE_BLACK
}

func (d *Device) CreateSampler(key gpu.SamplerKey) (gpu.Sampler, error) {
	info := C.VkSamplerCreateInfo{
		sType:            C.VK_STRUCTURE_TYPE_SAMPLER_CREATE_INFO,
		magFilter:        convFilter(key.MagFilter),
		minFilter:        convFilter(key.MinFilter),
		mipmapMode:       convMipFilter(key.MipFilter),
		addressModeU:     convAddrMode(key.AddrU),
		addressModeV:     convAddrMode(key.AddrV),
		addressModeW:     convAddrMode(key.AddrW),
		minLod:           C.float(key.MinLOD),
		maxLod:           C.float(key.MaxLOD),
		borderColor:      convBorderColor(key.BorderColor),
		compareOp:        convCompareOp(key.CompareOp),
	}
	if key.CompareEnable {
		info.compareEnable = C.VK_TRUE
	}
	if key.MaxAniso > 1 {
		info.anisotropyEnable = C.VK_TRUE
		info.maxAnisotropy = C.float(key.MaxAniso)
	}
	var s C.VkSampler
	if err := checkResult(C.vkCreateSampler(d.dev, &info, nil, &s)); err != nil {
		return gpu.Sampler{}, err
	}
	handle := d.h().alloc()
	d.h().mu.Lock()
	d.h().smpl[handle] = s
	d.h().mu.Unlock()
	return gpu.Sampler{Handle: handle}, nil
}

func (d *Device) DestroySampler(s gpu.Sampler) {
	d.h().mu.Lock()
	vs, ok := d.h().smpl[s.Handle]
	delete(d.h().smpl, s.Handle)
	d.h().mu.Unlock()
	if ok {
		C.vkDestroySampler(d.dev, vs, nil)
	}
}
