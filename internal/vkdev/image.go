package vkdev

/*
#include <vulkan/vulkan.h>
*/
import "C"

import (
	"github.com/dxvkgo/core/internal/gpu"
)

func vkImageType(t gpu.ImageType) C.VkImageType {
	switch t {
	case gpu.Image1D:
		return C.VK_IMAGE_TYPE_1D
	case gpu.Image3D:
		return C.VK_IMAGE_TYPE_3D
	default:
		return C.VK_IMAGE_TYPE_2D
	}
}

func vkImageUsage(u gpu.ImageUsage) C.VkImageUsageFlags {
	var f C.VkImageUsageFlags
	if u&gpu.ImageTransferSrc != 0 {
		f |= C.VK_IMAGE_USAGE_TRANSFER_SRC_BIT
	}
	if u&gpu.ImageTransferDst != 0 {
		f |= C.VK_IMAGE_USAGE_TRANSFER_DST_BIT
	}
	if u&gpu.ImageSampled != 0 {
		f |= C.VK_IMAGE_USAGE_SAMPLED_BIT
	}
	if u&gpu.ImageStorage != 0 {
		f |= C.VK_IMAGE_USAGE_STORAGE_BIT
	}
	if u&gpu.ImageColorTarget != 0 {
		f |= C.VK_IMAGE_USAGE_COLOR_ATTACHMENT_BIT
	}
	if u&gpu.ImageDepthStencilTarget != 0 {
		f |= C.VK_IMAGE_USAGE_DEPTH_STENCIL_ATTACHMENT_BIT
	}
	return f
}

func vkTiling(t gpu.Tiling) C.VkImageTiling {
	if t == gpu.TilingLinear {
		return C.VK_IMAGE_TILING_LINEAR
	}
	return C.VK_IMAGE_TILING_OPTIMAL
}

func (d *Device) CreateImage(info gpu.ImageCreateInfo) (gpu.Image, error) {
	cinfo := C.VkImageCreateInfo{
		sType: C.VK_STRUCTURE_TYPE_IMAGE_CREATE_INFO,
		imageType: vkImageType(info.Type),
		format:    C.VkFormat(info.Format),
		extent: C.VkExtent3D{
			width:  C.uint32_t(info.Extent.Width),
			height: C.uint32_t(info.Extent.Height),
			depth:  C.uint32_t(info.Extent.Depth),
		},
		mipLevels:   C.uint32_t(info.MipLevels),
		arrayLayers: C.uint32_t(info.Layers),
		samples:     C.VkSampleCountFlagBits(info.Samples),
		tiling:      vkTiling(info.Tiling),
		usage:       vkImageUsage(info.Usage),
		sharingMode: C.VK_SHARING_MODE_EXCLUSIVE,
		initialLayout: C.VK_IMAGE_LAYOUT_UNDEFINED,
	}
	if info.Sparse {
		cinfo.flags |= C.VK_IMAGE_CREATE_SPARSE_BINDING_BIT | C.VK_IMAGE_CREATE_SPARSE_RESIDENCY_BIT
	}
	var img C.VkImage
	if err := checkResult(C.vkCreateImage(d.dev, &cinfo, nil, &img)); err != nil {
		return gpu.Image{}, err
	}
	handle := d.h().alloc()
	d.h().mu.Lock()
	d.h().imgs[handle] = img
	d.h().mu.Unlock()
	return gpu.Image{Handle: handle}, nil
}

func (d *Device) DestroyImage(i gpu.Image) {
	d.h().mu.Lock()
	img, ok := d.h().imgs[i.Handle]
	delete(d.h().imgs, i.Handle)
	d.h().mu.Unlock()
	if ok {
		C.vkDestroyImage(d.dev, img, nil)
	}
}

func (d *Device) ImageMemoryRequirements(i gpu.Image) gpu.MemoryRequirements {
	d.h().mu.Lock()
	img := d.h().imgs[i.Handle]
	d.h().mu.Unlock()
	var req C.VkMemoryRequirements
	C.vkGetImageMemoryRequirements(d.dev, img, &req)
	return gpu.MemoryRequirements{
		Size:           int64(req.size),
		Alignment:      int64(req.alignment),
		MemoryTypeBits: uint32(req.memoryTypeBits),
	}
}

func (d *Device) ImageDedicatedRequirements(info gpu.ImageCreateInfo) gpu.DedicatedRequirements {
	cinfo := C.VkImageCreateInfo{
		sType:       C.VK_STRUCTURE_TYPE_IMAGE_CREATE_INFO,
		imageType:   vkImageType(info.Type),
		format:      C.VkFormat(info.Format),
		extent:      C.VkExtent3D{C.uint32_t(info.Extent.Width), C.uint32_t(info.Extent.Height), C.uint32_t(info.Extent.Depth)},
		mipLevels:   C.uint32_t(info.MipLevels),
		arrayLayers: C.uint32_t(info.Layers),
		samples:     C.VkSampleCountFlagBits(info.Samples),
		tiling:      vkTiling(info.Tiling),
		usage:       vkImageUsage(info.Usage),
		sharingMode: C.VK_SHARING_MODE_EXCLUSIVE,
	}
	devInfo := C.VkDeviceImageMemoryRequirements{
		sType:      C.VK_STRUCTURE_TYPE_DEVICE_IMAGE_MEMORY_REQUIREMENTS,
		pCreateInfo: &cinfo,
	}
	dedicated := C.VkMemoryDedicatedRequirements{
		sType: C.VK_STRUCTURE_TYPE_MEMORY_DEDICATED_REQUIREMENTS,
	}
	out := C.VkMemoryRequirements2{
		sType: C.VK_STRUCTURE_TYPE_MEMORY_REQUIREMENTS_2,
		pNext: unsafePointerOf(&dedicated),
	}
	C.vkGetDeviceImageMemoryRequirements(d.dev, &devInfo, &out)
	return gpu.DedicatedRequirements{
		PrefersDedicated:  dedicated.prefersDedicatedAllocation != 0,
		RequiresDedicated: dedicated.requiresDedicatedAllocation != 0,
	}
}

func (d *Device) BindImageMemory(i gpu.Image, m gpu.DeviceMemory, offset int64) error {
	d.h().mu.Lock()
	img := d.h().imgs[i.Handle]
	mem := d.h().mem[m.Handle()]
	d.h().mu.Unlock()
	return checkResult(C.vkBindImageMemory(d.dev, img, mem, C.VkDeviceSize(offset)))
}
