package vkdev

/*
#include <vulkan/vulkan.h>
*/
import "C"

import (
	"github.com/dxvkgo/core/internal/gpu"
)

func vkImageViewType(t int) C.VkImageViewType {
	switch t {
	case 0:
		return C.VK_IMAGE_VIEW_TYPE_1D
	case 2:
		return C.VK_IMAGE_VIEW_TYPE_3D
	case 3:
		return C.VK_IMAGE_VIEW_TYPE_CUBE
	case 4:
		return C.VK_IMAGE_VIEW_TYPE_1D_ARRAY
	case 5:
		return C.VK_IMAGE_VIEW_TYPE_2D_ARRAY
	case 6:
		return C.VK_IMAGE_VIEW_TYPE_CUBE_ARRAY
	default:
		return C.VK_IMAGE_VIEW_TYPE_2D
	}
}

// vkSwizzle unpacks one 3-bit component selector out of the packed
// gpu.ImageViewInfo.Swizzle field. 0 means identity.
func vkSwizzle(packed uint32, shift uint) C.VkComponentSwizzle {
	switch (packed >> shift) & 0x7 {
	case 1:
		return C.VK_COMPONENT_SWIZZLE_ZERO
	case 2:
		return C.VK_COMPONENT_SWIZZLE_ONE
	case 3:
		return C.VK_COMPONENT_SWIZZLE_R
	case 4:
		return C.VK_COMPONENT_SWIZZLE_G
	case 5:
		return C.VK_COMPONENT_SWIZZLE_B
	case 6:
		return C.VK_COMPONENT_SWIZZLE_A
	default:
		return C.VK_COMPONENT_SWIZZLE_IDENTITY
	}
}

func (d *Device) CreateBufferView(b gpu.Buffer, info gpu.BufferViewInfo) (gpu.BufferView, error) {
	d.h().mu.Lock()
	mb := d.h().bufs[b.Handle]
	d.h().mu.Unlock()
	cinfo := C.VkBufferViewCreateInfo{
		sType:  C.VK_STRUCTURE_TYPE_BUFFER_VIEW_CREATE_INFO,
		buffer: mb.buf,
		format: C.VkFormat(info.Format),
		offset: C.VkDeviceSize(info.Offset),
		_range: C.VkDeviceSize(info.Size),
	}
	var view C.VkBufferView
	if err := checkResult(C.vkCreateBufferView(d.dev, &cinfo, nil, &view)); err != nil {
		return gpu.BufferView{}, err
	}
	handle := d.h().alloc()
	d.h().mu.Lock()
	d.h().bufViews[handle] = view
	d.h().mu.Unlock()
	return gpu.BufferView{Handle: handle}, nil
}

func (d *Device) DestroyBufferView(v gpu.BufferView) {
	d.h().mu.Lock()
	view, ok := d.h().bufViews[v.Handle]
	delete(d.h().bufViews, v.Handle)
	d.h().mu.Unlock()
	if ok {
		C.vkDestroyBufferView(d.dev, view, nil)
	}
}

func (d *Device) CreateImageView(img gpu.Image, info gpu.ImageViewInfo) (gpu.ImageView, error) {
	d.h().mu.Lock()
	vkimg := d.h().imgs[img.Handle]
	d.h().mu.Unlock()
	cinfo := C.VkImageViewCreateInfo{
		sType:    C.VK_STRUCTURE_TYPE_IMAGE_VIEW_CREATE_INFO,
		image:    vkimg,
		viewType: vkImageViewType(info.ViewType),
		format:   C.VkFormat(info.Format),
		components: C.VkComponentMapping{
			r: vkSwizzle(info.Swizzle, 0),
			g: vkSwizzle(info.Swizzle, 3),
			b: vkSwizzle(info.Swizzle, 6),
			a: vkSwizzle(info.Swizzle, 9),
		},
		subresourceRange: C.VkImageSubresourceRange{
			aspectMask:     C.VkImageAspectFlags(info.Aspect),
			baseMipLevel:   C.uint32_t(info.BaseMipLevel),
			levelCount:     C.uint32_t(info.MipLevels),
			baseArrayLayer: C.uint32_t(info.BaseArrayLayer),
			layerCount:     C.uint32_t(info.LayerCount),
		},
	}
	var view C.VkImageView
	if err := checkResult(C.vkCreateImageView(d.dev, &cinfo, nil, &view)); err != nil {
		return gpu.ImageView{}, err
	}
	handle := d.h().alloc()
	d.h().mu.Lock()
	d.h().imgViews[handle] = view
	d.h().mu.Unlock()
	return gpu.ImageView{Handle: handle}, nil
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	d.h().mu.Lock()
	view, ok := d.h().imgViews[v.Handle]
	delete(d.h().imgViews, v.Handle)
	d.h().mu.Unlock()
	if ok {
		C.vkDestroyImageView(d.dev, view, nil)
	}
}
