package vkdev

/*
#include <vulkan/vulkan.h>
*/
import "C"

import (
	"github.com/dxvkgo/core/internal/gpu"
)

func (d *Device) QueueBindSparse(queueIndex int, info gpu.BindSparseInfo) error {
	q, mu := d.queue(queueIndex)
	mu.Lock()
	defer mu.Unlock()

	waitSems, _, _, sigSems, _ := waitSignalTimeline(d.h(), info.Waits, info.Signals)

	d.h().mu.Lock()
	bufBinds := make([]C.VkSparseMemoryBind, len(info.BufferBinds))
	for i, b := range info.BufferBinds {
		bufBinds[i] = C.VkSparseMemoryBind{
			resourceOffset: C.VkDeviceSize(b.ResourceOff),
			size:           C.VkDeviceSize(b.Size),
			memory:         d.h().mem[b.Memory.Handle()],
			memoryOffset:   C.VkDeviceSize(b.MemoryOffset),
		}
	}
	opaqueBinds := make([]C.VkSparseMemoryBind, len(info.OpaqueImageBinds))
	for i, b := range info.OpaqueImageBinds {
		opaqueBinds[i] = C.VkSparseMemoryBind{
			resourceOffset: C.VkDeviceSize(b.ResourceOff),
			size:           C.VkDeviceSize(b.Size),
			memory:         d.h().mem[b.Memory.Handle()],
			memoryOffset:   C.VkDeviceSize(b.MemoryOffset),
		}
	}
	imgBinds := make([]C.VkSparseImageMemoryBind, len(info.ImageBinds))
	for i, b := range info.ImageBinds {
		imgBinds[i] = C.VkSparseImageMemoryBind{
			subresource: C.VkImageSubresource{
				aspectMask: C.VkImageAspectFlags(b.Subresource.Aspect),
				mipLevel:   C.uint32_t(b.Subresource.MipLevel),
				arrayLayer: C.uint32_t(b.Subresource.ArrayLayer),
			},
			offset: C.VkOffset3D{x: C.int32_t(b.Offset.X), y: C.int32_t(b.Offset.Y), z: C.int32_t(b.Offset.Z)},
			extent: C.VkExtent3D{
				width:  C.uint32_t(b.Extent.Width),
				height: C.uint32_t(b.Extent.Height),
				depth:  C.uint32_t(b.Extent.Depth),
			},
			memory:       d.h().mem[b.Memory.Handle()],
			memoryOffset: C.VkDeviceSize(b.MemoryOffset),
		}
	}
	d.h().mu.Unlock()

	var bindInfo C.VkBindSparseInfo
	bindInfo.sType = C.VK_STRUCTURE_TYPE_BIND_SPARSE_INFO

	if len(waitSems) > 0 {
		bindInfo.waitSemaphoreCount = C.uint32_t(len(waitSems))
		bindInfo.pWaitSemaphores = &waitSems[0]
	}
	if len(sigSems) > 0 {
		bindInfo.signalSemaphoreCount = C.uint32_t(len(sigSems))
		bindInfo.pSignalSemaphores = &sigSems[0]
	}
	if len(bufBinds) > 0 {
		// All opaque buffer binds in a submission target the same
		// buffer in this core's usage (one BindSparseInfo per
		// resource, coalesced upstream by sparse.BindSubmission),
		// so a single VkSparseBufferMemoryBindInfo covers them.
		bufferBindInfo := C.VkSparseBufferMemoryBindInfo{
			buffer:    d.h().bufs[info.BufferBinds[0].Buffer.Handle].buf,
			bindCount: C.uint32_t(len(bufBinds)),
			pBinds:    &bufBinds[0],
		}
		bindInfo.bufferBindCount = 1
		bindInfo.pBufferBinds = &bufferBindInfo
	}
	if len(opaqueBinds) > 0 {
		opaqueBindInfo := C.VkSparseImageOpaqueMemoryBindInfo{
			image:     d.h().imgs[info.OpaqueImageBinds[0].Image.Handle],
			bindCount: C.uint32_t(len(opaqueBinds)),
			pBinds:    &opaqueBinds[0],
		}
		bindInfo.imageOpaqueBindCount = 1
		bindInfo.pImageOpaqueBinds = &opaqueBindInfo
	}
	if len(imgBinds) > 0 {
		imageBindInfo := C.VkSparseImageMemoryBindInfo{
			image:     d.h().imgs[info.ImageBinds[0].Image.Handle],
			bindCount: C.uint32_t(len(imgBinds)),
			pBinds:    &imgBinds[0],
		}
		bindInfo.imageBindCount = 1
		bindInfo.pImageBinds = &imageBindInfo
	}

	return checkResult(C.vkQueueBindSparse(q, 1, &bindInfo, nil))
}

func (d *Device) ImageSparseRequirements(img gpu.Image) (gpu.Extent3D, uint32, int64, int64) {
	d.h().mu.Lock()
	vimg := d.h().imgs[img.Handle]
	d.h().mu.Unlock()

	var n C.uint32_t
	C.vkGetImageSparseMemoryRequirements(d.dev, vimg, &n, nil)
	if n == 0 {
		return gpu.Extent3D{}, 0, 0, 0
	}
	reqs := make([]C.VkSparseImageMemoryRequirements, n)
	C.vkGetImageSparseMemoryRequirements(d.dev, vimg, &n, &reqs[0])
	r := reqs[0]
	g := r.formatProperties.imageGranularity
	return gpu.Extent3D{Width: uint32(g.width), Height: uint32(g.height), Depth: uint32(g.depth)},
		uint32(r.imageMipTailFirstLod), int64(r.imageMipTailSize), int64(r.imageMipTailStride)
}
