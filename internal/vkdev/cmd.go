package vkdev

/*
#include <vulkan/vulkan.h>
*/
import "C"

import (
	"github.com/dxvkgo/core/internal/gpu"
)

func (d *Device) commandPool() (C.VkCommandPool, error) {
	d.h().mu.Lock()
	defer d.h().mu.Unlock()
	if d.h().pool != nil {
		return d.h().pool, nil
	}
	info := C.VkCommandPoolCreateInfo{
		sType:            C.VK_STRUCTURE_TYPE_COMMAND_POOL_CREATE_INFO,
		flags:            C.VK_COMMAND_POOL_CREATE_RESET_COMMAND_BUFFER_BIT,
		queueFamilyIndex: C.uint32_t(d.queueFam),
	}
	var pool C.VkCommandPool
	if err := checkResult(C.vkCreateCommandPool(d.dev, &info, nil, &pool)); err != nil {
		return nil, err
	}
	d.h().pool = pool
	return pool, nil
}

func (d *Device) NewCommandList() (gpu.CommandList, error) {
	pool, err := d.commandPool()
	if err != nil {
		return gpu.CommandList{}, err
	}
	info := C.VkCommandBufferAllocateInfo{
		sType:              C.VK_STRUCTURE_TYPE_COMMAND_BUFFER_ALLOCATE_INFO,
		commandPool:        pool,
		level:              C.VK_COMMAND_BUFFER_LEVEL_PRIMARY,
		commandBufferCount: 1,
	}
	var cb C.VkCommandBuffer
	if err := checkResult(C.vkAllocateCommandBuffers(d.dev, &info, &cb)); err != nil {
		return gpu.CommandList{}, err
	}
	handle := d.h().alloc()
	d.h().mu.Lock()
	d.h().cmds[handle] = cb
	d.h().mu.Unlock()
	return gpu.CommandList{Handle: handle}, nil
}

func (d *Device) cmdBuf(cl gpu.CommandList) C.VkCommandBuffer {
	d.h().mu.Lock()
	defer d.h().mu.Unlock()
	return d.h().cmds[cl.Handle]
}

func (d *Device) ResetCommandList(cl gpu.CommandList) error {
	return checkResult(C.vkResetCommandBuffer(d.cmdBuf(cl), 0))
}

func (d *Device) BeginCommandList(cl gpu.CommandList) error {
	info := C.VkCommandBufferBeginInfo{
		sType: C.VK_STRUCTURE_TYPE_COMMAND_BUFFER_BEGIN_INFO,
		flags: C.VK_COMMAND_BUFFER_USAGE_ONE_TIME_SUBMIT_BIT,
	}
	return checkResult(C.vkBeginCommandBuffer(d.cmdBuf(cl), &info))
}

func (d *Device) EndCommandList(cl gpu.CommandList) error {
	return checkResult(C.vkEndCommandBuffer(d.cmdBuf(cl)))
}

func (d *Device) FreeCommandList(cl gpu.CommandList) {
	cb := d.cmdBuf(cl)
	if cb == nil {
		return
	}
	pool, _ := d.commandPool()
	C.vkFreeCommandBuffers(d.dev, pool, 1, &cb)
	d.h().mu.Lock()
	delete(d.h().cmds, cl.Handle)
	d.h().mu.Unlock()
}

// CmdPipelineBarrier emits one vkCmdPipelineBarrier2 call carrying all
// of the batch's memory/buffer/image barriers, matching the batched
// emission barrier.Set builds (spec.md §4.3).
func (d *Device) CmdPipelineBarrier(cl gpu.CommandList, mem []gpu.MemoryBarrier, buf []gpu.BufferBarrier, img []gpu.ImageBarrier) {
	cb := d.cmdBuf(cl)

	memBarriers := make([]C.VkMemoryBarrier2, len(mem))
	for i, b := range mem {
		memBarriers[i] = C.VkMemoryBarrier2{
			sType:           C.VK_STRUCTURE_TYPE_MEMORY_BARRIER_2,
			srcStageMask:    C.VkPipelineStageFlags2(b.SrcStage),
			dstStageMask:    C.VkPipelineStageFlags2(b.DstStage),
			srcAccessMask:   C.VkAccessFlags2(b.SrcAccess),
			dstAccessMask:   C.VkAccessFlags2(b.DstAccess),
		}
	}
	bufBarriers := make([]C.VkBufferMemoryBarrier2, len(buf))
	for i, b := range buf {
		bb := d.h().bufs[b.Buffer.Handle]
		bufBarriers[i] = C.VkBufferMemoryBarrier2{
			sType:               C.VK_STRUCTURE_TYPE_BUFFER_MEMORY_BARRIER_2,
			srcStageMask:        C.VkPipelineStageFlags2(b.SrcStage),
			dstStageMask:        C.VkPipelineStageFlags2(b.DstStage),
			srcAccessMask:       C.VkAccessFlags2(b.SrcAccess),
			dstAccessMask:       C.VkAccessFlags2(b.DstAccess),
			srcQueueFamilyIndex: C.VK_QUEUE_FAMILY_IGNORED,
			dstQueueFamilyIndex: C.VK_QUEUE_FAMILY_IGNORED,
			buffer:              bb.buf,
			offset:              C.VkDeviceSize(b.Offset),
			size:                C.VkDeviceSize(b.Size),
		}
	}
	imgBarriers := make([]C.VkImageMemoryBarrier2, len(img))
	for i, b := range img {
		imgBarriers[i] = C.VkImageMemoryBarrier2{
			sType:               C.VK_STRUCTURE_TYPE_IMAGE_MEMORY_BARRIER_2,
			srcStageMask:        C.VkPipelineStageFlags2(b.SrcStage),
			dstStageMask:        C.VkPipelineStageFlags2(b.DstStage),
			srcAccessMask:       C.VkAccessFlags2(b.SrcAccess),
			dstAccessMask:       C.VkAccessFlags2(b.DstAccess),
			oldLayout:           C.VkImageLayout(b.OldLayout),
			newLayout:           C.VkImageLayout(b.NewLayout),
			srcQueueFamilyIndex: C.VK_QUEUE_FAMILY_IGNORED,
			dstQueueFamilyIndex: C.VK_QUEUE_FAMILY_IGNORED,
			image:               d.h().imgs[b.Image.Handle],
			subresourceRange: C.VkImageSubresourceRange{
				aspectMask:     C.VkImageAspectFlags(b.AspectMask),
				baseMipLevel:   C.uint32_t(b.BaseMipLevel),
				levelCount:     C.uint32_t(b.MipCount),
				baseArrayLayer: C.uint32_t(b.BaseLayer),
				layerCount:     C.uint32_t(b.LayerCount),
			},
		}
	}

	dep := C.VkDependencyInfo{sType: C.VK_STRUCTURE_TYPE_DEPENDENCY_INFO}
	if len(memBarriers) > 0 {
		dep.memoryBarrierCount = C.uint32_t(len(memBarriers))
		dep.pMemoryBarriers = &memBarriers[0]
	}
	if len(bufBarriers) > 0 {
		dep.bufferMemoryBarrierCount = C.uint32_t(len(bufBarriers))
		dep.pBufferMemoryBarriers = &bufBarriers[0]
	}
	if len(imgBarriers) > 0 {
		dep.imageMemoryBarrierCount = C.uint32_t(len(imgBarriers))
		dep.pImageMemoryBarriers = &imgBarriers[0]
	}
	C.vkCmdPipelineBarrier2(cb, &dep)
}
