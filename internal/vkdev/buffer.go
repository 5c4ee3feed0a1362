package vkdev

/*
#include <vulkan/vulkan.h>
*/
import "C"

import (
	"github.com/dxvkgo/core/internal/gpu"
)

func vkBufferUsage(u gpu.BufferUsage) C.VkBufferUsageFlags {
	var f C.VkBufferUsageFlags
	if u&gpu.BufferTransferSrc != 0 {
		f |= C.VK_BUFFER_USAGE_TRANSFER_SRC_BIT
	}
	if u&gpu.BufferTransferDst != 0 {
		f |= C.VK_BUFFER_USAGE_TRANSFER_DST_BIT
	}
	if u&gpu.BufferUniform != 0 {
		f |= C.VK_BUFFER_USAGE_UNIFORM_BUFFER_BIT
	}
	if u&gpu.BufferStorage != 0 {
		f |= C.VK_BUFFER_USAGE_STORAGE_BUFFER_BIT
	}
	if u&gpu.BufferIndex != 0 {
		f |= C.VK_BUFFER_USAGE_INDEX_BUFFER_BIT
	}
	if u&gpu.BufferVertex != 0 {
		f |= C.VK_BUFFER_USAGE_VERTEX_BUFFER_BIT
	}
	if u&gpu.BufferIndirect != 0 {
		f |= C.VK_BUFFER_USAGE_INDIRECT_BUFFER_BIT
	}
	if u&gpu.BufferShaderDeviceAddress != 0 {
		f |= C.VK_BUFFER_USAGE_SHADER_DEVICE_ADDRESS_BIT
	}
	return f
}

func (d *Device) CreateBuffer(info gpu.BufferCreateInfo) (gpu.Buffer, error) {
	sharing := C.VkSharingMode(C.VK_SHARING_MODE_EXCLUSIVE)
	if !info.Exclusive {
		sharing = C.VK_SHARING_MODE_CONCURRENT
	}
	cinfo := C.VkBufferCreateInfo{
		sType:       C.VK_STRUCTURE_TYPE_BUFFER_CREATE_INFO,
		size:        C.VkDeviceSize(info.Size),
		usage:       vkBufferUsage(info.Usage),
		sharingMode: sharing,
	}
	if info.Sparse {
		cinfo.flags |= C.VK_BUFFER_CREATE_SPARSE_BINDING_BIT | C.VK_BUFFER_CREATE_SPARSE_RESIDENCY_BIT
	}
	var buf C.VkBuffer
	if err := checkResult(C.vkCreateBuffer(d.dev, &cinfo, nil, &buf)); err != nil {
		return gpu.Buffer{}, err
	}
	handle := d.h().alloc()
	d.h().mu.Lock()
	d.h().bufs[handle] = mappedBuffer{buf: buf}
	d.h().mu.Unlock()
	return gpu.Buffer{Handle: handle, Size: info.Size}, nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	d.h().mu.Lock()
	mb, ok := d.h().bufs[b.Handle]
	delete(d.h().bufs, b.Handle)
	d.h().mu.Unlock()
	if ok {
		C.vkDestroyBuffer(d.dev, mb.buf, nil)
	}
}

func (d *Device) BufferMemoryRequirements(b gpu.Buffer) gpu.MemoryRequirements {
	d.h().mu.Lock()
	mb := d.h().bufs[b.Handle]
	d.h().mu.Unlock()
	var req C.VkMemoryRequirements
	C.vkGetBufferMemoryRequirements(d.dev, mb.buf, &req)
	return gpu.MemoryRequirements{
		Size:           int64(req.size),
		Alignment:      int64(req.alignment),
		MemoryTypeBits: uint32(req.memoryTypeBits),
	}
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.DeviceMemory, offset int64) error {
	d.h().mu.Lock()
	mb := d.h().bufs[b.Handle]
	mem := d.h().mem[m.Handle()]
	d.h().mu.Unlock()
	if err := checkResult(C.vkBindBufferMemory(d.dev, mb.buf, mem, C.VkDeviceSize(offset))); err != nil {
		return err
	}
	addrInfo := C.VkBufferDeviceAddressInfo{
		sType:  C.VK_STRUCTURE_TYPE_BUFFER_DEVICE_ADDRESS_INFO,
		buffer: mb.buf,
	}
	addr := uint64(C.vkGetBufferDeviceAddress(d.dev, &addrInfo))
	d.h().mu.Lock()
	mb.addr = addr
	d.h().bufs[b.Handle] = mb
	d.h().mu.Unlock()
	return nil
}

func (d *Device) BufferDeviceAddress(b gpu.Buffer) uint64 {
	d.h().mu.Lock()
	defer d.h().mu.Unlock()
	return d.h().bufs[b.Handle].addr
}
