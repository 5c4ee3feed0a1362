package vkdev

/*
#include <vulkan/vulkan.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/dxvkgo/core/internal/gpu"
)

// handles maps the opaque uintptr handles gpu.* types carry to the
// real cgo handles backing them, keyed by an incrementing counter
// rather than by reinterpreting VkDeviceMemory/VkBuffer/... pointer
// bits, since non-dispatchable handle representation (pointer vs.
// uint64) is platform-defined by vulkan.h's 64-bit-pointer macro.
type handles struct {
	mu   sync.Mutex
	next uintptr
	mem  map[uintptr]C.VkDeviceMemory
	bufs map[uintptr]mappedBuffer
	imgs map[uintptr]C.VkImage
	smpl map[uintptr]C.VkSampler
	sems map[uintptr]C.VkSemaphore
	cmds map[uintptr]C.VkCommandBuffer
	shds map[uintptr]C.VkShaderModule
	pips map[uintptr]C.VkPipeline
	bufViews map[uintptr]C.VkBufferView
	imgViews map[uintptr]C.VkImageView
	pool C.VkCommandPool
}

type mappedBuffer struct {
	buf  C.VkBuffer
	addr uint64
}

func newHandles() *handles {
	return &handles{
		mem:  make(map[uintptr]C.VkDeviceMemory),
		bufs: make(map[uintptr]mappedBuffer),
		imgs: make(map[uintptr]C.VkImage),
		smpl: make(map[uintptr]C.VkSampler),
		sems: make(map[uintptr]C.VkSemaphore),
		cmds: make(map[uintptr]C.VkCommandBuffer),
		shds: make(map[uintptr]C.VkShaderModule),
		pips: make(map[uintptr]C.VkPipeline),
		bufViews: make(map[uintptr]C.VkBufferView),
		imgViews: make(map[uintptr]C.VkImageView),
	}
}

func (h *handles) alloc() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	return h.next
}

func (d *Device) h() *handles {
	if d.handleTable == nil {
		d.handleTable = newHandles()
	}
	return d.handleTable
}

func vkMemProps(flags gpu.MemoryPropertyFlags) C.VkMemoryPropertyFlags {
	var f C.VkMemoryPropertyFlags
	if flags&gpu.MemoryDeviceLocal != 0 {
		f |= C.VK_MEMORY_PROPERTY_DEVICE_LOCAL_BIT
	}
	if flags&gpu.MemoryHostVisible != 0 {
		f |= C.VK_MEMORY_PROPERTY_HOST_VISIBLE_BIT
	}
	if flags&gpu.MemoryHostCoherent != 0 {
		f |= C.VK_MEMORY_PROPERTY_HOST_COHERENT_BIT
	}
	if flags&gpu.MemoryHostCached != 0 {
		f |= C.VK_MEMORY_PROPERTY_HOST_CACHED_BIT
	}
	return f
}

func (d *Device) AllocateMemory(typeIndex int, size int64) (gpu.DeviceMemory, error) {
	info := C.VkMemoryAllocateInfo{
		sType:           C.VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_INFO,
		allocationSize:  C.VkDeviceSize(size),
		memoryTypeIndex: C.uint32_t(typeIndex),
	}
	// Required by bufferDeviceAddress-enabled allocations backing
	// buffers created with BufferShaderDeviceAddress (spec.md §3).
	flagsInfo := C.VkMemoryAllocateFlagsInfo{
		sType: C.VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_FLAGS_INFO,
		flags: C.VK_MEMORY_ALLOCATE_DEVICE_ADDRESS_BIT,
	}
	info.pNext = unsafe.Pointer(&flagsInfo)

	var mem C.VkDeviceMemory
	if err := checkResult(C.vkAllocateMemory(d.dev, &info, nil, &mem)); err != nil {
		return gpu.DeviceMemory{}, err
	}

	heap := d.memTypes[typeIndex].HeapIndex
	d.heapMu.Lock()
	d.heapUsed[heap] += size
	d.heapMu.Unlock()

	handle := d.h().alloc()
	d.h().mu.Lock()
	d.h().mem[handle] = mem
	d.h().mu.Unlock()
	return gpu.NewDeviceMemory(handle, typeIndex, size), nil
}

func (d *Device) FreeMemory(m gpu.DeviceMemory) {
	d.h().mu.Lock()
	mem, ok := d.h().mem[m.Handle()]
	delete(d.h().mem, m.Handle())
	d.h().mu.Unlock()
	if !ok {
		return
	}
	C.vkFreeMemory(d.dev, mem, nil)
	heap := d.memTypes[m.Type()].HeapIndex
	d.heapMu.Lock()
	d.heapUsed[heap] -= m.Size()
	d.heapMu.Unlock()
}

func (d *Device) MapMemory(m gpu.DeviceMemory) ([]byte, error) {
	d.h().mu.Lock()
	mem, ok := d.h().mem[m.Handle()]
	d.h().mu.Unlock()
	if !ok {
		return nil, gpu.ErrInvalidHandle
	}
	var p unsafe.Pointer
	if err := checkResult(C.vkMapMemory(d.dev, mem, 0, C.VK_WHOLE_SIZE, 0, &p)); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(p), m.Size()), nil
}

func (d *Device) UnmapMemory(m gpu.DeviceMemory) {
	d.h().mu.Lock()
	mem, ok := d.h().mem[m.Handle()]
	d.h().mu.Unlock()
	if ok {
		C.vkUnmapMemory(d.dev, mem)
	}
}
