package vkdev

/*
#include <vulkan/vulkan.h>
*/
import "C"

import (
	"time"
	"unsafe"

	"github.com/dxvkgo/core/internal/gpu"
)

func (d *Device) CreateTimelineSemaphore(initial uint64) (gpu.Semaphore, error) {
	typeInfo := C.VkSemaphoreTypeCreateInfo{
		sType:         C.VK_STRUCTURE_TYPE_SEMAPHORE_TYPE_CREATE_INFO,
		semaphoreType: C.VK_SEMAPHORE_TYPE_TIMELINE,
		initialValue:  C.uint64_t(initial),
	}
	info := C.VkSemaphoreCreateInfo{
		sType: C.VK_STRUCTURE_TYPE_SEMAPHORE_CREATE_INFO,
		pNext: unsafe.Pointer(&typeInfo),
	}
	var sem C.VkSemaphore
	if err := checkResult(C.vkCreateSemaphore(d.dev, &info, nil, &sem)); err != nil {
		return gpu.Semaphore{}, err
	}
	handle := d.h().alloc()
	d.h().mu.Lock()
	d.h().sems[handle] = sem
	d.h().mu.Unlock()
	return gpu.Semaphore{Handle: handle}, nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	d.h().mu.Lock()
	sem, ok := d.h().sems[s.Handle]
	delete(d.h().sems, s.Handle)
	d.h().mu.Unlock()
	if ok {
		C.vkDestroySemaphore(d.dev, sem, nil)
	}
}

func (d *Device) semaphore(s gpu.Semaphore) (C.VkSemaphore, bool) {
	d.h().mu.Lock()
	defer d.h().mu.Unlock()
	sem, ok := d.h().sems[s.Handle]
	return sem, ok
}

func (d *Device) SemaphoreValue(s gpu.Semaphore) (uint64, error) {
	sem, ok := d.semaphore(s)
	if !ok {
		return 0, gpu.ErrInvalidHandle
	}
	var v C.uint64_t
	if err := checkResult(C.vkGetSemaphoreCounterValue(d.dev, sem, &v)); err != nil {
		return 0, err
	}
	return uint64(v), nil
}

func (d *Device) SemaphoreSignal(s gpu.Semaphore, value uint64) error {
	sem, ok := d.semaphore(s)
	if !ok {
		return gpu.ErrInvalidHandle
	}
	info := C.VkSemaphoreSignalInfo{
		sType:     C.VK_STRUCTURE_TYPE_SEMAPHORE_SIGNAL_INFO,
		semaphore: sem,
		value:     C.uint64_t(value),
	}
	return checkResult(C.vkSignalSemaphore(d.dev, &info))
}

func (d *Device) SemaphoreWait(s gpu.Semaphore, value uint64, timeout time.Duration) (bool, error) {
	sem, ok := d.semaphore(s)
	if !ok {
		return false, gpu.ErrInvalidHandle
	}
	info := C.VkSemaphoreWaitInfo{
		sType:          C.VK_STRUCTURE_TYPE_SEMAPHORE_WAIT_INFO,
		semaphoreCount: 1,
		pSemaphores:    &sem,
	}
	v := C.uint64_t(value)
	info.pValues = &v

	res := C.vkWaitSemaphores(d.dev, &info, C.uint64_t(timeout.Nanoseconds()))
	if res == C.VK_TIMEOUT {
		return false, nil
	}
	if err := checkResult(res); err != nil {
		return false, err
	}
	return true, nil
}

// ExportSemaphore is not wired to a concrete external-handle type
// here (platform-specific: opaque fd on Linux, NT handle on Windows)
// since no front end in this module consumes it yet; it returns the
// internal handle id so fence's shared-handle bookkeeping has a
// stable value to pass around within a process.
func (d *Device) ExportSemaphore(s gpu.Semaphore) (uintptr, error) {
	if _, ok := d.semaphore(s); !ok {
		return 0, gpu.ErrInvalidHandle
	}
	return s.Handle, nil
}
