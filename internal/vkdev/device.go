// Package vkdev implements internal/gpu.Device against a system Vulkan
// loader via cgo. It is the only package in this module that imports
// "C"; every algorithmic package (memalloc, resource, barrier, sparse,
// samplerpool, fence, submit, shadercache) depends solely on
// internal/gpu's interfaces, so this package can be swapped out (e.g.
// for internal/gpu/gpufake) without touching them.
//
// Unlike a generated-proc-table binding, Device talks to the loader
// through a direct `#include <vulkan/vulkan.h>` preamble and calls
// exported vk* functions straight away; there is no code-generation
// step and no platform-specific extension loader to keep in sync.
package vkdev

/*
#cgo linux pkg-config: vulkan
#cgo windows LDFLAGS: -lvulkan-1
#cgo darwin LDFLAGS: -lvulkan
#include <vulkan/vulkan.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dxvkgo/core/internal/gpu"
)

// Device implements gpu.Device over one VkDevice and its queues.
type Device struct {
	inst C.VkInstance
	pdev C.VkPhysicalDevice
	dev  C.VkDevice

	queues   []C.VkQueue
	queueMus []sync.Mutex
	queueFam uint32

	memProps C.VkPhysicalDeviceMemoryProperties
	memTypes []gpu.MemoryType
	memHeaps []gpu.MemoryHeap
	heapMu   sync.Mutex
	heapUsed []int64

	handleTable *handles
	builtinLay  C.VkPipelineLayout

	log *logrus.Entry
}

// Open creates a Vulkan instance, selects a physical device capable
// of graphics, compute and sparse binding, and opens one logical
// device with as many queues as the family exposes. log may be nil,
// in which case logrus.StandardLogger() is used (see SPEC_FULL.md
// §7a).
func Open(appName string, log *logrus.Logger) (*Device, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	d := &Device{log: log.WithField("component", "vkdev")}

	if err := d.createInstance(appName); err != nil {
		return nil, errors.Wrap(err, "vkdev: create instance")
	}
	if err := d.selectPhysicalDevice(); err != nil {
		d.destroyInstance()
		return nil, errors.Wrap(err, "vkdev: select physical device")
	}
	if err := d.createLogicalDevice(); err != nil {
		d.destroyInstance()
		return nil, errors.Wrap(err, "vkdev: create logical device")
	}
	d.cacheMemoryProperties()
	d.log.Info("vulkan device opened")
	return d, nil
}

func (d *Device) createInstance(appName string) error {
	cName := C.CString(appName)
	defer C.free(unsafe.Pointer(cName))

	appInfo := C.VkApplicationInfo{
		sType:      C.VK_STRUCTURE_TYPE_APPLICATION_INFO,
		pApplicationName: cName,
		apiVersion: C.VK_API_VERSION_1_3,
	}
	info := C.VkInstanceCreateInfo{
		sType:            C.VK_STRUCTURE_TYPE_INSTANCE_CREATE_INFO,
		pApplicationInfo: &appInfo,
	}
	return checkResult(C.vkCreateInstance(&info, nil, &d.inst))
}

func (d *Device) destroyInstance() {
	if d.inst != nil {
		C.vkDestroyInstance(d.inst, nil)
		d.inst = nil
	}
}

func (d *Device) selectPhysicalDevice() error {
	var n C.uint32_t
	if err := checkResult(C.vkEnumeratePhysicalDevices(d.inst, &n, nil)); err != nil {
		return err
	}
	if n == 0 {
		return errNoDevice
	}
	devs := make([]C.VkPhysicalDevice, n)
	if err := checkResult(C.vkEnumeratePhysicalDevices(d.inst, &n, &devs[0])); err != nil {
		return err
	}

	const want = C.VK_QUEUE_GRAPHICS_BIT | C.VK_QUEUE_COMPUTE_BIT | C.VK_QUEUE_SPARSE_BINDING_BIT
	best := -1
	bestFam := uint32(0)
	bestWeight := -1
	for _, pdev := range devs {
		var props C.VkPhysicalDeviceProperties
		C.vkGetPhysicalDeviceProperties(pdev, &props)

		var nq C.uint32_t
		C.vkGetPhysicalDeviceQueueFamilyProperties(pdev, &nq, nil)
		if nq == 0 {
			continue
		}
		qprops := make([]C.VkQueueFamilyProperties, nq)
		C.vkGetPhysicalDeviceQueueFamilyProperties(pdev, &nq, &qprops[0])

		fam := -1
		for i, qp := range qprops {
			if qp.queueFlags&C.VkFlags(want) == C.VkFlags(want) {
				fam = i
				break
			}
		}
		if fam < 0 {
			continue
		}
		weight := 1
		if props.deviceType == C.VK_PHYSICAL_DEVICE_TYPE_DISCRETE_GPU {
			weight = 3
		} else if props.deviceType == C.VK_PHYSICAL_DEVICE_TYPE_INTEGRATED_GPU {
			weight = 2
		}
		if weight > bestWeight {
			bestWeight = weight
			best = int(uintptrOf(pdev))
			d.pdev = pdev
			bestFam = uint32(fam)
		}
	}
	_ = best
	if bestWeight < 0 {
		return errNoDevice
	}
	d.queueFam = bestFam
	return nil
}

func (d *Device) createLogicalDevice() error {
	var nq C.uint32_t
	C.vkGetPhysicalDeviceQueueFamilyProperties(d.pdev, &nq, nil)
	qprops := make([]C.VkQueueFamilyProperties, nq)
	C.vkGetPhysicalDeviceQueueFamilyProperties(d.pdev, &nq, &qprops[0])
	count := qprops[d.queueFam].queueCount

	prio := C.float(1.0)
	queueInfo := C.VkDeviceQueueCreateInfo{
		sType:            C.VK_STRUCTURE_TYPE_DEVICE_QUEUE_CREATE_INFO,
		queueFamilyIndex: C.uint32_t(d.queueFam),
		queueCount:       count,
		pQueuePriorities: &prio,
	}

	// Timeline semaphores (spec.md §4.5) and synchronization2's fine
	// grained pipeline barriers (spec.md §4.3) are both required.
	sync2 := C.VkPhysicalDeviceSynchronization2Features{
		sType:            C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_SYNCHRONIZATION_2_FEATURES,
		synchronization2: C.VK_TRUE,
	}
	timeline := C.VkPhysicalDeviceTimelineSemaphoreFeatures{
		sType:             C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_TIMELINE_SEMAPHORE_FEATURES,
		pNext:             unsafe.Pointer(&sync2),
		timelineSemaphore: C.VK_TRUE,
	}
	bda := C.VkPhysicalDeviceBufferDeviceAddressFeatures{
		sType:               C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_BUFFER_DEVICE_ADDRESS_FEATURES,
		pNext:               unsafe.Pointer(&timeline),
		bufferDeviceAddress: C.VK_TRUE,
	}

	info := C.VkDeviceCreateInfo{
		sType:                C.VK_STRUCTURE_TYPE_DEVICE_CREATE_INFO,
		pNext:                unsafe.Pointer(&bda),
		queueCreateInfoCount: 1,
		pQueueCreateInfos:    &queueInfo,
	}
	if err := checkResult(C.vkCreateDevice(d.pdev, &info, nil, &d.dev)); err != nil {
		return err
	}
	d.queues = make([]C.VkQueue, count)
	d.queueMus = make([]sync.Mutex, count)
	for i := range d.queues {
		C.vkGetDeviceQueue(d.dev, C.uint32_t(d.queueFam), C.uint32_t(i), &d.queues[i])
	}
	return nil
}

func (d *Device) cacheMemoryProperties() {
	C.vkGetPhysicalDeviceMemoryProperties(d.pdev, &d.memProps)
	n := int(d.memProps.memoryTypeCount)
	d.memTypes = make([]gpu.MemoryType, n)
	for i := 0; i < n; i++ {
		t := d.memProps.memoryTypes[i]
		var flags gpu.MemoryPropertyFlags
		if t.propertyFlags&C.VK_MEMORY_PROPERTY_DEVICE_LOCAL_BIT != 0 {
			flags |= gpu.MemoryDeviceLocal
		}
		if t.propertyFlags&C.VK_MEMORY_PROPERTY_HOST_VISIBLE_BIT != 0 {
			flags |= gpu.MemoryHostVisible
		}
		if t.propertyFlags&C.VK_MEMORY_PROPERTY_HOST_COHERENT_BIT != 0 {
			flags |= gpu.MemoryHostCoherent
		}
		if t.propertyFlags&C.VK_MEMORY_PROPERTY_HOST_CACHED_BIT != 0 {
			flags |= gpu.MemoryHostCached
		}
		d.memTypes[i] = gpu.MemoryType{Index: i, Properties: flags, HeapIndex: int(t.heapIndex)}
	}
	nh := int(d.memProps.memoryHeapCount)
	d.memHeaps = make([]gpu.MemoryHeap, nh)
	for i := 0; i < nh; i++ {
		h := d.memProps.memoryHeaps[i]
		d.memHeaps[i] = gpu.MemoryHeap{
			Index:       i,
			Size:        int64(h.size),
			DeviceLocal: h.flags&C.VK_MEMORY_HEAP_DEVICE_LOCAL_BIT != 0,
		}
	}
	d.heapUsed = make([]int64, nh)
}

// Close waits for the device to go idle and tears down the instance.
func (d *Device) Close() {
	if d == nil || d.dev == nil {
		return
	}
	C.vkDeviceWaitIdle(d.dev)
	C.vkDestroyDevice(d.dev, nil)
	d.dev = nil
	d.destroyInstance()
	d.log.Info("vulkan device closed")
}

func (d *Device) MemoryTypes() []gpu.MemoryType { return d.memTypes }
func (d *Device) MemoryHeaps() []gpu.MemoryHeap { return d.memHeaps }

func (d *Device) HeapBudget(heap int) (budget, usage int64) {
	d.heapMu.Lock()
	defer d.heapMu.Unlock()
	return d.memHeaps[heap].Size, d.heapUsed[heap]
}

func (d *Device) BufferImageGranularity() int64 {
	var props C.VkPhysicalDeviceProperties
	C.vkGetPhysicalDeviceProperties(d.pdev, &props)
	return int64(props.limits.bufferImageGranularity)
}

func uintptrOf(h C.VkPhysicalDevice) uintptr { return uintptr(unsafe.Pointer(h)) }

var errNoDevice = errors.New("vkdev: no suitable Vulkan device")

// checkResult turns a VkResult into an error, wrapping it with the
// named Vulkan error when recognized (spec.md §7 typed error kinds).
func checkResult(res C.VkResult) error {
	if res >= 0 {
		return nil
	}
	if name, ok := resultNames[res]; ok {
		return fmt.Errorf("vkdev: %s", name)
	}
	return fmt.Errorf("vkdev: unknown VkResult %d", int32(res))
}

var resultNames = map[C.VkResult]string{
	C.VK_ERROR_OUT_OF_HOST_MEMORY:      "out of host memory",
	C.VK_ERROR_OUT_OF_DEVICE_MEMORY:    "out of device memory",
	C.VK_ERROR_INITIALIZATION_FAILED:   "initialization failed",
	C.VK_ERROR_DEVICE_LOST:             "device lost",
	C.VK_ERROR_MEMORY_MAP_FAILED:       "memory map failed",
	C.VK_ERROR_LAYER_NOT_PRESENT:       "layer not present",
	C.VK_ERROR_EXTENSION_NOT_PRESENT:   "extension not present",
	C.VK_ERROR_FEATURE_NOT_PRESENT:     "feature not present",
	C.VK_ERROR_INCOMPATIBLE_DRIVER:     "incompatible driver",
	C.VK_ERROR_TOO_MANY_OBJECTS:        "too many objects",
	C.VK_ERROR_FORMAT_NOT_SUPPORTED:    "format not supported",
	C.VK_ERROR_FRAGMENTED_POOL:         "fragmented pool",
	C.VK_ERROR_OUT_OF_POOL_MEMORY:      "out of pool memory",
	C.VK_ERROR_INVALID_EXTERNAL_HANDLE: "invalid external handle",
	C.VK_ERROR_FRAGMENTATION:           "fragmentation",
}
