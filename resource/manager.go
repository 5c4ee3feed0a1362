package resource

import (
	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/memalloc"
)

// Manager is the device-level factory for Allocations, Buffers and
// Images: it drives memalloc for the actual memory/buffer/image
// creation and hands out Allocation objects from a slab pool instead of
// allocating one per call (spec.md §4.2 "Allocation pool").
type Manager struct {
	dev       gpu.Device
	allocator *memalloc.Allocator
	pool      *allocPool
}

func NewManager(dev gpu.Device, allocator *memalloc.Allocator) *Manager {
	return &Manager{dev: dev, allocator: allocator, pool: newAllocPool()}
}

// CreateBufferResource allocates and binds a buffer's storage, without
// wrapping it in the higher-level Buffer (spec.md §4.1
// "create_buffer_resource" composed with §4.2's ownership tracking).
func (m *Manager) CreateBufferResource(info gpu.BufferCreateInfo, properties gpu.MemoryPropertyFlags) (*Allocation, error) {
	mem, err := m.allocator.CreateBufferResource(info, properties)
	if err != nil {
		return nil, err
	}
	a := m.pool.get()
	*a = Allocation{dev: m.dev, allocator: m.allocator, mem: mem, owns: OwnsMemory | OwnsBuffer}
	a.Init()
	return a, nil
}

// CreateImageResource allocates and binds an image's storage.
func (m *Manager) CreateImageResource(info gpu.ImageCreateInfo, properties gpu.MemoryPropertyFlags) (*Allocation, error) {
	mem, err := m.allocator.CreateImageResource(info, properties)
	if err != nil {
		return nil, err
	}
	a := m.pool.get()
	*a = Allocation{dev: m.dev, allocator: m.allocator, mem: mem, owns: OwnsMemory | OwnsImage}
	a.Init()
	return a, nil
}

// Destroy frees an allocation's owned sub-objects and returns its slot
// to the slab pool.
func (m *Manager) Destroy(a *Allocation) {
	a.Free()
	m.pool.put(a)
}

// CreateBuffer allocates storage for info and wraps it in a Buffer.
func (m *Manager) CreateBuffer(info BufferCreateInfo, properties gpu.MemoryPropertyFlags) (*Buffer, error) {
	alloc, err := m.CreateBufferResource(gpu.BufferCreateInfo{
		Size:      info.Size,
		Usage:     info.Usage,
		Sparse:    info.Sparse,
		Exclusive: info.Exclusive,
	}, properties)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		Size:       info.Size,
		Usage:      info.Usage,
		Stages:     info.Stages,
		AccessMask: info.Access,
		Flags:      info.Flags,
		alloc:      alloc,
	}, nil
}

// DestroyBuffer frees b's current storage.
func (m *Manager) DestroyBuffer(b *Buffer) {
	m.Destroy(b.Allocation())
}

// ImportBuffer wraps an already-created gpu.Buffer in a Buffer without
// allocating or binding storage of its own (spec.md §6 import_buffer):
// the Allocation owns none of {memory, buffer}, so destroying it only
// tears down its view cache, never the caller-owned handle.
func (m *Manager) ImportBuffer(info BufferCreateInfo, handle gpu.Buffer) (*Buffer, error) {
	a := m.pool.get()
	*a = Allocation{
		dev:       m.dev,
		allocator: m.allocator,
		mem:       &memalloc.Allocation{Buffer: handle, Size: info.Size, HasBuffer: true},
	}
	a.Init()
	return &Buffer{
		Size:       info.Size,
		Usage:      info.Usage,
		Stages:     info.Stages,
		AccessMask: info.Access,
		Flags:      info.Flags,
		alloc:      a,
	}, nil
}

// CreateImage allocates storage for info and wraps it in an Image.
func (m *Manager) CreateImage(info gpu.ImageCreateInfo, properties gpu.MemoryPropertyFlags) (*Image, error) {
	alloc, err := m.CreateImageResource(info, properties)
	if err != nil {
		return nil, err
	}
	return &Image{Info: info, alloc: alloc}, nil
}

// DestroyImage frees i's current storage.
func (m *Manager) DestroyImage(i *Image) {
	m.Destroy(i.Allocation())
}

// ImportImage wraps an already-created gpu.Image the same way
// ImportBuffer wraps a gpu.Buffer (spec.md §6 import_image).
func (m *Manager) ImportImage(info gpu.ImageCreateInfo, handle gpu.Image) (*Image, error) {
	a := m.pool.get()
	*a = Allocation{
		dev:       m.dev,
		allocator: m.allocator,
		mem:       &memalloc.Allocation{Image: handle, HasImage: true},
	}
	a.Init()
	return &Image{Info: info, alloc: a}, nil
}
