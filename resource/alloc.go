package resource

import (
	"unsafe"

	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/memalloc"
)

// OwnFlags records which sub-objects an Allocation is responsible for
// destroying (spec.md §4.2 "Owned sub-resources").
type OwnFlags uint8

const (
	OwnsMemory OwnFlags = 1 << iota
	OwnsBuffer
	OwnsImage
)

// Allocation is the central resource object of §3/§4.2: it wraps one
// memalloc.Allocation (memory range, or a bound buffer/image), tracks
// which parts it owns, and lazily builds a view cache over whichever of
// Buffer/Image the wrapped allocation carries.
type Allocation struct {
	Resource

	dev       gpu.Device
	allocator *memalloc.Allocator
	mem       *memalloc.Allocation
	owns      OwnFlags
	views     viewCache

	// Sparse holds the sparse page table installed by package sparse
	// once this allocation backs a sparse buffer or image. Typed as any
	// here to avoid resource importing sparse; sparse imports resource.
	Sparse any
}

func newAllocation(dev gpu.Device, allocator *memalloc.Allocator, mem *memalloc.Allocation, owns OwnFlags) *Allocation {
	a := &Allocation{dev: dev, allocator: allocator, mem: mem, owns: owns}
	a.Init()
	return a
}

// resourceIDBits is the width of the identifier barrier address ranges
// key resources by (spec.md §3 "resource-id (48 bits)").
const resourceIDBits = 48

// ResourceID returns a 48-bit identifier derived from the allocation's
// address divided by its required alignment: stable across view
// invalidations, but not across storage reassignment, since a new
// Allocation gets a new address (spec.md §4.2 "get_resource_id").
func (a *Allocation) ResourceID() uint64 {
	align := uintptr(unsafe.Alignof(*a))
	id := uint64(uintptr(unsafe.Pointer(a)) / align)
	return id & (uint64(1)<<resourceIDBits - 1)
}

// Mem returns the underlying memalloc allocation.
func (a *Allocation) Mem() *memalloc.Allocation { return a.mem }

// Owns reports whether flag is set.
func (a *Allocation) Owns(flag OwnFlags) bool { return a.owns&flag != 0 }

// Map returns the host-visible bytes backing this allocation, or nil.
func (a *Allocation) Map() []byte { return a.mem.Map() }

// BufferView returns the cached view for key under the given parent
// version, creating it on the wrapped buffer if necessary.
func (a *Allocation) BufferView(key BufferViewKey, version uint64) (gpu.BufferView, error) {
	return a.views.bufferView(a.dev, a.mem.Buffer, key, version)
}

// ImageView returns the cached view for key under the given parent
// version, creating it on the wrapped image if necessary.
func (a *Allocation) ImageView(key ImageViewKey, version uint64) (gpu.ImageView, error) {
	return a.views.imageView(a.dev, a.mem.Image, key, version)
}

// Free destroys exactly the sub-objects this allocation owns (spec.md
// §4.2 "destructor checks OwnsBuffer/OwnsImage/OwnsMemory"); views are
// always owned by the allocation and are destroyed unconditionally.
func (a *Allocation) Free() {
	a.views.destroy(a.dev)
	if a.owns&OwnsBuffer != 0 && a.mem.HasBuffer {
		a.dev.DestroyBuffer(a.mem.Buffer)
	}
	if a.owns&OwnsImage != 0 && a.mem.HasImage {
		a.dev.DestroyImage(a.mem.Image)
	}
	if a.owns&OwnsMemory != 0 {
		a.allocator.Free(a.mem)
	}
}
