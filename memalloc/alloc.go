package memalloc

import (
	"github.com/pkg/errors"

	"github.com/dxvkgo/core/internal/gpu"
)

// Allocation is the handle AllocMemory/AllocDedicated/CreateBufferResource/
// CreateImageResource return: either a suballocated range of a pooled
// chunk, or a dedicated VkDeviceMemory-like object of its own (spec.md
// §3 "Resource Allocation ... a memory handle + byte offset + size, or
// a dedicated allocation").
type Allocation struct {
	Memory    gpu.DeviceMemory
	Offset    int64
	Size      int64
	Dedicated bool
	TypeIndex int

	Buffer    gpu.Buffer // set by CreateBufferResource
	HasBuffer bool
	Image     gpu.Image // set by CreateImageResource
	HasImage  bool

	chunk  *chunk
	mapped []byte
}

// Map returns the host-visible bytes backing this allocation, or nil
// if the memory type isn't host visible.
func (a *Allocation) Map() []byte {
	if a.Dedicated {
		return a.mapped
	}
	if a.chunk == nil || a.chunk.mapped == nil {
		return nil
	}
	return a.chunk.mapped[a.Offset : a.Offset+a.Size]
}

// selectType picks the best memory type among typeBits satisfying
// properties, preferring non-device-local types when both a device-
// local and a non-device-local candidate exist and DEVICE_LOCAL was
// not itself required (spec.md §4.1 "Property-flag masks").
func (a *Allocator) selectType(typeBits uint32, properties gpu.MemoryPropertyFlags) (int, error) {
	best := -1
	for i, mt := range a.types {
		if typeBits&(1<<uint(i)) == 0 {
			continue
		}
		if mt.info.Properties&properties != properties {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		wantDeviceLocal := properties&gpu.MemoryDeviceLocal != 0
		bestIsDeviceLocal := a.types[best].info.Properties&gpu.MemoryDeviceLocal != 0
		thisIsDeviceLocal := mt.info.Properties&gpu.MemoryDeviceLocal != 0
		if !wantDeviceLocal && bestIsDeviceLocal && !thisIsDeviceLocal {
			best = i
		}
	}
	if best == -1 {
		return 0, errNoMemoryType
	}
	return best, nil
}

// AllocMemory suballocates memory satisfying req from a chunk in a
// type matching properties, growing or falling back to a dedicated
// allocation as needed (spec.md §4.1 "alloc_memory").
func (a *Allocator) AllocMemory(req gpu.MemoryRequirements, properties gpu.MemoryPropertyFlags) (*Allocation, error) {
	typeIndex, err := a.selectType(req.MemoryTypeBits, properties)
	if err != nil && properties&gpu.MemoryDeviceLocal != 0 {
		typeIndex, err = a.selectType(req.MemoryTypeBits, properties&^gpu.MemoryDeviceLocal)
	}
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	mt := &a.types[typeIndex]
	p := mt.devicePool
	if properties&gpu.MemoryHostVisible != 0 {
		p = mt.mappedPool
	}

	// Large allocations that would waste most of a fresh chunk go
	// dedicated instead of pooled (spec.md §4.1).
	if req.Size > p.maxChunkSize/2 {
		return a.allocDedicatedLocked(typeIndex, req.Size)
	}

	c, offset, err := p.alloc(a.dev, typeIndex, req.Size)
	if err != nil {
		if errors.Cause(err) == errChunkTooSmall {
			return a.allocDedicatedLocked(typeIndex, req.Size)
		}
		a.evictHeapLocked(mt.info.HeapIndex)
		c, offset, err = p.alloc(a.dev, typeIndex, req.Size)
		if err != nil {
			a.log.WithError(err).WithField("type", typeIndex).Warn("allocation failed after eviction retry")
			return nil, errors.Wrap(err, "memalloc: suballocation failed")
		}
	}

	return &Allocation{
		Memory:    c.mem,
		Offset:    offset,
		Size:      req.Size,
		TypeIndex: typeIndex,
		chunk:     c,
		mapped:    c.mapped,
	}, nil
}

// AllocDedicated allocates one VkDeviceMemory-like object with no
// suballocation (spec.md §4.1 "alloc_dedicated").
func (a *Allocator) AllocDedicated(req gpu.MemoryRequirements, properties gpu.MemoryPropertyFlags) (*Allocation, error) {
	typeIndex, err := a.selectType(req.MemoryTypeBits, properties)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocDedicatedLocked(typeIndex, req.Size)
}

func (a *Allocator) allocDedicatedLocked(typeIndex int, size int64) (*Allocation, error) {
	mem, err := a.dev.AllocateMemory(typeIndex, size)
	if err != nil {
		return nil, errors.Wrap(err, "memalloc: dedicated allocation failed")
	}
	var mapped []byte
	if a.types[typeIndex].info.Properties&gpu.MemoryHostVisible != 0 {
		mapped, err = a.dev.MapMemory(mem)
		if err != nil {
			a.dev.FreeMemory(mem)
			return nil, errors.Wrap(err, "memalloc: dedicated mapping failed")
		}
	}
	return &Allocation{
		Memory:    mem,
		Size:      size,
		Dedicated: true,
		TypeIndex: typeIndex,
		mapped:    mapped,
	}, nil
}

// Free releases an allocation back to its pool, or frees its dedicated
// memory outright.
func (a *Allocator) Free(alloc *Allocation) {
	if alloc == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if alloc.Dedicated {
		a.dev.FreeMemory(alloc.Memory)
		return
	}
	mt := &a.types[alloc.TypeIndex]
	p := mt.devicePool
	if alloc.chunk.mapped != nil {
		p = mt.mappedPool
	}
	p.free(alloc.chunk, alloc.Offset, alloc.Size)
}

// CreateBufferResource creates a dedicated buffer handle, allocates
// memory for its requirements, binds it, and stores the buffer's
// device address when the usage includes BufferShaderDeviceAddress.
// Exclusive, non-sparse buffers are first offered to
// tryGlobalBufferAlloc, which always returns nil: no buffer is
// suballocated from a chunk-wide global buffer, so every call takes
// the dedicated-handle path. The resource package wraps the resulting
// Allocation in its own Buffer type.
func (a *Allocator) CreateBufferResource(info gpu.BufferCreateInfo, properties gpu.MemoryPropertyFlags) (*Allocation, error) {
	if info.Exclusive && !info.Sparse {
		if alloc := a.tryGlobalBufferAlloc(info, properties); alloc != nil {
			return alloc, nil
		}
	}

	buf, err := a.dev.CreateBuffer(info)
	if err != nil {
		return nil, errors.Wrap(err, "memalloc: buffer creation failed")
	}
	req := a.dev.BufferMemoryRequirements(buf)
	alloc, err := a.AllocMemory(req, properties)
	if err != nil {
		a.dev.DestroyBuffer(buf)
		return nil, err
	}
	if err := a.dev.BindBufferMemory(buf, alloc.Memory, alloc.Offset); err != nil {
		a.dev.DestroyBuffer(buf)
		a.Free(alloc)
		return nil, errors.Wrap(err, "memalloc: buffer bind failed")
	}
	if info.Usage&gpu.BufferShaderDeviceAddress != 0 {
		buf.Address = a.dev.BufferDeviceAddress(buf)
	}
	alloc.Buffer = buf
	alloc.HasBuffer = true
	return alloc, nil
}

func (a *Allocator) tryGlobalBufferAlloc(info gpu.BufferCreateInfo, properties gpu.MemoryPropertyFlags) *Allocation {
	for i, mt := range a.types {
		if mt.info.Properties&properties != properties || mt.bufferUsage == 0 {
			continue
		}
		if info.Usage&^mt.bufferUsage != 0 {
			continue
		}
		_ = i
		// No chunk carries a global buffer and no package creates one,
		// so there is nothing to suballocate from: even a type whose
		// usage mask covers the request returns nil, and the caller
		// creates a dedicated buffer.
		return nil
	}
	return nil
}

// CreateImageResource implements spec.md §4.1 "create_image_resource":
// query dedicated requirements first; if the driver prefers or
// requires dedicated, allocate dedicated; otherwise suballocate,
// padding alignment to bufferImageGranularity for optimally tiled
// images so they never share a page with a linear buffer.
func (a *Allocator) CreateImageResource(info gpu.ImageCreateInfo, properties gpu.MemoryPropertyFlags) (*Allocation, error) {
	img, err := a.dev.CreateImage(info)
	if err != nil {
		return nil, errors.Wrap(err, "memalloc: image creation failed")
	}
	req := a.dev.ImageMemoryRequirements(img)
	dedicated := a.dev.ImageDedicatedRequirements(info)

	var alloc *Allocation
	if dedicated.RequiresDedicated || dedicated.PrefersDedicated {
		alloc, err = a.AllocDedicated(req, properties)
	} else {
		if info.Tiling == gpu.TilingOptimal {
			gran := a.dev.BufferImageGranularity()
			req.Alignment = alignUp(req.Alignment, gran)
		}
		alloc, err = a.AllocMemory(req, properties)
	}
	if err != nil {
		a.dev.DestroyImage(img)
		return nil, err
	}
	if err := a.dev.BindImageMemory(img, alloc.Memory, alloc.Offset); err != nil {
		a.dev.DestroyImage(img)
		a.Free(alloc)
		return nil, errors.Wrap(err, "memalloc: image bind failed")
	}
	alloc.Image = img
	alloc.HasImage = true
	return alloc, nil
}

func alignUp(v, a int64) int64 {
	if a <= 0 {
		return v
	}
	return (v + a - 1) &^ (a - 1)
}
