// Package sparse implements the sparse page table, page allocator and
// binding-submission coalescer described in spec.md §4.4, grounded on
// original_source/src/dxvk/dxvk_sparse.{cpp,h}.
package sparse

import (
	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/memalloc"
)

// PageSize is the fixed granularity DxvkSparsePage/SparseMemoryPageSize
// uses for every page this core allocates or binds.
const PageSize = 1 << 16

// PageHandle identifies the physical memory backing one page.
type PageHandle struct {
	Memory gpu.DeviceMemory
	Offset int64
	Length int64
}

// page is one physical 64 KiB allocation owned by a PageAllocator.
// Unlike resource.Resource, a page carries no per-object refcount of
// its own: DxvkSparsePage's use counting happens at the allocator (it
// can't shrink while *any* page it handed out is still referenced),
// not per page, so page itself is a thin wrapper with no count.
type page struct {
	mem *memalloc.Allocation
}

func (p *page) handle() PageHandle {
	if p == nil || p.mem == nil {
		return PageHandle{}
	}
	return PageHandle{Memory: p.mem.Memory, Offset: p.mem.Offset, Length: p.mem.Size}
}
