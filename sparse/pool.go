package sparse

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/memalloc"
)

// PageAllocator provides sparse pages with variable capacity,
// grounded on DxvkSparsePageAllocator. Pages are use-counted at the
// allocator level: SetCapacity may only physically shrink the page
// array when no mapping handed out by AcquirePage is still live.
type PageAllocator struct {
	memory *memalloc.Allocator

	mu        sync.Mutex
	pageCount uint32
	useCount  uint32
	pages     []*page
}

// NewPageAllocator creates an allocator for sparse pages backed by
// memory, with zero initial capacity.
func NewPageAllocator(memory *memalloc.Allocator) *PageAllocator {
	return &PageAllocator{memory: memory}
}

// AcquirePage returns a mapping to the page at the given index,
// atomically bumping the allocator's use count so SetCapacity cannot
// shrink out from under it. Returns the zero Mapping if idx is out of
// range.
func (a *PageAllocator) AcquirePage(idx uint32) Mapping {
	a.mu.Lock()
	defer a.mu.Unlock()

	if idx >= a.pageCount {
		return Mapping{}
	}

	a.useCount++
	return Mapping{pool: a, page: a.pages[idx]}
}

// SetCapacity changes the allocator's logical page count, allocating
// new pages as necessary and freeing existing pages only if none are
// currently referenced by a live Mapping (DxvkSparsePageAllocator::
// setCapacity).
func (a *PageAllocator) SetCapacity(pageCount uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if pageCount < a.pageCount {
		if a.useCount == 0 {
			for _, p := range a.pages[pageCount:] {
				a.memory.Free(p.mem)
			}
			a.pages = a.pages[:pageCount]
		}
	} else if pageCount > a.pageCount {
		newPages := make([]*page, 0, pageCount-a.pageCount)
		for i := uint32(0); i < pageCount-a.pageCount; i++ {
			mem, err := a.memory.AllocMemory(gpu.MemoryRequirements{
				Size:      PageSize,
				Alignment: PageSize,
			}, gpu.MemoryDeviceLocal)
			if err != nil {
				for _, p := range newPages {
					a.memory.Free(p.mem)
				}
				return errors.Wrap(err, "sparse: allocate page")
			}
			newPages = append(newPages, &page{mem: mem})
		}

		// Sort by (memory, offset) to give later page table updates
		// more batching opportunities (DxvkSparsePageAllocator::
		// setCapacity's sort-by-handle comment).
		sort.Slice(newPages, func(i, j int) bool {
			a, b := newPages[i].mem, newPages[j].mem
			if a.Memory.Handle() != b.Memory.Handle() {
				return a.Memory.Handle() < b.Memory.Handle()
			}
			return a.Offset < b.Offset
		})

		a.pages = append(a.pages, newPages...)
	}

	a.pageCount = pageCount
	return nil
}

func (a *PageAllocator) acquire() {
	a.mu.Lock()
	a.useCount++
	a.mu.Unlock()
}

func (a *PageAllocator) release() {
	a.mu.Lock()
	a.useCount--
	if a.useCount == 0 {
		a.pages = a.pages[:a.pageCount]
	}
	a.mu.Unlock()
}
