package sparse

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/internal/gpu/gpufake"
	"github.com/dxvkgo/core/memalloc"
)

var testBuffer = gpu.Buffer{Handle: 1}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testAllocator(t *testing.T) *memalloc.Allocator {
	t.Helper()
	l := logrus.New()
	l.SetOutput(discard{})
	dev := gpufake.NewDevice()
	a := memalloc.New(dev, l)
	t.Cleanup(a.Close)
	return a
}

func TestPageAllocatorGrowAndAcquire(t *testing.T) {
	pool := NewPageAllocator(testAllocator(t))
	if err := pool.SetCapacity(4); err != nil {
		t.Fatal(err)
	}

	m := pool.AcquirePage(0)
	if !m.Valid() {
		t.Fatal("acquiring an in-range page must succeed")
	}
	if m.Handle().Length != PageSize {
		t.Fatalf("page length = %d, want %d", m.Handle().Length, PageSize)
	}
	m.Release()
}

func TestPageAllocatorOutOfRangeIsNull(t *testing.T) {
	pool := NewPageAllocator(testAllocator(t))
	pool.SetCapacity(2)
	m := pool.AcquirePage(5)
	if m.Valid() {
		t.Fatal("acquiring an out-of-range page must return the null mapping")
	}
}

func TestPageAllocatorShrinkBlockedWhileInUse(t *testing.T) {
	pool := NewPageAllocator(testAllocator(t))
	pool.SetCapacity(4)

	m := pool.AcquirePage(0)
	if err := pool.SetCapacity(1); err != nil {
		t.Fatal(err)
	}
	// The allocator's logical page count drops immediately...
	if pool.pageCount != 1 {
		t.Fatalf("pageCount = %d, want 1", pool.pageCount)
	}
	// ...but the physical backing array isn't shrunk while in use.
	if len(pool.pages) != 4 {
		t.Fatalf("pages should not be freed while a mapping is live, len = %d", len(pool.pages))
	}
	m.Release()
	// Triggering another SetCapacity isn't required: release alone
	// catches the array up once the use count drops to zero.
	if len(pool.pages) != pool.pageCount {
		t.Fatalf("pages should be trimmed to pageCount once use count reaches zero, len = %d want %d", len(pool.pages), pool.pageCount)
	}
}

func TestMappingCloneTracksUseCount(t *testing.T) {
	pool := NewPageAllocator(testAllocator(t))
	pool.SetCapacity(1)

	m1 := pool.AcquirePage(0)
	if pool.useCount != 1 {
		t.Fatalf("useCount = %d, want 1", pool.useCount)
	}
	m2 := m1.Clone()
	if pool.useCount != 2 {
		t.Fatalf("useCount = %d, want 2 after Clone", pool.useCount)
	}
	if !m1.Same(m2) {
		t.Fatal("Clone must reference the same page")
	}
	m1.Release()
	m2.Release()
	if pool.useCount != 0 {
		t.Fatalf("useCount = %d, want 0 after releasing both clones", pool.useCount)
	}
}

func TestBufferPageTableLayout(t *testing.T) {
	pt := NewBufferPageTable(testBuffer, 3*PageSize+100)
	if pt.PageCount() != 4 {
		t.Fatalf("PageCount() = %d, want 4", pt.PageCount())
	}
	last := pt.PageInfo(3)
	if last.BufferLength != 100 {
		t.Fatalf("last page length = %d, want 100", last.BufferLength)
	}
	first := pt.PageInfo(0)
	if first.BufferLength != PageSize {
		t.Fatalf("first page length = %d, want %d", first.BufferLength, PageSize)
	}
}

func TestPageTableUpdateMappingTracksOld(t *testing.T) {
	pt := NewBufferPageTable(testBuffer, PageSize)
	pool := NewPageAllocator(testAllocator(t))
	pool.SetCapacity(2)

	m1 := pool.AcquirePage(0)
	var tracked []Mapping
	pt.UpdateMapping(0, m1, func(m Mapping) { tracked = append(tracked, m) })
	if len(tracked) != 0 {
		t.Fatal("the first assignment from null has nothing to track")
	}

	m2 := pool.AcquirePage(1)
	pt.UpdateMapping(0, m2, func(m Mapping) { tracked = append(tracked, m) })
	if len(tracked) != 1 || !tracked[0].Same(m1) {
		t.Fatal("replacing a mapping must hand the old one to track")
	}
	if !pt.GetMapping(0).Same(m2) {
		t.Fatal("GetMapping must return the newly assigned mapping")
	}

	m1.Release()
	m2.Release()
}

func TestPageTableResidencyTracksBoundPages(t *testing.T) {
	pt := NewBufferPageTable(testBuffer, 4*PageSize)
	pool := NewPageAllocator(testAllocator(t))
	pool.SetCapacity(4)

	if n := pt.ResidentPageCount(); n != 0 {
		t.Fatalf("ResidentPageCount() = %d, want 0 before any binding", n)
	}

	m0 := pool.AcquirePage(0)
	m2 := pool.AcquirePage(1)
	pt.UpdateMapping(0, m0, nil)
	pt.UpdateMapping(2, m2, nil)

	if n := pt.ResidentPageCount(); n != 2 {
		t.Fatalf("ResidentPageCount() = %d, want 2", n)
	}

	var resident []int
	for i, set := range pt.ResidentPages() {
		if set {
			resident = append(resident, i)
		}
		if i >= pt.PageCount()-1 {
			break
		}
	}
	if len(resident) != 2 || resident[0] != 0 || resident[1] != 2 {
		t.Fatalf("ResidentPages() = %v, want [0 2]", resident)
	}

	pt.UpdateMapping(0, Mapping{}, nil)
	if n := pt.ResidentPageCount(); n != 1 {
		t.Fatalf("ResidentPageCount() = %d, want 1 after unbinding page 0", n)
	}

	m0.Release()
	m2.Release()
}
