package sparse

// Mapping is a reference to one page handed out by a PageAllocator,
// grounded on DxvkSparseMapping. Go has no copy/move constructors, so
// the acquire/release pairing DxvkSparseMapping threads through every
// special member function is made explicit here: Clone acts as the
// copy constructor (bumps the allocator's use count), Release acts as
// the destructor (drops it). The zero Mapping is the "null" mapping
// DxvkSparseMapping's default constructor produces.
type Mapping struct {
	pool *PageAllocator
	page *page
}

// Valid reports whether the mapping refers to a page.
func (m Mapping) Valid() bool { return m.page != nil }

// Handle returns the physical memory backing this mapping, or the
// zero PageHandle if the mapping is null.
func (m Mapping) Handle() PageHandle {
	return m.page.handle()
}

// Clone returns a new reference to the same page, incrementing the
// allocator's use count (DxvkSparseMapping's copy constructor).
func (m Mapping) Clone() Mapping {
	if m.page != nil {
		m.pool.acquire()
	}
	return m
}

// Release drops this reference, decrementing the allocator's use
// count (DxvkSparseMapping's destructor/move-assignment release).
// Callers must call Release exactly once per Mapping obtained from
// AcquirePage or Clone; the zero Mapping is a no-op.
func (m Mapping) Release() {
	if m.page != nil {
		m.pool.release()
	}
}

// Same reports whether two mappings reference the same page
// (DxvkSparseMapping::operator==: "pool is a function of the page, so
// no need to check both").
func (m Mapping) Same(other Mapping) bool {
	return m.page == other.page
}
