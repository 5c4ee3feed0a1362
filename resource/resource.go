// Package resource implements the Resource Allocation & Views component
// (spec.md §4.2): a central allocation object wrapping one memalloc
// allocation plus an optionally owned buffer or image, lazily-built
// buffer/image view caches, and a packed use-count word shared by every
// resource kind.
package resource

import (
	"sync/atomic"
)

// Access mirrors DxvkAccess: the kind of GPU access a resource is being
// acquired for.
type Access int

const (
	AccessNone Access = iota
	AccessRead
	AccessWrite
)

// Use-count bit layout, grounded on DxvkResource: a refcount in the low
// 24 bits, a read-use count in the next 20 bits, a write-use count in
// the high 20 bits. Acquiring for Read or Write always increments the
// refcount as well as its own field, so a single atomic add/subtract
// updates both the plain reference count and the in-use tracking.
const (
	refcountShift = 0
	rdAccessShift = 24
	wrAccessShift = 44

	refcountBits = 24
	rdAccessBits = 20

	refcountMask = (uint64(1)<<refcountBits - 1) << refcountShift
	rdAccessMask = (uint64(1)<<rdAccessBits - 1) << rdAccessShift
	wrAccessMask = ^uint64(0) << wrAccessShift

	refcountInc = uint64(1) << refcountShift
	rdAccessInc = uint64(1) << rdAccessShift
	wrAccessInc = uint64(1) << wrAccessShift
)

func getIncrement(access Access) uint64 {
	inc := refcountInc
	switch access {
	case AccessRead:
		inc |= rdAccessInc
	case AccessWrite:
		inc |= wrAccessInc
	}
	return inc
}

var cookieCounter uint64

// Resource is the embeddable use-count tracker every resource kind
// (Allocation, Buffer, Image) carries. It has no destructor hook of its
// own in Go — callers observe the zero transition through Release's
// return value and free whatever it owns at that point.
type Resource struct {
	useCount uint64
	cookie   uint64
}

// Init assigns a fresh cookie. Call once when the resource is created;
// the zero value is otherwise usable (useCount starts at zero, meaning
// "not acquired").
func (r *Resource) Init() {
	r.cookie = atomic.AddUint64(&cookieCounter, 1)
}

// Cookie returns the unique, never-reused identifier assigned at Init.
func (r *Resource) Cookie() uint64 { return r.cookie }

// IncRef is equivalent to Acquire(AccessNone).
func (r *Resource) IncRef() { r.Acquire(AccessNone) }

// DecRef is equivalent to Release(AccessNone).
func (r *Resource) DecRef() bool { return r.Release(AccessNone) }

// Acquire atomically increments both the reference count and the use
// count for access.
func (r *Resource) Acquire(access Access) {
	atomic.AddUint64(&r.useCount, getIncrement(access))
}

// Release atomically decrements both counts and reports whether the
// full use count reached zero, meaning the caller should now destroy
// the resource.
func (r *Resource) Release(access Access) bool {
	return atomic.AddUint64(&r.useCount, ^(getIncrement(access) - 1)) == 0
}

// ConvertRef changes the access type an existing reference is held
// under without touching the plain reference count.
func (r *Resource) ConvertRef(from, to Access) {
	inc := getIncrement(to) - getIncrement(from)
	if inc != 0 {
		atomic.AddUint64(&r.useCount, inc)
	}
}

// IsInUse reports whether the resource has pending GPU accesses
// matching access. Checking for Read also returns true while a write
// is pending, since a pending write implies a pending read-after-write
// hazard against the same range.
func (r *Resource) IsInUse(access Access) bool {
	mask := wrAccessMask
	if access == AccessRead {
		mask |= rdAccessMask
	}
	return atomic.LoadUint64(&r.useCount)&mask != 0
}
