package resource

import (
	"sync"
	"sync/atomic"

	"github.com/dxvkgo/core/internal/gpu"
)

// BufferCreateInfo mirrors DxvkBufferCreateInfo: the properties of a
// buffer as seen by the rest of the core, including the stage/access
// masks the barrier tracker needs, which gpu.BufferCreateInfo (the
// hardware-facing shape) has no room for.
type BufferCreateInfo struct {
	Size      int64
	Usage     gpu.BufferUsage
	Stages    uint64
	Access    uint64
	Flags     uint32
	Sparse    bool
	Exclusive bool
}

// Buffer wraps one re-assignable Allocation (spec.md §3 "Buffer").
// Replacing the storage via SetStorage bumps Version, which implicitly
// invalidates every view cached under the old version without walking
// the cache.
type Buffer struct {
	Size       int64
	Usage      gpu.BufferUsage
	Stages     uint64
	AccessMask uint64
	Flags      uint32

	// XfbStride is the transform-feedback vertex stride, zero when the
	// buffer isn't bound as an xfb target.
	XfbStride int32

	mu      sync.Mutex
	alloc   *Allocation
	version uint64
}

// Allocation returns the buffer's current backing allocation.
func (b *Buffer) Allocation() *Allocation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.alloc
}

// SetStorage replaces the buffer's backing allocation and bumps
// Version, invalidating cached view handles built against the old one.
func (b *Buffer) SetStorage(alloc *Allocation) {
	b.mu.Lock()
	b.alloc = alloc
	b.mu.Unlock()
	atomic.AddUint64(&b.version, 1)
}

// Version returns the monotonically increasing storage version.
func (b *Buffer) Version() uint64 { return atomic.LoadUint64(&b.version) }

// Handle returns the opaque gpu.Buffer this buffer currently wraps.
func (b *Buffer) Handle() gpu.Buffer {
	return b.Allocation().mem.Buffer
}

// MapPtr returns the host-visible bytes of the current storage, or nil
// if the backing memory isn't mapped.
func (b *Buffer) MapPtr() []byte {
	return b.Allocation().Map()
}

// DeviceAddress returns the GPU address of the current storage; valid
// only when the buffer was created with BufferShaderDeviceAddress.
func (b *Buffer) DeviceAddress() uint64 {
	return b.Allocation().mem.Buffer.Address
}

// View returns the lazily-created view for key, rebuilding it if the
// backing storage has been reassigned since the last call (spec.md §3
// "Buffer View": "handle() lazily creates the underlying view on first
// use after an invalidation, keyed by the parent's version").
func (b *Buffer) View(key BufferViewKey) (gpu.BufferView, error) {
	alloc := b.Allocation()
	return alloc.BufferView(key, b.Version())
}
