package resource

import (
	"sync"
	"sync/atomic"

	"github.com/dxvkgo/core/internal/gpu"
)

// Image wraps one re-assignable Allocation plus the original creation
// info (spec.md §3 "Image": "Lifecycle identical to buffers; views are
// cached on the allocation").
type Image struct {
	Info gpu.ImageCreateInfo

	mu      sync.Mutex
	alloc   *Allocation
	version uint64
}

// Allocation returns the image's current backing allocation.
func (i *Image) Allocation() *Allocation {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.alloc
}

// SetStorage replaces the image's backing allocation and bumps
// Version, invalidating cached view handles built against the old one.
func (i *Image) SetStorage(alloc *Allocation) {
	i.mu.Lock()
	i.alloc = alloc
	i.mu.Unlock()
	atomic.AddUint64(&i.version, 1)
}

// Version returns the monotonically increasing storage version.
func (i *Image) Version() uint64 { return atomic.LoadUint64(&i.version) }

// Handle returns the opaque gpu.Image this wrapper currently wraps.
func (i *Image) Handle() gpu.Image {
	return i.Allocation().mem.Image
}

// View returns the lazily-created view for key, rebuilding it if the
// backing storage has been reassigned since the last call.
func (i *Image) View(key ImageViewKey) (gpu.ImageView, error) {
	alloc := i.Allocation()
	return alloc.ImageView(key, i.Version())
}
