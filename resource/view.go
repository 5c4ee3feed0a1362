package resource

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/dxvkgo/core/internal/gpu"
)

// BufferViewKey packs the fields spec.md §3 names for a buffer view:
// {format, usage, offset, size}.
type BufferViewKey struct {
	Format       uint32
	Usage        gpu.BufferUsage
	Offset, Size int64
}

func (k BufferViewKey) hash() uint64 {
	var b [24]byte
	putU32(b[0:4], k.Format)
	putU32(b[4:8], uint32(k.Usage))
	putU64(b[8:16], uint64(k.Offset))
	putU64(b[16:24], uint64(k.Size))
	return xxhash.Sum64(b[:])
}

// ImageViewKey packs the fields spec.md §3 names for an image view:
// {type, usage, format, aspect, mip range, layer range, packed
// swizzle}.
type ImageViewKey struct {
	ViewType                   int
	Format                     uint32
	Usage                      gpu.ImageUsage
	Aspect                     uint32
	BaseMipLevel, MipLevels    uint32
	BaseArrayLayer, LayerCount uint32
	Swizzle                    uint32
}

func (k ImageViewKey) hash() uint64 {
	var b [36]byte
	putU32(b[0:4], uint32(k.ViewType))
	putU32(b[4:8], k.Format)
	putU32(b[8:12], uint32(k.Usage))
	putU32(b[12:16], k.Aspect)
	putU32(b[16:20], k.BaseMipLevel)
	putU32(b[20:24], k.MipLevels)
	putU32(b[24:28], k.BaseArrayLayer)
	putU32(b[28:32], k.LayerCount)
	putU32(b[32:36], k.Swizzle)
	return xxhash.Sum64(b[:])
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putU64(b []byte, v uint64) {
	putU32(b[0:4], uint32(v))
	putU32(b[4:8], uint32(v>>32))
}

// bufferViewEntry/imageViewEntry pair a cached handle with the parent
// version it was built against, so a storage reassignment (which bumps
// the version) implicitly invalidates every entry built under an older
// version without walking the map.
type bufferViewEntry struct {
	handle  gpu.BufferView
	version uint64
}

type imageViewEntry struct {
	handle  gpu.ImageView
	version uint64
}

// viewCache is the lazily-built, mutex-protected view cache every
// Allocation carries (spec.md §4.2 "View caches are created on first
// create_view and protected by a local mutex").
type viewCache struct {
	mu        sync.Mutex
	bufViews  map[uint64]bufferViewEntry
	imgViews  map[uint64]imageViewEntry
}

// bufferView returns the cached handle for key under version, creating
// it via dev on first use or after an invalidating version bump.
func (c *viewCache) bufferView(dev gpu.ViewDevice, buf gpu.Buffer, key BufferViewKey, version uint64) (gpu.BufferView, error) {
	h := key.hash()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bufViews == nil {
		c.bufViews = make(map[uint64]bufferViewEntry)
	}
	if e, ok := c.bufViews[h]; ok && e.version == version {
		return e.handle, nil
	}
	view, err := dev.CreateBufferView(buf, gpu.BufferViewInfo{
		Format: key.Format,
		Usage:  key.Usage,
		Offset: key.Offset,
		Size:   key.Size,
	})
	if err != nil {
		return gpu.BufferView{}, err
	}
	if old, ok := c.bufViews[h]; ok {
		dev.DestroyBufferView(old.handle)
	}
	c.bufViews[h] = bufferViewEntry{handle: view, version: version}
	return view, nil
}

// imageView returns the cached handle for key under version, creating
// it via dev on first use or after an invalidating version bump.
func (c *viewCache) imageView(dev gpu.ViewDevice, img gpu.Image, key ImageViewKey, version uint64) (gpu.ImageView, error) {
	h := key.hash()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.imgViews == nil {
		c.imgViews = make(map[uint64]imageViewEntry)
	}
	if e, ok := c.imgViews[h]; ok && e.version == version {
		return e.handle, nil
	}
	view, err := dev.CreateImageView(img, gpu.ImageViewInfo{
		ViewType:       key.ViewType,
		Format:         key.Format,
		Usage:          key.Usage,
		Aspect:         key.Aspect,
		BaseMipLevel:   key.BaseMipLevel,
		MipLevels:      key.MipLevels,
		BaseArrayLayer: key.BaseArrayLayer,
		LayerCount:     key.LayerCount,
		Swizzle:        key.Swizzle,
	})
	if err != nil {
		return gpu.ImageView{}, err
	}
	if old, ok := c.imgViews[h]; ok {
		dev.DestroyImageView(old.handle)
	}
	c.imgViews[h] = imageViewEntry{handle: view, version: version}
	return view, nil
}

// destroy releases every cached view. Called when the owning
// allocation is freed.
func (c *viewCache) destroy(dev gpu.ViewDevice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.bufViews {
		dev.DestroyBufferView(e.handle)
	}
	for _, e := range c.imgViews {
		dev.DestroyImageView(e.handle)
	}
	c.bufViews = nil
	c.imgViews = nil
}
