package device

import (
	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/resource"
	"github.com/dxvkgo/core/sparse"
)

// ImageCreateInfo mirrors spec.md §6's create_image(create_info,
// memory_properties) argument pair.
type ImageCreateInfo struct {
	Info       gpu.ImageCreateInfo
	Properties gpu.MemoryPropertyFlags
}

// ImportImageInfo adds the native-handle side channel
// import_image(create_info, native_handle, memory_properties) needs.
type ImportImageInfo struct {
	ImageCreateInfo
	NativeHandle gpu.Image
}

// SparseImageProperties carries the driver-queried tiling properties
// CreateImage needs for a sparse image (spec.md §4.4): the page table layout itself
// is computed from these, not queried by this Device.
type SparseImageProperties = sparse.ImageProperties

// CreateImage implements spec.md §6's create_image. When info requests
// a sparse image, sparseProps must describe the image's queried
// tiling so the page table can be built; non-sparse callers may leave
// it zero.
func (d *Device) CreateImage(info ImageCreateInfo, sparseProps SparseImageProperties) (*resource.Image, error) {
	img, err := d.resources.CreateImage(info.Info, info.Properties)
	if err != nil {
		return nil, wrap(KindResource, err, "device: create image")
	}
	if info.Info.Sparse {
		d.installSparseImage(img.Allocation(), img.Handle(), info.Info, sparseProps)
	}
	return img, nil
}

// ImportImage wraps an externally-created gpu.Image the same way
// ImportBuffer wraps a gpu.Buffer.
func (d *Device) ImportImage(info ImportImageInfo) (*resource.Image, error) {
	return d.resources.ImportImage(info.Info, info.NativeHandle)
}

// DestroyImage frees img's current storage and releases any sparse
// page table installed for it.
func (d *Device) DestroyImage(img *resource.Image) {
	d.removeSparse(img.Allocation())
	d.resources.DestroyImage(img)
}

func (d *Device) installSparseImage(alloc *resource.Allocation, handle gpu.Image, info gpu.ImageCreateInfo, props SparseImageProperties) {
	table := sparse.NewImagePageTable(handle, info, props)
	alloc.Sparse = table
	d.mu.Lock()
	d.sparse[alloc.Cookie()] = &sparseBinding{table: table}
	d.mu.Unlock()
}
