package sparse

import (
	"iter"

	"github.com/dxvkgo/core/internal/bitvec"
	"github.com/dxvkgo/core/internal/gpu"
)

// residencyWordBits is the granularity bitvec.V tracks residency at;
// a plain uint64 is enough and keeps Grow's Uint count small.
const residencyWordBits = 64

// PageType classifies what a page table entry's metadata describes
// (DxvkSparsePageType).
type PageType int

const (
	PageNone PageType = iota
	PageBuffer
	PageImage
	PageImageMipTail
)

// PageInfo describes the resource region backed by one page
// (DxvkSparsePageInfo, flattened out of its original union since Go
// has none — only the fields matching Type are meaningful).
type PageInfo struct {
	Type PageType

	// Buffer page fields.
	BufferOffset, BufferLength int64

	// Image page fields.
	Subresource uint32
	ImageOffset gpu.Offset3D
	ImageExtent gpu.Extent3D

	// Image mip tail page fields.
	MipTailResourceOffset, MipTailResourceLength int64
}

// SubresourceProperties describes one subresource's page layout
// (DxvkSparseImageSubresourceProperties).
type SubresourceProperties struct {
	IsMipTail bool
	PageCount gpu.Extent3D
	PageIndex uint32
}

// ImageProperties describes an image's sparse tiling, queried by the
// caller from the driver (DxvkSparseImageProperties); PageTable does
// not itself query the device, it only lays out the page table from
// the numbers handed to it.
type ImageProperties struct {
	PageRegionExtent  gpu.Extent3D
	PagedMipCount     uint32
	SingleMipTail     bool
	MipTailOffset     int64
	MipTailSize       int64
	MipTailStride     int64
	MetadataPageCount uint32

	// MipTailPageIndex is the resource-wide page index the mip tail
	// starts at; filled in by NewImagePageTable, not by the caller.
	MipTailPageIndex uint32
}

// PageTable stores mappings from a resource region to a physical
// page, plus the metadata needed to translate subresource/offset
// queries to page indices (DxvkSparsePageTable).
type PageTable struct {
	buffer gpu.Buffer
	image  gpu.Image

	properties   ImageProperties
	subresources []SubresourceProperties
	metadata     []PageInfo
	mappings     []Mapping

	// residency tracks which pages currently carry a bound memory
	// page, one bit per page, so device/metrics can report sparse
	// residency without scanning mappings.
	residency bitvec.V[uint64]
}

// growResidency extends t.residency to cover at least pageCount bits.
func (t *PageTable) growResidency(pageCount int) {
	words := (pageCount + residencyWordBits - 1) / residencyWordBits
	if have := t.residency.Len() / residencyWordBits; have < words {
		t.residency.Grow(words - have)
	}
}

// NewBufferPageTable builds a page table for a linear buffer: pages
// are consecutive PageSize chunks covering the whole buffer
// (DxvkSparsePageTable's buffer constructor).
func NewBufferPageTable(buf gpu.Buffer, size int64) *PageTable {
	pageCount := (size + PageSize - 1) / PageSize

	t := &PageTable{
		buffer:       buf,
		subresources: []SubresourceProperties{{PageCount: gpu.Extent3D{Width: uint32(pageCount), Height: 1, Depth: 1}}},
		metadata:     make([]PageInfo, pageCount),
		mappings:     make([]Mapping, pageCount),
		properties:   ImageProperties{PageRegionExtent: gpu.Extent3D{Width: PageSize, Height: 1, Depth: 1}},
	}
	t.growResidency(int(pageCount))
	for i := int64(0); i < pageCount; i++ {
		offset := PageSize * i
		length := int64(PageSize)
		if rem := size - offset; rem < length {
			length = rem
		}
		t.metadata[i] = PageInfo{Type: PageBuffer, BufferOffset: offset, BufferLength: length}
	}
	return t
}

// NewImagePageTable lays out a page table for an image given its
// create info and sparse tiling properties (already queried from the
// driver by the caller) (DxvkSparsePageTable's image constructor).
func NewImagePageTable(img gpu.Image, info gpu.ImageCreateInfo, props ImageProperties) *PageTable {
	t := &PageTable{image: img, properties: props}

	subresourceCount := info.Layers * info.MipLevels
	t.subresources = make([]SubresourceProperties, 0, subresourceCount)

	var totalPages uint32
	for l := uint32(0); l < info.Layers; l++ {
		for m := uint32(0); m < info.MipLevels; m++ {
			if m < props.PagedMipCount {
				mipExtent := mipLevelExtent(info.Extent, m)
				pageCount := blockCount(mipExtent, props.PageRegionExtent)
				t.subresources = append(t.subresources, SubresourceProperties{
					PageCount: pageCount,
					PageIndex: totalPages,
				})
				totalPages += flattenExtent(pageCount)
			} else {
				t.subresources = append(t.subresources, SubresourceProperties{IsMipTail: true})
			}
		}
	}

	layerCount := uint32(1)
	if props.MipTailSize != 0 && !props.SingleMipTail {
		layerCount = info.Layers
	}
	mipTailPageCount := uint32(0)
	if props.MipTailSize != 0 {
		mipTailPageCount = uint32(props.MipTailSize / PageSize)
	}
	totalWithTail := totalPages + mipTailPageCount*boolToU32(props.MipTailSize != 0)*layerCount

	t.metadata = make([]PageInfo, 0, totalWithTail)

	for l := uint32(0); l < info.Layers; l++ {
		for m := uint32(0); m < props.PagedMipCount; m++ {
			mipExtent := mipLevelExtent(info.Extent, m)
			pageCount := blockCount(mipExtent, props.PageRegionExtent)

			for z := uint32(0); z < pageCount.Depth; z++ {
				for y := uint32(0); y < pageCount.Height; y++ {
					for x := uint32(0); x < pageCount.Width; x++ {
						off := gpu.Offset3D{
							X: int32(x * props.PageRegionExtent.Width),
							Y: int32(y * props.PageRegionExtent.Height),
							Z: int32(z * props.PageRegionExtent.Depth),
						}
						t.metadata = append(t.metadata, PageInfo{
							Type:        PageImage,
							Subresource: l*info.MipLevels + m,
							ImageOffset: off,
							ImageExtent: gpu.Extent3D{
								Width:  minU32(props.PageRegionExtent.Width, mipExtent.Width-uint32(off.X)),
								Height: minU32(props.PageRegionExtent.Height, mipExtent.Height-uint32(off.Y)),
								Depth:  minU32(props.PageRegionExtent.Depth, mipExtent.Depth-uint32(off.Z)),
							},
						})
					}
				}
			}
		}
	}

	if props.MipTailSize != 0 {
		t.properties.MipTailPageIndex = totalPages
		for i := uint32(0); i < layerCount; i++ {
			for j := uint32(0); j < mipTailPageCount; j++ {
				t.metadata = append(t.metadata, PageInfo{
					Type:                  PageImageMipTail,
					MipTailResourceOffset: props.MipTailOffset + int64(i)*props.MipTailStride + int64(j)*PageSize,
					MipTailResourceLength: PageSize,
				})
			}
		}
	}

	t.mappings = make([]Mapping, len(t.metadata))
	t.growResidency(len(t.metadata))
	return t
}

// BufferHandle returns the buffer this table was built for, or the
// zero gpu.Buffer if it was built for an image.
func (t *PageTable) BufferHandle() gpu.Buffer { return t.buffer }

// ImageHandle returns the image this table was built for, or the
// zero gpu.Image if it was built for a buffer.
func (t *PageTable) ImageHandle() gpu.Image { return t.image }

// PageCount returns the total number of pages in the resource,
// paged subresources plus mip tail.
func (t *PageTable) PageCount() int { return len(t.metadata) }

// SubresourceCount returns the number of subresources with page
// layout metadata.
func (t *PageTable) SubresourceCount() int { return len(t.subresources) }

// Properties returns the image's sparse tiling properties; only
// meaningful for tables built with NewImagePageTable.
func (t *PageTable) Properties() ImageProperties { return t.properties }

// SubresourceProperties returns subresource's page layout, or the
// zero value if out of range.
func (t *PageTable) SubresourceProperties(subresource uint32) SubresourceProperties {
	if int(subresource) >= len(t.subresources) {
		return SubresourceProperties{}
	}
	return t.subresources[subresource]
}

// PageInfo returns page's metadata, or the zero value if out of range.
func (t *PageTable) PageInfo(page uint32) PageInfo {
	if int(page) >= len(t.metadata) {
		return PageInfo{}
	}
	return t.metadata[page]
}

// ComputePageIndex translates a page index within a region of a
// subresource to the resource-wide page index (DxvkSparsePageTable::
// computePageIndex). Mip tail subresources map linearly from the mip
// tail's base page index; non-linear regions translate the
// within-region page index to 3-D coordinates within regionExtent
// before adding the subresource's base page index.
func (t *PageTable) ComputePageIndex(subresource uint32, regionOffset gpu.Offset3D, regionExtent gpu.Extent3D, regionIsLinear bool, pageIndex uint32) uint32 {
	sub := t.SubresourceProperties(subresource)
	if sub.IsMipTail {
		return t.properties.MipTailPageIndex + pageIndex
	}

	off := regionOffset
	if !regionIsLinear {
		off.X += int32(pageIndex % regionExtent.Width)
		off.Y += int32((pageIndex / regionExtent.Width) % regionExtent.Height)
		off.Z += int32((pageIndex / regionExtent.Width) / regionExtent.Height)
		pageIndex = 0
	}

	result := sub.PageIndex + uint32(off.X) +
		sub.PageCount.Width*(uint32(off.Y)+sub.PageCount.Height*uint32(off.Z))
	return result + pageIndex
}

// GetMapping returns page's current mapping, or the zero Mapping if
// out of range.
func (t *PageTable) GetMapping(page uint32) Mapping {
	if int(page) >= len(t.mappings) {
		return Mapping{}
	}
	return t.mappings[page]
}

// UpdateMapping replaces page's mapping. If the previous mapping
// differed, track is called with it so the caller can keep it alive
// (e.g. by pinning it to an in-flight command list) instead of
// releasing it immediately, matching DxvkSparsePageTable::
// updateMapping's "track the old page on the command list" behavior.
func (t *PageTable) UpdateMapping(page uint32, mapping Mapping, track func(Mapping)) {
	old := t.mappings[page]
	if old.Same(mapping) {
		return
	}
	if old.Valid() && track != nil {
		track(old)
	}
	t.mappings[page] = mapping
	if mapping.Valid() {
		t.residency.Set(int(page))
	} else {
		t.residency.Unset(int(page))
	}
}

// ResidentPageCount returns the number of pages currently bound to a
// memory page.
func (t *PageTable) ResidentPageCount() int {
	return t.residency.Len() - t.residency.Rem()
}

// ResidentPages iterates every page index alongside whether it is
// currently resident, for callers building per-resource sparse
// residency stats (device's get_memory_stats, metrics).
func (t *PageTable) ResidentPages() iter.Seq2[int, bool] {
	return t.residency.All()
}

func mipLevelExtent(base gpu.Extent3D, level uint32) gpu.Extent3D {
	return gpu.Extent3D{
		Width:  maxU32(1, base.Width>>level),
		Height: maxU32(1, base.Height>>level),
		Depth:  maxU32(1, base.Depth>>level),
	}
}

func blockCount(extent, block gpu.Extent3D) gpu.Extent3D {
	return gpu.Extent3D{
		Width:  ceilDiv(extent.Width, block.Width),
		Height: ceilDiv(extent.Height, block.Height),
		Depth:  ceilDiv(extent.Depth, block.Depth),
	}
}

func flattenExtent(e gpu.Extent3D) uint32 { return e.Width * e.Height * e.Depth }

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
