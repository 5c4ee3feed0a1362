// Package gpu defines the contracts THE CORE requires of the underlying
// modern, explicit graphics API. It intentionally mirrors one specific
// API's semantics (explicit pipeline barriers, explicit memory
// management, explicit queue submission, bindless descriptors, timeline
// semaphores) rather than attempting to abstract over several backends
// — see spec.md §1's Non-goals. The only implementation in this module
// is internal/vkdev, which talks to the system Vulkan loader via cgo;
// every package above this one (memalloc, resource, barrier, sparse,
// samplerpool, fence, submit, shadercache) depends only on these
// interfaces, so they can be unit-tested with the fake in
// internal/gpu/gpufake without a GPU present.
package gpu

import "time"

// MemoryPropertyFlags mirrors VkMemoryPropertyFlagBits.
type MemoryPropertyFlags uint32

const (
	MemoryDeviceLocal MemoryPropertyFlags = 1 << iota
	MemoryHostVisible
	MemoryHostCoherent
	MemoryHostCached
)

// MemoryType describes one device memory type, as enumerated from
// VkPhysicalDeviceMemoryProperties.
type MemoryType struct {
	Index      int
	Properties MemoryPropertyFlags
	HeapIndex  int
}

// MemoryHeap describes one device memory heap.
type MemoryHeap struct {
	Index     int
	Size      int64
	DeviceLocal bool
}

// MemoryRequirements mirrors VkMemoryRequirements.
type MemoryRequirements struct {
	Size           int64
	Alignment      int64
	MemoryTypeBits uint32
}

// DeviceMemory is an opaque handle to one allocated VkDeviceMemory-like
// object.
type DeviceMemory struct {
	handle uintptr
	typ    int
	size   int64
}

// Handle returns the opaque backing handle, valid only for comparison
// and for passing back into the Device that produced it.
func (m DeviceMemory) Handle() uintptr { return m.handle }

// Type returns the memory type index this allocation was made from.
func (m DeviceMemory) Type() int { return m.typ }

// Size returns the allocation size in bytes.
func (m DeviceMemory) Size() int64 { return m.size }

// Valid reports whether m refers to a live allocation.
func (m DeviceMemory) Valid() bool { return m.handle != 0 }

// NewDeviceMemory is used only by internal/vkdev (and by
// internal/gpu/gpufake for tests) to construct a DeviceMemory value
// around a freshly allocated handle.
func NewDeviceMemory(handle uintptr, typ int, size int64) DeviceMemory {
	return DeviceMemory{handle: handle, typ: typ, size: size}
}

// BufferUsage mirrors VkBufferUsageFlagBits, restricted to the flags
// the core cares about.
type BufferUsage uint32

const (
	BufferTransferSrc BufferUsage = 1 << iota
	BufferTransferDst
	BufferUniform
	BufferStorage
	BufferIndex
	BufferVertex
	BufferIndirect
	BufferShaderDeviceAddress
	BufferSparseResidency
)

// BufferCreateInfo mirrors VkBufferCreateInfo.
type BufferCreateInfo struct {
	Size     int64
	Usage    BufferUsage
	Sparse   bool
	Exclusive bool
}

// Buffer is an opaque handle to a VkBuffer-like object.
type Buffer struct {
	Handle  uintptr
	Size    int64
	Address uint64 // valid only when BufferShaderDeviceAddress was requested
}

// ImageType mirrors VkImageType.
type ImageType int

const (
	Image1D ImageType = iota
	Image2D
	Image3D
)

// ImageUsage mirrors VkImageUsageFlagBits, restricted to what the core uses.
type ImageUsage uint32

const (
	ImageTransferSrc ImageUsage = 1 << iota
	ImageTransferDst
	ImageSampled
	ImageStorage
	ImageColorTarget
	ImageDepthStencilTarget
	ImageSparseResidency
)

// Extent3D mirrors VkExtent3D.
type Extent3D struct {
	Width, Height, Depth uint32
}

// ImageCreateInfo mirrors VkImageCreateInfo.
type ImageCreateInfo struct {
	Type       ImageType
	Format     uint32
	Extent     Extent3D
	MipLevels  uint32
	Layers     uint32
	Samples    uint32
	Usage      ImageUsage
	Tiling     Tiling
	Sparse     bool
}

// Tiling mirrors VkImageTiling.
type Tiling int

const (
	TilingOptimal Tiling = iota
	TilingLinear
)

// Image is an opaque handle to a VkImage-like object.
type Image struct {
	Handle uintptr
}

// DedicatedRequirements mirrors VkMemoryDedicatedRequirements.
type DedicatedRequirements struct {
	PrefersDedicated bool
	RequiresDedicated bool
}

// MemoryDevice is the subset of Device dealing with raw memory
// allocation and buffer/image object creation (spec.md §4.1).
type MemoryDevice interface {
	MemoryTypes() []MemoryType
	MemoryHeaps() []MemoryHeap

	AllocateMemory(typeIndex int, size int64) (DeviceMemory, error)
	FreeMemory(m DeviceMemory)
	MapMemory(m DeviceMemory) ([]byte, error)
	UnmapMemory(m DeviceMemory)

	CreateBuffer(info BufferCreateInfo) (Buffer, error)
	DestroyBuffer(b Buffer)
	BufferMemoryRequirements(b Buffer) MemoryRequirements
	BindBufferMemory(b Buffer, m DeviceMemory, offset int64) error
	BufferDeviceAddress(b Buffer) uint64

	CreateImage(info ImageCreateInfo) (Image, error)
	DestroyImage(img Image)
	ImageMemoryRequirements(img Image) MemoryRequirements
	ImageDedicatedRequirements(info ImageCreateInfo) DedicatedRequirements
	BindImageMemory(img Image, m DeviceMemory, offset int64) error

	BufferImageGranularity() int64
	HeapBudget(heap int) (budget, usage int64)
}

// SamplerKey packs the fields spec.md §3 names for a sampler.
type SamplerKey struct {
	MinFilter, MagFilter, MipFilter uint8
	AddrU, AddrV, AddrW             uint8
	CompareOp                       uint8
	CompareEnable                   bool
	MinLOD, MaxLOD                  float32
	MaxAniso                        float32
	BorderColor                     uint8
}

// Sampler is an opaque handle to a VkSampler-like object.
type Sampler struct {
	Handle uintptr
}

// SamplerDevice creates and destroys samplers (spec.md §4.7).
type SamplerDevice interface {
	CreateSampler(key SamplerKey) (Sampler, error)
	DestroySampler(s Sampler)
}

// Semaphore is an opaque handle to a timeline semaphore.
type Semaphore struct {
	Handle uintptr
}

// SemaphoreDevice wraps a driver timeline semaphore (spec.md §4.5).
type SemaphoreDevice interface {
	CreateTimelineSemaphore(initial uint64) (Semaphore, error)
	DestroySemaphore(s Semaphore)
	SemaphoreValue(s Semaphore) (uint64, error)
	SemaphoreSignal(s Semaphore, value uint64) error
	// SemaphoreWait blocks until s reaches value or timeout elapses.
	// It returns (true, nil) on success and (false, nil) on timeout.
	SemaphoreWait(s Semaphore, value uint64, timeout time.Duration) (bool, error)
	// ExportSemaphore returns a platform opaque handle suitable for
	// cross-process sharing (spec.md §3 "Fence").
	ExportSemaphore(s Semaphore) (uintptr, error)
}

// CommandList is an opaque handle to a recorded command buffer.
type CommandList struct {
	Handle uintptr
}

// MemoryBarrier, BufferBarrier and ImageBarrier mirror their Vk2
// counterparts closely enough for batched emission (spec.md §4.3).
type MemoryBarrier struct {
	SrcStage, DstStage   uint64
	SrcAccess, DstAccess uint64
}

type BufferBarrier struct {
	MemoryBarrier
	Buffer      Buffer
	Offset, Size int64
}

type ImageBarrier struct {
	MemoryBarrier
	Image                  Image
	OldLayout, NewLayout   uint32
	BaseMipLevel, MipCount uint32
	BaseLayer, LayerCount  uint32
	AspectMask             uint32
}

// CommandDevice records and submits command lists (spec.md §4.6).
type CommandDevice interface {
	NewCommandList() (CommandList, error)
	ResetCommandList(cl CommandList) error
	BeginCommandList(cl CommandList) error
	EndCommandList(cl CommandList) error
	FreeCommandList(cl CommandList)

	CmdPipelineBarrier(cl CommandList, mem []MemoryBarrier, buf []BufferBarrier, img []ImageBarrier)
}

// SubmitWait/SubmitSignal describe one semaphore wait/signal pair in a
// batch submission (spec.md §4.6).
type SubmitWait struct {
	Semaphore Semaphore
	Value     uint64
	Stage     uint64
}

type SubmitSignal struct {
	Semaphore Semaphore
	Value     uint64
}

type SubmitBatch struct {
	CommandLists []CommandList
	Waits        []SubmitWait
	Signals      []SubmitSignal
}

// PresentInfo describes one present operation. The swapchain/surface
// itself is an out-of-scope front-end collaborator (spec.md §1); the
// core only needs to wait on it and signal completion.
type PresentInfo struct {
	Waits       []SubmitWait
	ImageIndex  uint32
	SwapchainID uintptr
}

// QueueDevice performs queue submission and presentation, both of
// which must be externally synchronized per-queue (spec.md §5).
type QueueDevice interface {
	QueueSubmit(queueIndex int, batch SubmitBatch) error
	QueuePresent(queueIndex int, info PresentInfo) (suboptimal bool, err error)
	QueueWaitIdle(queueIndex int) error
	DeviceWaitIdle() error
}

// SparseBufferBind and SparseImageBind mirror VkSparseMemoryBind /
// VkSparseImageMemoryBind (spec.md §4.4).
type SparseBufferBind struct {
	Buffer       Buffer
	ResourceOff  int64
	Size         int64
	Memory       DeviceMemory
	MemoryOffset int64
}

type SparseImageOpaqueBind struct {
	Image        Image
	ResourceOff  int64
	Size         int64
	Memory       DeviceMemory
	MemoryOffset int64
}

type ImageSubresource struct {
	Aspect     uint32
	MipLevel   uint32
	ArrayLayer uint32
}

type Offset3D struct{ X, Y, Z int32 }

type SparseImageBind struct {
	Image        Image
	Subresource  ImageSubresource
	Offset       Offset3D
	Extent       Extent3D
	Memory       DeviceMemory
	MemoryOffset int64
}

type BindSparseInfo struct {
	BufferBinds      []SparseBufferBind
	OpaqueImageBinds []SparseImageOpaqueBind
	ImageBinds       []SparseImageBind
	Waits, Signals   []SubmitWait
}

// SparseDevice submits sparse (un)binding operations (spec.md §4.4).
type SparseDevice interface {
	QueueBindSparse(queueIndex int, info BindSparseInfo) error
	ImageSparseRequirements(img Image) (pageSize Extent3D, mipTailFirstLOD uint32, mipTailSize, mipTailStride int64)
}

// ShaderModule is an opaque handle to a VkShaderModule-like object,
// created from the final SPIR-V bytes the shader cache emits
// (spec.md §4.8 step 5).
type ShaderModule struct {
	Handle uintptr
}

// ShaderDevice turns a final SPIR-V binary into a driver object.
type ShaderDevice interface {
	CreateShaderModule(spirv []byte) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)
}

// PipelineLayoutKey/Pipeline mirror the minimal builtin-pipeline entry
// points spec.md §6 names for meta-operations (clears, resolves, mip
// generation); the state translation itself is a front-end concern.
type Pipeline struct {
	Handle uintptr
}

type PipelineDevice interface {
	CreateBuiltinComputePipeline(layout uintptr, stage ShaderModule) (Pipeline, error)
	CreateBuiltinGraphicsPipeline(layout uintptr, state any) (Pipeline, error)
	DestroyPipeline(p Pipeline)
}

// BufferViewInfo mirrors the fields of VkBufferViewCreateInfo the core
// cares about (spec.md §3 "Buffer View / Image View").
type BufferViewInfo struct {
	Format       uint32
	Usage        BufferUsage
	Offset, Size int64
}

// BufferView is an opaque handle to a VkBufferView-like object.
type BufferView struct {
	Handle uintptr
}

// ImageViewInfo mirrors the fields of VkImageViewCreateInfo the core
// cares about. Swizzle packs four 3-bit component-swizzle selectors
// (r, g, b, a), matching the "packed swizzle" key field spec.md §3
// names for image views.
type ImageViewInfo struct {
	ViewType                   int
	Format                     uint32
	Usage                      ImageUsage
	Aspect                     uint32
	BaseMipLevel, MipLevels    uint32
	BaseArrayLayer, LayerCount uint32
	Swizzle                    uint32
}

// ImageView is an opaque handle to a VkImageView-like object.
type ImageView struct {
	Handle uintptr
}

// ViewDevice creates and destroys buffer/image views (spec.md §3,
// §4.2's lazy view caches).
type ViewDevice interface {
	CreateBufferView(b Buffer, info BufferViewInfo) (BufferView, error)
	DestroyBufferView(v BufferView)
	CreateImageView(img Image, info ImageViewInfo) (ImageView, error)
	DestroyImageView(v ImageView)
}

// Device is the full contract THE CORE requires of the underlying API.
// internal/vkdev.Device implements it over cgo; tests use
// internal/gpu/gpufake.Device.
type Device interface {
	MemoryDevice
	SamplerDevice
	SemaphoreDevice
	CommandDevice
	QueueDevice
	SparseDevice
	ShaderDevice
	PipelineDevice
	ViewDevice
}
