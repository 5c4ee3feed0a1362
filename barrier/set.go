package barrier

import "github.com/dxvkgo/core/internal/gpu"

// Vulkan stage/access bit values the set needs directly: the host
// barrier stage/access pair and the bit that marks a memory barrier
// as "affects everything". These are legacy VkPipelineStageFlagBits/
// VkAccessFlagBits values, numerically identical to their Vk2
// counterparts, matching internal/vkdev/cmd.go's CmdPipelineBarrier
// which passes gpu.MemoryBarrier's stage/access fields straight to
// the driver with no translation layer.
const (
	StageTopOfPipe    uint64 = 0x00000001
	StageBottomOfPipe uint64 = 0x00002000
	StageHost         uint64 = 0x00004000
	StageAllCommands  uint64 = 0x00010000

	AccessHostRead    uint64 = 0x00002000
	AccessHostWrite   uint64 = 0x00004000
	AccessMemoryWrite uint64 = 0x00010000

	accessHostMask = AccessHostRead | AccessHostWrite
)

// maxBarriersPerCall mirrors DxvkBarrierSet::recordCommands' comment
// that some drivers crash on very large single barrier calls.
const maxBarriersPerCall = 512

// BufferRef and ImageRef are the resource identity a Set records
// accesses against: a process-unique 48-bit id (resource.Resource.
// ResourceID) plus the handle to put on the emitted gpu barrier.
type BufferRef struct {
	ResourceID uint64
	Handle     gpu.Buffer
}

type ImageRef struct {
	ResourceID uint64
	Handle     gpu.Image
	AspectMask uint32
	// FirstSubresource/LastSubresource give the tracker's address
	// range for the subresources this access touches (spec.md §4.3:
	// "for images, range encodes {first subresource index, last
	// subresource index}").
	FirstSubresource, LastSubresource uint64
	BaseMipLevel, MipCount            uint32
	BaseLayer, LayerCount             uint32
}

// Set accumulates pending resource accesses into batched barriers,
// grounded on DxvkBarrierSet: one merged memory barrier covering
// same-layout accesses, plus buffer and image barrier lists for
// layout transitions and queue ownership transfers, plus a deferred
// host-visibility barrier appended by Finalize.
type Set struct {
	memBarrier gpu.MemoryBarrier

	bufBarriers []gpu.BufferBarrier
	imgBarriers []gpu.ImageBarrier

	hostSrcStages uint64
	hostDstAccess uint64

	allBarrierSrcStages uint64

	bufAccess Tracker
	imgAccess Tracker
}

func (s *Set) mergeHost(srcStage, dstAccess uint64) {
	if dstAccess&accessHostMask != 0 {
		s.hostSrcStages |= srcStage
		s.hostDstAccess |= dstAccess & accessHostMask
	}
}

// AccessMemory records a plain, non-resource-specific hazard (e.g. an
// indirect-argument or UAV-counter access) into the merged barrier.
func (s *Set) AccessMemory(srcStage, srcAccess, dstStage, dstAccess uint64) {
	s.allBarrierSrcStages |= srcStage
	s.memBarrier.SrcStage |= srcStage
	s.memBarrier.SrcAccess |= srcAccess
	s.memBarrier.DstStage |= dstStage
	s.memBarrier.DstAccess |= dstAccess
	s.mergeHost(srcStage, dstAccess)
}

// AccessBuffer records a hazard on [offset, offset+size) of buf and
// merges its stage/access masks into the set's memory barrier; a
// buffer access never gets a barrier entry of its own.
func (s *Set) AccessBuffer(buf BufferRef, offset, size int64, srcStage, srcAccess, dstStage, dstAccess uint64, accessType Access) {
	s.allBarrierSrcStages |= srcStage
	s.memBarrier.SrcStage |= srcStage
	s.memBarrier.SrcAccess |= srcAccess
	s.memBarrier.DstStage |= dstStage
	s.memBarrier.DstAccess |= dstAccess
	s.mergeHost(srcStage, dstAccess)

	s.bufAccess.InsertRange(AddressRange{
		Resource: buf.ResourceID,
		Start:    uint64(offset),
		End:      uint64(offset + size - 1),
	}, accessType)
}

// AccessImage records a hazard on img's subresources. If oldLayout
// equals newLayout the access merges into the set's memory barrier
// like a buffer access; otherwise it becomes its own image barrier
// entry carrying the layout transition.
func (s *Set) AccessImage(img ImageRef, oldLayout, newLayout uint32, srcStage, srcAccess, dstStage, dstAccess uint64, accessType Access) {
	s.allBarrierSrcStages |= srcStage

	if oldLayout == newLayout {
		s.memBarrier.SrcStage |= srcStage
		s.memBarrier.SrcAccess |= srcAccess
		s.memBarrier.DstStage |= dstStage
		s.memBarrier.DstAccess |= dstAccess
		s.mergeHost(srcStage, dstAccess)
	} else {
		s.imgBarriers = append(s.imgBarriers, gpu.ImageBarrier{
			MemoryBarrier: gpu.MemoryBarrier{
				SrcStage: srcStage, SrcAccess: srcAccess,
				DstStage: dstStage, DstAccess: dstAccess,
			},
			Image:        img.Handle,
			OldLayout:    oldLayout,
			NewLayout:    newLayout,
			BaseMipLevel: img.BaseMipLevel,
			MipCount:     img.MipCount,
			BaseLayer:    img.BaseLayer,
			LayerCount:   img.LayerCount,
			AspectMask:   img.AspectMask,
		})
		s.mergeHost(srcStage, dstAccess)
	}

	s.imgAccess.InsertRange(AddressRange{
		Resource: img.ResourceID,
		Start:    img.FirstSubresource,
		End:      img.LastSubresource,
	}, accessType)
}

// IsBufferDirty reports whether [offset, offset+size) of buf has a
// pending access of accessType not yet flushed.
func (s *Set) IsBufferDirty(buf BufferRef, offset, size int64, accessType Access) bool {
	return s.bufAccess.FindRange(AddressRange{
		Resource: buf.ResourceID,
		Start:    uint64(offset),
		End:      uint64(offset + size - 1),
	}, accessType)
}

// IsImageDirty reports whether img's subresource range has a pending
// access of accessType not yet flushed.
func (s *Set) IsImageDirty(img ImageRef, accessType Access) bool {
	return s.imgAccess.FindRange(AddressRange{
		Resource: img.ResourceID,
		Start:    img.FirstSubresource,
		End:      img.LastSubresource,
	}, accessType)
}

// HasLayoutTransitions reports whether any pending image barrier
// carries a layout transition.
func (s *Set) HasLayoutTransitions() bool {
	return len(s.imgBarriers) > 0
}

// HasPendingStages reports whether any pending barrier's source
// stage mask intersects stages.
func (s *Set) HasPendingStages(stages uint64) bool {
	return s.allBarrierSrcStages&stages != 0
}

// Empty reports whether the set has nothing to flush.
func (s *Set) Empty() bool {
	return s.memBarrier.SrcStage == 0 && s.memBarrier.DstStage == 0 &&
		len(s.bufBarriers) == 0 && len(s.imgBarriers) == 0
}

// Finalize appends the deferred host-visibility barrier, if any
// destination access recorded since the last flush touched host
// memory, then records and flushes the batch.
func (s *Set) Finalize(dev gpu.CommandDevice, cl gpu.CommandList) {
	if s.hostSrcStages != 0 {
		s.memBarrier.SrcStage |= s.hostSrcStages
		s.memBarrier.SrcAccess |= AccessMemoryWrite
		s.memBarrier.DstStage |= StageHost
		s.memBarrier.DstAccess |= s.hostDstAccess

		s.hostSrcStages = 0
		s.hostDstAccess = 0
	}

	s.RecordCommands(dev, cl)
}

// RecordCommands flushes any pending barriers into one
// CmdPipelineBarrier call, splitting into pages of at most
// maxBarriersPerCall when the combined count would exceed it
// (spec.md §4.3: "splits into pages of 512 barriers each"), then
// resets the set for reuse.
func (s *Set) RecordCommands(dev gpu.CommandDevice, cl gpu.CommandList) {
	var mem []gpu.MemoryBarrier
	if s.memBarrier.SrcStage|s.memBarrier.DstStage != 0 {
		mem = []gpu.MemoryBarrier{s.memBarrier}
	}

	total := len(mem) + len(s.bufBarriers) + len(s.imgBarriers)
	if total == 0 {
		return
	}

	if total <= maxBarriersPerCall {
		dev.CmdPipelineBarrier(cl, mem, s.bufBarriers, s.imgBarriers)
	} else {
		for i := 0; i < len(mem); i += maxBarriersPerCall {
			dev.CmdPipelineBarrier(cl, mem[i:min(i+maxBarriersPerCall, len(mem))], nil, nil)
		}
		for i := 0; i < len(s.bufBarriers); i += maxBarriersPerCall {
			dev.CmdPipelineBarrier(cl, nil, s.bufBarriers[i:min(i+maxBarriersPerCall, len(s.bufBarriers))], nil)
		}
		for i := 0; i < len(s.imgBarriers); i += maxBarriersPerCall {
			dev.CmdPipelineBarrier(cl, nil, nil, s.imgBarriers[i:min(i+maxBarriersPerCall, len(s.imgBarriers))])
		}
	}

	s.Reset()
}

// Reset clears the set's accumulated state, keeping the barrier
// slices' backing arrays for reuse on the next command list.
func (s *Set) Reset() {
	s.allBarrierSrcStages = 0
	s.memBarrier = gpu.MemoryBarrier{}
	s.bufBarriers = s.bufBarriers[:0]
	s.imgBarriers = s.imgBarriers[:0]
	s.bufAccess.Clear()
	s.imgAccess.Clear()
}
