package barrier

import (
	"testing"

	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/internal/gpu/gpufake"
)

func TestSetMergesMemoryBarriers(t *testing.T) {
	var s Set
	s.AccessMemory(StageTopOfPipe, 0, StageAllCommands, AccessMemoryWrite)
	s.AccessBuffer(BufferRef{ResourceID: 1}, 0, 64,
		StageTopOfPipe, 0, StageAllCommands, AccessMemoryWrite, AccessWrite)

	if s.Empty() {
		t.Fatal("set should not be empty after recording accesses")
	}
	if s.memBarrier.DstStage&StageAllCommands == 0 {
		t.Fatal("merged memory barrier should carry the accumulated dst stage")
	}
	if !s.IsBufferDirty(BufferRef{ResourceID: 1}, 0, 64, AccessWrite) {
		t.Fatal("the buffer access should be tracked as a pending write")
	}
}

func TestSetImageSameLayoutMergesIntoMemoryBarrier(t *testing.T) {
	var s Set
	ref := ImageRef{ResourceID: 2, FirstSubresource: 0, LastSubresource: 0}
	s.AccessImage(ref, 1, 1, StageTopOfPipe, 0, StageAllCommands, AccessMemoryWrite, AccessWrite)

	if s.HasLayoutTransitions() {
		t.Fatal("same-layout access must not produce an image barrier entry")
	}
	if s.memBarrier.DstStage&StageAllCommands == 0 {
		t.Fatal("same-layout image access should merge into the memory barrier")
	}
}

func TestSetImageLayoutTransitionProducesImageBarrier(t *testing.T) {
	var s Set
	ref := ImageRef{ResourceID: 3, FirstSubresource: 0, LastSubresource: 0}
	s.AccessImage(ref, 1, 2, StageTopOfPipe, 0, StageAllCommands, AccessMemoryWrite, AccessWrite)

	if !s.HasLayoutTransitions() {
		t.Fatal("a layout change must produce an image barrier")
	}
	if len(s.imgBarriers) != 1 {
		t.Fatalf("expected exactly one image barrier, got %d", len(s.imgBarriers))
	}
}

func TestSetFinalizeAppendsHostBarrier(t *testing.T) {
	dev := gpufake.NewDevice()
	cl, err := dev.NewCommandList()
	if err != nil {
		t.Fatal(err)
	}

	var s Set
	s.AccessBuffer(BufferRef{ResourceID: 9}, 0, 16,
		StageTopOfPipe, 0, StageAllCommands, AccessHostRead, AccessWrite)

	s.Finalize(dev, cl)

	calls := dev.BarrierCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one flushed barrier call, got %d", len(calls))
	}
	mb := calls[0].Mem[0]
	if mb.DstStage&StageHost == 0 {
		t.Fatal("finalize must append the deferred host-visibility barrier's dst stage")
	}
	if mb.DstAccess&AccessHostRead == 0 {
		t.Fatal("finalize must carry through the recorded host access bits")
	}
}

func TestSetResetClearsPendingState(t *testing.T) {
	dev := gpufake.NewDevice()
	cl, _ := dev.NewCommandList()

	var s Set
	s.AccessBuffer(BufferRef{ResourceID: 1}, 0, 4, StageTopOfPipe, 0, StageAllCommands, AccessMemoryWrite, AccessWrite)
	s.RecordCommands(dev, cl)

	if !s.Empty() {
		t.Fatal("set should be empty immediately after flushing")
	}
	if s.IsBufferDirty(BufferRef{ResourceID: 1}, 0, 4, AccessWrite) {
		t.Fatal("flushing must clear the access tracker too")
	}
}

func TestSetSplitsLargeBatches(t *testing.T) {
	dev := gpufake.NewDevice()
	cl, _ := dev.NewCommandList()

	var s Set
	for i := 0; i < maxBarriersPerCall+10; i++ {
		s.imgBarriers = append(s.imgBarriers, gpu.ImageBarrier{
			Image: gpu.Image{Handle: uintptr(i + 1)},
		})
	}
	s.RecordCommands(dev, cl)

	calls := dev.BarrierCalls()
	if len(calls) != 2 {
		t.Fatalf("expected the batch to split into 2 calls, got %d", len(calls))
	}
	if len(calls[0].Img) != maxBarriersPerCall {
		t.Fatalf("first page should have %d barriers, got %d", maxBarriersPerCall, len(calls[0].Img))
	}
	if len(calls[1].Img) != 10 {
		t.Fatalf("second page should have the remaining 10 barriers, got %d", len(calls[1].Img))
	}
}
