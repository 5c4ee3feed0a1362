package device

import (
	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/sparse"
)

// sparseBinding is the bookkeeping Device keeps per sparse resource,
// keyed by its Allocation's cookie, so a caller can look the page
// table back up from just the resource (CreateBuffer/CreateImage
// already stash the same *sparse.PageTable directly on
// resource.Allocation.Sparse — this map exists for callers that only
// have the cookie, e.g. a log line or a metrics label).
type sparseBinding struct {
	table *sparse.PageTable
}

// BindSparse submits submission's coalesced buffer, opaque-image and
// per-subresource image binds to the device queue in one
// QueueBindSparse call, then resets submission for reuse (spec.md
// §4.4: "bind submission ... coalesces adjacent ranges"). This is the
// wiring the five sparse-binding subsystems are otherwise missing: the
// binds sparse.BindSubmission accumulates never reach the driver
// without it.
func (d *Device) BindSparse(submission *sparse.BindSubmission) error {
	var info gpu.BindSparseInfo

	for buf, binds := range submission.ProcessBufferBinds() {
		for _, b := range binds {
			info.BufferBinds = append(info.BufferBinds, gpu.SparseBufferBind{
				Buffer:       buf,
				ResourceOff:  b.ResourceOffset,
				Size:         b.Size,
				Memory:       b.Memory,
				MemoryOffset: b.MemoryOffset,
			})
		}
	}
	for img, binds := range submission.ProcessOpaqueBinds() {
		for _, b := range binds {
			info.OpaqueImageBinds = append(info.OpaqueImageBinds, gpu.SparseImageOpaqueBind{
				Image:        img,
				ResourceOff:  b.ResourceOffset,
				Size:         b.Size,
				Memory:       b.Memory,
				MemoryOffset: b.MemoryOffset,
			})
		}
	}
	for img, binds := range submission.ProcessImageBinds() {
		for _, b := range binds {
			info.ImageBinds = append(info.ImageBinds, gpu.SparseImageBind{
				Image:        img,
				Subresource:  gpu.ImageSubresource{MipLevel: b.Subresource},
				Offset:       b.Offset,
				Extent:       b.Extent,
				Memory:       b.Memory,
				MemoryOffset: b.MemoryOffset,
			})
		}
	}

	if len(info.BufferBinds) == 0 && len(info.OpaqueImageBinds) == 0 && len(info.ImageBinds) == 0 {
		return nil
	}

	// Queue submission is externally synchronized per-queue (spec.md
	// §5); submit.Queue exports its lock for exactly this kind of
	// out-of-band device queue call.
	d.queue.Lock()
	err := d.dev.QueueBindSparse(d.queueIndex, info)
	d.queue.Unlock()
	if err != nil {
		if d.log != nil {
			d.log.WithError(err).WithField("buffer-binds", len(info.BufferBinds)).
				WithField("image-binds", len(info.ImageBinds)+len(info.OpaqueImageBinds)).
				Error("device: sparse bind rejected")
		}
		return wrap(KindSparseBind, err, "device: bind sparse")
	}
	submission.Reset()
	return nil
}
