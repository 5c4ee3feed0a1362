package device

import (
	"sync/atomic"
	"time"

	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/resource"
	"github.com/dxvkgo/core/submit"
)

// resourcePollInterval is how often WaitForResource re-checks a
// resource's use count while it spins (spec.md §5: "spin-style busy
// wait via the submission queue's synchronize loop").
const resourcePollInterval = 100 * time.Microsecond

// Latency returns the built-in frame pacer, exposed so a front-end can
// drive sleep_and_begin_frame/discard_timings directly around its
// render loop (spec.md §4.6).
func (d *Device) Latency() *submit.BuiltinTracker {
	return d.tracker
}

// nextFrameID hands out a monotonically increasing frame identifier
// for callers that don't track their own (spec.md §4.6's frame pacer
// keys every notification by frame_id).
func (d *Device) nextFrameID() uint64 {
	return atomic.AddUint64(&d.frameCounter, 1)
}

// SubmitCommandList implements spec.md §6's
// submit_command_list(cmd_list, latency_info, out_status): it
// frame-paces through the built-in tracker and enqueues the batch on
// the submission thread, returning a Status the caller can later wait
// on.
func (d *Device) SubmitCommandList(cl gpu.CommandList, waits []gpu.SubmitWait, signals []gpu.SubmitSignal) *submit.Status {
	batch := gpu.SubmitBatch{CommandLists: []gpu.CommandList{cl}, Waits: waits, Signals: signals}
	return d.queue.Submit(batch, d.tracker, d.nextFrameID())
}

// Present implements spec.md §6's present_image(presenter, latency_info,
// frame_id, out_status).
func (d *Device) Present(info gpu.PresentInfo, frameID uint64) *submit.Status {
	return d.queue.Present(info, d.tracker, frameID)
}

// WaitForSubmission implements spec.md §6's wait_for_submission(status).
func (d *Device) WaitForSubmission(st *submit.Status) error {
	if err := st.Wait(); err != nil {
		return wrap(KindSubmission, err, "device: wait for submission")
	}
	return nil
}

// WaitForResource implements spec.md §6's wait_for_resource(res,
// access): a busy wait against the resource's use-count word, driven
// by the same polling cadence the submission queue's synchronize loop
// uses, since a resource only goes idle when the submissions
// referencing it finish draining.
func (d *Device) WaitForResource(res *resource.Allocation, access resource.Access) {
	for res.IsInUse(access) {
		time.Sleep(resourcePollInterval)
	}
}
