package device

import (
	"time"

	"github.com/dxvkgo/core/fence"
)

// CreateFence implements spec.md §6's create_fence(create_info),
// starting the returned Fence's dedicated wait-thread (fence.New
// already does this internally). The fence is tracked so its wait
// counts surface in package metrics until CloseFence removes it.
func (d *Device) CreateFence(info fence.CreateInfo) (*fence.Fence, error) {
	f, err := fence.New(d.dev, d.log, info)
	if err != nil {
		return nil, wrap(KindSubmission, err, "device: create fence")
	}
	d.mu.Lock()
	d.fences[f] = struct{}{}
	d.mu.Unlock()
	return f, nil
}

// CloseFence stops f's wait thread and stops tracking it for metrics.
func (d *Device) CloseFence(f *fence.Fence) {
	d.mu.Lock()
	delete(d.fences, f)
	d.mu.Unlock()
	f.Close()
}

// Fences returns a snapshot of every fence this Device has created and
// not yet closed, for package metrics's per-fence wait collector.
func (d *Device) Fences() []*fence.Fence {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*fence.Fence, 0, len(d.fences))
	for f := range d.fences {
		out = append(out, f)
	}
	return out
}

// WaitForFence implements spec.md §6's wait_for_fence(fence, value): it
// blocks until the timeline reaches value or timeout elapses, and
// reports whether value was reached. A zero timeout does not block: it
// only reports whether the timeline has already reached value, as
// fence.Fence.Wait does.
func (d *Device) WaitForFence(f *fence.Fence, value uint64, timeout time.Duration) (bool, error) {
	reached, err := f.Wait(value, timeout)
	if err != nil {
		return false, wrap(KindSubmission, err, "device: wait for fence")
	}
	return reached, nil
}
