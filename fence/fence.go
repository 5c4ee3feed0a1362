// Package fence implements the timeline-semaphore fence described in
// spec.md §4.5, grounded on original_source/src/dxvk/dxvk_fence.{h,cpp}
// (DxvkFence) and d3d11_fence.{h,cpp} (the shared-handle export path).
package fence

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dxvkgo/core/internal/gpu"
)

// waitPollInterval bounds how long the worker blocks inside
// SemaphoreWait before re-checking the callback queue, mirroring
// DxvkFence::run's 10ms wait timeout: a signal can land in the window
// between a caller's EnqueueWait and the worker re-entering its wait
// call, and there is no portable way to interrupt an in-flight
// semaphore wait other than bounding it and polling again.
const waitPollInterval = 10 * time.Millisecond

// CreateInfo configures a new Fence (DxvkFenceCreateInfo).
type CreateInfo struct {
	InitialValue uint64
	// Shared marks this fence for cross-process sharing; a Shared
	// fence is assigned a stable ID so a sibling process can look it
	// up out-of-band alongside the exported OS handle.
	Shared bool
}

type callback struct {
	value uint64
	fn    func()
}

// callbackQueue is a min-heap ordered by value: the worker needs the
// smallest pending threshold first as the semaphore counts up, which
// is the one detail original_source's plain operator< overloads on
// DxvkFence::QueueItem leave ambiguous (see DESIGN.md for why this
// implementation fixes the ordering to a min-heap rather than mirroring
// std::priority_queue's default max-heap literally).
type callbackQueue []callback

func (q callbackQueue) Len() int           { return len(q) }
func (q callbackQueue) Less(i, j int) bool  { return q[i].value < q[j].value }
func (q callbackQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *callbackQueue) Push(x any)         { *q = append(*q, x.(callback)) }
func (q *callbackQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Fence pairs a device timeline semaphore with a background worker that
// invokes enqueued callbacks as the semaphore's value advances
// (DxvkFence).
type Fence struct {
	dev gpu.SemaphoreDevice
	log *logrus.Logger
	sem gpu.Semaphore
	id  uuid.UUID

	mu       sync.Mutex
	queue    callbackQueue
	observed uint64

	waitCount   uint64
	timeoutCount uint64

	stop chan struct{}
	done chan struct{}
}

// New creates a timeline semaphore at info.InitialValue and starts the
// worker goroutine that services EnqueueWait callbacks.
func New(dev gpu.SemaphoreDevice, log *logrus.Logger, info CreateInfo) (*Fence, error) {
	sem, err := dev.CreateTimelineSemaphore(info.InitialValue)
	if err != nil {
		return nil, errors.Wrap(err, "fence: create timeline semaphore")
	}

	f := &Fence{
		dev:      dev,
		log:      log,
		sem:      sem,
		observed: info.InitialValue,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if info.Shared {
		f.id = uuid.New()
	}

	go f.run()
	return f, nil
}

// Handle returns the underlying timeline semaphore.
func (f *Fence) Handle() gpu.Semaphore { return f.sem }

// ID returns the fence's cross-process identity, or the zero UUID if
// it was not created with CreateInfo.Shared.
func (f *Fence) ID() uuid.UUID { return f.id }

// Value queries the semaphore's current counter value directly from
// the device, bypassing the worker's (possibly stale) cached value.
func (f *Fence) Value() (uint64, error) {
	return f.dev.SemaphoreValue(f.sem)
}

// SharedHandle exports an OS handle for the underlying semaphore,
// usable by a sibling process holding the same ID (DxvkFence::sharedHandle).
func (f *Fence) SharedHandle() (uintptr, error) {
	return f.dev.ExportSemaphore(f.sem)
}

// EnqueueWait runs fn immediately if the semaphore has already reached
// value, or queues it for the worker to run once it does
// (DxvkFence::enqueueWait).
func (f *Fence) EnqueueWait(value uint64, fn func()) {
	f.mu.Lock()
	if value <= f.observed {
		f.mu.Unlock()
		fn()
		return
	}
	heap.Push(&f.queue, callback{value: value, fn: fn})
	f.mu.Unlock()
}

// Wait blocks the calling goroutine until the semaphore reaches value
// or timeout elapses (DxvkFence::wait).
func (f *Fence) Wait(value uint64, timeout time.Duration) (bool, error) {
	atomic.AddUint64(&f.waitCount, 1)
	reached, err := f.dev.SemaphoreWait(f.sem, value, timeout)
	if err == nil && !reached {
		atomic.AddUint64(&f.timeoutCount, 1)
	}
	return reached, err
}

// WaitCounts reports how many Wait calls this fence has served, and how
// many of those timed out without the semaphore reaching the requested
// value, for package metrics's fence-wait collector.
func (f *Fence) WaitCounts() (waits, timeouts uint64) {
	return atomic.LoadUint64(&f.waitCount), atomic.LoadUint64(&f.timeoutCount)
}

// Close stops the worker and destroys the semaphore. Callbacks still
// queued at this point are dropped without running.
func (f *Fence) Close() {
	close(f.stop)
	<-f.done
	f.dev.DestroySemaphore(f.sem)
}

func (f *Fence) run() {
	defer close(f.done)

	for {
		select {
		case <-f.stop:
			return
		default:
		}

		value, err := f.dev.SemaphoreValue(f.sem)
		if err != nil {
			if f.log != nil {
				f.log.WithError(err).Error("fence: failed to query semaphore value")
			}
			return
		}

		f.mu.Lock()
		f.observed = value
		for f.queue.Len() > 0 && f.queue[0].value <= value {
			cb := heap.Pop(&f.queue).(callback)
			f.mu.Unlock()
			cb.fn()
			f.mu.Lock()
		}
		f.mu.Unlock()

		select {
		case <-f.stop:
			return
		default:
		}

		if _, err := f.dev.SemaphoreWait(f.sem, value+1, waitPollInterval); err != nil {
			if f.log != nil {
				f.log.WithError(err).Error("fence: failed to wait for semaphore")
			}
			return
		}
	}
}
