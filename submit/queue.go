package submit

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dxvkgo/core/internal/gpu"
)

// Queue is the single serialized submission thread described in
// spec.md §5 ("One submission thread drains an MPMC queue of
// submit/present work; it is the only thread that calls into the
// device queue"). Submit and Present enqueue work and return
// immediately with a Status; the background worker issues the actual
// device calls one at a time, in enqueue order.
type Queue struct {
	dev        gpu.QueueDevice
	queueIndex int
	log        *logrus.Logger

	// queueLock guards the device queue call itself. It is exported via
	// Lock/Unlock so an external caller (e.g. a presenter issuing a
	// native swapchain call of its own) can serialize against the
	// submission thread without routing through the job channel
	// (spec.md §4.6: "an external callback may hold the queue lock
	// between submissions").
	queueLock sync.Mutex

	jobs chan func()

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewQueue starts the submission thread for queueIndex on dev.
func NewQueue(dev gpu.QueueDevice, queueIndex int, log *logrus.Logger) *Queue {
	q := &Queue{
		dev:        dev,
		queueIndex: queueIndex,
		log:        log,
		jobs:       make(chan func(), 64),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case job := <-q.jobs:
			job()
		case <-q.stop:
			q.drain()
			return
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case job := <-q.jobs:
			job()
		default:
			return
		}
	}
}

// Lock acquires the device queue lock used by Submit/Present, letting
// an external caller lease the queue between submissions.
func (q *Queue) Lock() { q.queueLock.Lock() }

// Unlock releases the lock acquired by Lock.
func (q *Queue) Unlock() { q.queueLock.Unlock() }

// PendingJobs reports how many submit/present jobs are currently
// queued but not yet picked up by the submission thread, for
// introspection (e.g. package metrics's queue-depth gauge).
func (q *Queue) PendingJobs() int { return len(q.jobs) }

// Submit enqueues batch for submission on the device queue. tracker
// may be nil to disable latency notifications for this submission.
func (q *Queue) Submit(batch gpu.SubmitBatch, tracker Tracker, frameID uint64) *Status {
	st := newStatus()
	q.jobs <- func() {
		if tracker != nil && tracker.NeedsAutoMarkers() {
			tracker.NotifyQueueSubmit(frameID)
		}
		q.queueLock.Lock()
		err := q.dev.QueueSubmit(q.queueIndex, batch)
		q.queueLock.Unlock()
		if err != nil && q.log != nil {
			q.log.WithError(err).WithField("token", st.Token).Error("submit: queue submit failed")
		}
		st.complete(err)
	}
	return st
}

// Present enqueues info for presentation on the device queue.
func (q *Queue) Present(info gpu.PresentInfo, tracker Tracker, frameID uint64) *Status {
	st := newStatus()
	q.jobs <- func() {
		if tracker != nil && tracker.NeedsAutoMarkers() {
			tracker.NotifyQueuePresentBegin(frameID)
		}
		q.queueLock.Lock()
		_, err := q.dev.QueuePresent(q.queueIndex, info)
		q.queueLock.Unlock()
		if tracker != nil && tracker.NeedsAutoMarkers() {
			tracker.NotifyQueuePresentEnd(frameID, err)
		}
		if err != nil && q.log != nil {
			q.log.WithError(err).WithField("token", st.Token).Error("submit: queue present failed")
		}
		st.complete(err)
	}
	return st
}

// SynchronizeSubmission waits for st to leave StateNotReady
// (spec.md's synchronize_submission).
func (q *Queue) SynchronizeSubmission(st *Status) error {
	return st.Wait()
}

// WaitForIdle drains every job already enqueued, then locks the
// device queue and waits for it to go idle (spec.md's wait_for_idle:
// "drains the submission queue, then locks the queue, then issues a
// device-idle wait under that lock").
func (q *Queue) WaitForIdle() error {
	drained := make(chan struct{})
	q.jobs <- func() { close(drained) }
	<-drained

	q.queueLock.Lock()
	defer q.queueLock.Unlock()
	return q.dev.QueueWaitIdle(q.queueIndex)
}

// Close stops the submission thread after draining any jobs already
// enqueued. It does not wait for jobs submitted concurrently with the
// call to Close.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.stop)
		<-q.done
	})
}
