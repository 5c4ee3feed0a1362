// Package submit implements the serialized submission queue and frame
// pacer described in spec.md §4.6, grounded on
// original_source/src/dxvk/dxvk_device.cpp (the submission thread loop),
// dxvk_latency_builtin.{h,cpp} (DxvkBuiltInLatencyTracker) and
// dxvk_latency_reflex.{h,cpp} (DxvkReflexLatencyTracker).
package submit

import (
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle of one enqueued submission or present.
type State int32

const (
	// StateNotReady means the submission has not yet reached the front
	// of the queue, or is currently being issued to the device queue.
	StateNotReady State = iota
	// StateReady means the device call returned successfully.
	StateReady
	// StateFailed means the device call returned an error.
	StateFailed
)

// Status is the per-submission handle spec.md calls status_ptr:
// synchronize_submission(status) waits on it to leave StateNotReady.
// Token identifies the submission in logs independent of the
// underlying device call succeeding or failing.
type Status struct {
	Token uuid.UUID

	mu    sync.Mutex
	cond  *sync.Cond
	state State
	err   error
}

func newStatus() *Status {
	s := &Status{Token: uuid.New(), state: StateNotReady}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Status) complete(err error) {
	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
		s.err = err
	} else {
		s.state = StateReady
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// State returns the current lifecycle state without blocking.
func (s *Status) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Wait blocks until the status leaves StateNotReady and returns the
// device error, if any (spec.md's synchronize_submission).
func (s *Status) Wait() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.state == StateNotReady {
		s.cond.Wait()
	}
	return s.err
}
