package submit

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dxvkgo/core/internal/gpu"
	"github.com/dxvkgo/core/internal/gpu/gpufake"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSubmitCompletesStatus(t *testing.T) {
	dev := gpufake.NewDevice()
	q := NewQueue(dev, 0, testLogger())
	defer q.Close()

	st := q.Submit(gpu.SubmitBatch{}, nil, 0)
	if err := q.SynchronizeSubmission(st); err != nil {
		t.Fatal(err)
	}
	if st.State() != StateReady {
		t.Fatalf("state = %v, want StateReady", st.State())
	}
}

func TestSubmitOrderingIsPreserved(t *testing.T) {
	dev := gpufake.NewDevice()
	q := NewQueue(dev, 0, testLogger())
	defer q.Close()

	sem, err := dev.CreateTimelineSemaphore(0)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.DestroySemaphore(sem)

	var order []int
	st1 := q.Submit(gpu.SubmitBatch{Signals: []gpu.SubmitSignal{{Semaphore: sem, Value: 1}}}, nil, 0)
	q.SynchronizeSubmission(st1)
	order = append(order, 1)

	st2 := q.Submit(gpu.SubmitBatch{Waits: []gpu.SubmitWait{{Semaphore: sem, Value: 1}}, Signals: []gpu.SubmitSignal{{Semaphore: sem, Value: 2}}}, nil, 0)
	q.SynchronizeSubmission(st2)
	order = append(order, 2)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("submissions did not execute in enqueue order: %v", order)
	}
	if st2.State() != StateReady {
		t.Fatal("second submission should have completed successfully once its wait was satisfied")
	}
}

func TestWaitForIdleDrainsQueueFirst(t *testing.T) {
	dev := gpufake.NewDevice()
	q := NewQueue(dev, 0, testLogger())
	defer q.Close()

	done := make(chan struct{})
	st := q.Submit(gpu.SubmitBatch{}, nil, 0)
	go func() {
		q.SynchronizeSubmission(st)
		close(done)
	}()

	if err := q.WaitForIdle(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	default:
		t.Fatal("WaitForIdle must not return before previously enqueued submissions finish")
	}
}

func TestExternalLockSerializesAgainstSubmissions(t *testing.T) {
	dev := gpufake.NewDevice()
	q := NewQueue(dev, 0, testLogger())
	defer q.Close()

	q.Lock()
	submitted := make(chan struct{})
	go func() {
		st := q.Submit(gpu.SubmitBatch{}, nil, 0)
		q.SynchronizeSubmission(st)
		close(submitted)
	}()

	select {
	case <-submitted:
		t.Fatal("submission must not complete while an external caller holds the queue lock")
	case <-time.After(20 * time.Millisecond):
	}
	q.Unlock()

	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("submission should complete promptly once the queue lock is released")
	}
}

func TestCloseDrainsPendingJobs(t *testing.T) {
	dev := gpufake.NewDevice()
	q := NewQueue(dev, 0, testLogger())

	st := q.Submit(gpu.SubmitBatch{}, nil, 0)
	q.Close()

	if err := st.Wait(); err != nil {
		t.Fatal(err)
	}
}
