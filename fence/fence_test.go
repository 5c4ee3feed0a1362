package fence

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dxvkgo/core/internal/gpu/gpufake"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// TestFenceCallbackScenario walks the literal trace from spec.md §8's
// "Fence callbacks" scenario.
func TestFenceCallbackScenario(t *testing.T) {
	dev := gpufake.NewDevice()
	f, err := New(dev, testLogger(), CreateInfo{InitialValue: 10})
	if err != nil {
		t.Fatal(err)
	}

	cb1 := make(chan struct{}, 1)
	f.EnqueueWait(5, func() { close(cb1) })
	select {
	case <-cb1:
	default:
		t.Fatal("enqueueWait(5, ...) with initial value 10 must run synchronously")
	}

	cb2 := make(chan struct{})
	f.EnqueueWait(20, func() { close(cb2) })
	if err := dev.SemaphoreSignal(f.Handle(), 25); err != nil {
		t.Fatal(err)
	}
	select {
	case <-cb2:
	case <-time.After(time.Second):
		t.Fatal("cb2 must run within one worker iteration of the semaphore reaching 25")
	}

	cb3Ran := make(chan struct{})
	f.EnqueueWait(30, func() { close(cb3Ran) })
	f.Close()

	select {
	case <-cb3Ran:
		t.Fatal("cb3 must not run: the fence was destroyed before the semaphore reached 30")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEnqueueWaitAtOrBelowObservedRunsInline(t *testing.T) {
	dev := gpufake.NewDevice()
	f, err := New(dev, testLogger(), CreateInfo{InitialValue: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	ran := false
	f.EnqueueWait(3, func() { ran = true })
	if !ran {
		t.Fatal("a wait value equal to the initial value must run inline")
	}
}

func TestSharedFenceHasStableID(t *testing.T) {
	dev := gpufake.NewDevice()
	f, err := New(dev, testLogger(), CreateInfo{InitialValue: 0, Shared: true})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if f.ID().String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("a shared fence must be assigned a non-zero ID")
	}

	handle, err := f.SharedHandle()
	if err != nil {
		t.Fatal(err)
	}
	if handle == 0 {
		t.Fatal("SharedHandle must export a non-zero OS handle")
	}
}

func TestUnsharedFenceHasZeroID(t *testing.T) {
	dev := gpufake.NewDevice()
	f, err := New(dev, testLogger(), CreateInfo{InitialValue: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if f.ID().String() != "00000000-0000-0000-0000-000000000000" {
		t.Fatal("an unshared fence must have the zero ID")
	}
}

func TestWaitBlocksUntilSignaled(t *testing.T) {
	dev := gpufake.NewDevice()
	f, err := New(dev, testLogger(), CreateInfo{InitialValue: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		dev.SemaphoreSignal(f.Handle(), 1)
	}()

	ok, err := f.Wait(1, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Wait must return true once the semaphore reaches the target value")
	}
}
