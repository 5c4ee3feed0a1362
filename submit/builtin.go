package submit

import (
	"math"
	"sync"
	"time"
)

// frameHistory is the number of trailing frames the built-in tracker
// keeps timestamps for (DxvkBuiltInLatencyTracker::FrameCount).
const frameHistory = 8

// entryHistory is the number of completed frames sleep() estimates
// from: frameID-2 back through frameID-frameHistory.
const entryHistory = frameHistory - 1

type frameMarks struct {
	frameID uint64

	frameStart    time.Time
	cpuPresentEnd time.Time
	queueSubmit   time.Time
	queuePresent  time.Time
	gpuExecStart  time.Time
	gpuExecEnd    time.Time
	gpuIdleStart  time.Time
	gpuIdleTime   time.Duration
	gpuPresent    time.Time

	sleepDuration time.Duration
	presentErr    error
	presentDone   bool
}

// BuiltinTracker is DxvkBuiltInLatencyTracker: an 8-entry ring buffer
// of per-frame timestamps driving a condvar-gated sleep estimate
// (spec.md §4.6 "Built-in tracker").
type BuiltinTracker struct {
	mu   sync.Mutex
	cond *sync.Cond

	tolerance   time.Duration
	envFPSLimit float64
	limiter     *RateLimiter

	frames               [frameHistory]frameMarks
	validBegin, validEnd uint64
}

// UseRateLimiter attaches a RateLimiter that SleepAndBeginFrame paces
// against in addition to its own deadline estimate. Passing the same
// *RateLimiter to a ReflexTracker wrapping this tracker shares one
// deviation-compensated pacer across both.
func (t *BuiltinTracker) UseRateLimiter(r *RateLimiter) {
	t.mu.Lock()
	t.limiter = r
	t.mu.Unlock()
}

// NewBuiltinTracker builds a tracker with the given wake-time
// tolerance (original_source passes this in from the presenter,
// roughly 1ms plus a GPU-time-dependent term; see sleep below) and an
// optional environment frame-rate override, analogous to
// FpsLimiter::getEnvironmentOverride feeding DxvkBuiltInLatencyTracker's
// constructor. envFPSLimit <= 0 means no override.
func NewBuiltinTracker(tolerance time.Duration, envFPSLimit float64) *BuiltinTracker {
	if tolerance < 0 {
		tolerance = 0
	}
	t := &BuiltinTracker{tolerance: tolerance, envFPSLimit: envFPSLimit}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *BuiltinTracker) NeedsAutoMarkers() bool { return true }

func (t *BuiltinTracker) NotifyCpuPresentBegin(frameID uint64) {}

func (t *BuiltinTracker) NotifyCpuPresentEnd(frameID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f := t.findFrame(frameID); f != nil {
		f.cpuPresentEnd = time.Now()
	}
}

func (t *BuiltinTracker) NotifyQueueSubmit(frameID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f := t.findFrame(frameID); f != nil && f.queueSubmit.IsZero() {
		f.queueSubmit = time.Now()
	}
}

func (t *BuiltinTracker) NotifyQueuePresentBegin(frameID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f := t.findFrame(frameID); f != nil {
		f.queuePresent = time.Now()
	}
}

func (t *BuiltinTracker) NotifyQueuePresentEnd(frameID uint64, err error) {
	t.mu.Lock()
	if f := t.findFrame(frameID); f != nil {
		f.presentErr = err
		f.presentDone = true
	}
	t.cond.Broadcast()
	t.mu.Unlock()
}

func (t *BuiltinTracker) NotifyGpuExecutionBegin(frameID uint64) {
	t.mu.Lock()
	if f := t.findFrame(frameID); f != nil {
		now := time.Now()
		if f.gpuExecStart.IsZero() {
			f.gpuExecStart = now
		}
		if !f.gpuIdleStart.IsZero() {
			f.gpuIdleTime += now.Sub(f.gpuIdleStart)
			f.gpuIdleStart = time.Time{}
		}
	}
	t.cond.Broadcast()
	t.mu.Unlock()
}

func (t *BuiltinTracker) NotifyGpuExecutionEnd(frameID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f := t.findFrame(frameID); f != nil {
		now := time.Now()
		f.gpuExecEnd = now
		f.gpuIdleStart = now
	}
}

func (t *BuiltinTracker) NotifyGpuPresentEnd(frameID uint64) {
	t.mu.Lock()
	if f := t.findFrame(frameID); f != nil {
		f.gpuPresent = time.Now()
	}
	t.cond.Broadcast()
	t.mu.Unlock()
}

func (t *BuiltinTracker) DiscardTimings() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.validBegin = t.validEnd + 1
}

func (t *BuiltinTracker) Stats(frameID uint64) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		f := t.findFrame(frameID)
		if f != nil && !f.gpuPresent.IsZero() {
			return Stats{FrameLatency: f.gpuPresent.Sub(f.frameStart), SleepDuration: f.sleepDuration}
		}
		if frameID == 0 || frameID <= t.validBegin {
			return Stats{}
		}
		frameID--
	}
}

// LastFrameID returns the most recent frame opened by SleepAndBeginFrame,
// for callers (e.g. package metrics) that want Stats for "whatever
// finished most recently" without tracking frame IDs themselves.
func (t *BuiltinTracker) LastFrameID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.validEnd
}

func (t *BuiltinTracker) findFrame(frameID uint64) *frameMarks {
	if frameID >= t.validBegin && frameID <= t.validEnd {
		return &t.frames[frameID%frameHistory]
	}
	return nil
}

func (t *BuiltinTracker) initFrame(frameID uint64) *frameMarks {
	if t.validEnd+1 != frameID {
		t.validBegin = frameID
	}
	if t.validBegin+frameHistory <= frameID {
		t.validBegin = frameID + 1 - frameHistory
	}
	t.validEnd = frameID

	f := &t.frames[frameID%frameHistory]
	*f = frameMarks{frameID: frameID}
	return f
}

// SleepAndBeginFrame computes the wake deadline for frameID, sleeps
// until it, and opens a fresh frame entry (DxvkBuiltInLatencyTracker::sleep
// composed with its caller's frame-entry reset).
func (t *BuiltinTracker) SleepAndBeginFrame(frameID uint64, maxFrameRate float64) {
	d := t.sleep(frameID, maxFrameRate)

	t.mu.Lock()
	limiter := t.limiter
	t.mu.Unlock()
	if limiter != nil {
		limiter.Delay(1)
	}

	t.mu.Lock()
	f := t.initFrame(frameID)
	f.frameStart = time.Now()
	f.sleepDuration = d
	t.mu.Unlock()
}

func (t *BuiltinTracker) sleep(frameID uint64, maxFrameRate float64) time.Duration {
	t.mu.Lock()

	// Not enough history yet: the first frameHistory frames of a
	// session have nothing to estimate from, so they run unthrottled.
	for i := uint64(2); i <= frameHistory; i++ {
		if frameID < i {
			t.mu.Unlock()
			return 0
		}
		f := t.findFrame(frameID - i)
		if f == nil || f.cpuPresentEnd.IsZero() {
			t.mu.Unlock()
			return 0
		}
		for f.gpuPresent.IsZero() {
			t.cond.Wait()
		}
	}

	if curr := t.findFrame(frameID - 1); curr != nil && !curr.cpuPresentEnd.IsZero() {
		for !curr.presentDone {
			t.cond.Wait()
		}
	}

	prev := t.findFrame(frameID - 2)

	var cpuTimes, gpuTimes [entryHistory]time.Duration
	for i := 0; i < entryHistory; i++ {
		f := t.findFrame(frameID - uint64(i+2))
		cpuTimes[i] = f.queueSubmit.Sub(f.frameStart) + f.gpuIdleTime
		gpuTimes[i] = f.gpuExecEnd.Sub(f.gpuExecStart) - f.gpuIdleTime
	}

	nextCPU := estimateTime(cpuTimes[:])
	nextGPU := estimateTime(gpuTimes[:])

	gpuDeadline := prev.gpuExecEnd.Add(2 * nextGPU)

	if interval := t.frameInterval(maxFrameRate); interval > 0 {
		var sum time.Duration
		for i := uint64(2); i <= frameHistory; i++ {
			f := t.findFrame(frameID - i)
			deadline := f.gpuPresent.Add(time.Duration(i) * interval).Add(-t.tolerance)
			sum += deadline.Sub(prev.gpuPresent)
		}
		wsiDeadline := prev.gpuPresent.Add(sum / entryHistory)
		if wsiDeadline.After(gpuDeadline) {
			gpuDeadline = wsiDeadline
		}
	}

	cpuWake := gpuDeadline.Add(-nextGPU).Add(-nextCPU).Add(-t.tolerance)
	now := time.Now()
	t.mu.Unlock()

	sleepFor := cpuWake.Sub(now)
	if sleepFor <= 0 {
		return 0
	}
	time.Sleep(sleepFor)
	return sleepFor
}

// frameInterval returns the target inter-present interval for
// maxFrameRate, or 0 if uncapped. An environment override, when
// present, always wins over the caller-supplied rate
// (DxvkBuiltInLatencyTracker's m_envFpsLimit).
func (t *BuiltinTracker) frameInterval(maxFrameRate float64) time.Duration {
	if t.envFPSLimit > 0 {
		maxFrameRate = t.envFPSLimit
	}
	if maxFrameRate <= 0 || math.IsInf(maxFrameRate, 0) || math.IsNaN(maxFrameRate) {
		return 0
	}
	return time.Duration(float64(time.Second) / maxFrameRate)
}

// estimateTime is the "maximum of per-triplet medians" described in
// spec.md §4.6: for every sliding window of three samples, drop the
// min and max and keep the remaining (middle) one, then take the
// largest of those middles across the whole history. Summing the
// triplet minus its min and max is equivalent to keeping the middle
// value directly and is cheaper to compute.
func estimateTime(samples []time.Duration) time.Duration {
	var result time.Duration
	for i := 0; i+2 < len(samples); i++ {
		a, b, c := samples[i], samples[i+1], samples[i+2]
		mid := a + b + c - min(a, b, c) - max(a, b, c)
		if mid > result {
			result = mid
		}
	}
	return result
}
