package submit

import "sync"

// ReflexTracker is a portable stand-in for DxvkReflexLatencyTrackerNv:
// it accepts application-supplied frame IDs, maps them onto the
// internal monotonically increasing frame IDs the rest of the package
// works with, and otherwise reduces to the same sleep estimate as
// BuiltinTracker. The native VK_NV_low_latency2 marker forwarding
// (SimulationStart, RenderSubmitStart/End, PresentStart/End,
// InputSample) has no equivalent without a vendor presenter extension;
// this tracker only implements the markerless fallback mode spec.md
// §4.6 describes for applications that do not supply markers.
type ReflexTracker struct {
	inner *BuiltinTracker

	mu      sync.Mutex
	nextID  uint64
	appToID map[uint64]uint64
}

// NewReflexTracker wraps a BuiltinTracker with application-frame-ID
// translation.
func NewReflexTracker(inner *BuiltinTracker) *ReflexTracker {
	return &ReflexTracker{inner: inner, appToID: make(map[uint64]uint64)}
}

// mapFrame returns the internal frame ID for appFrameID, assigning a
// fresh one on first use.
func (t *ReflexTracker) mapFrame(appFrameID uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.appToID[appFrameID]; ok {
		return id
	}
	id := t.nextID
	t.nextID++
	t.appToID[appFrameID] = id
	if len(t.appToID) > frameHistory*4 {
		// Bound the map: entries older than the tracker's own sliding
		// window can never be looked up again.
		for k, v := range t.appToID {
			if v+frameHistory*2 < id {
				delete(t.appToID, k)
			}
		}
	}
	return id
}

// UseRateLimiter attaches r to the wrapped BuiltinTracker.
func (t *ReflexTracker) UseRateLimiter(r *RateLimiter) { t.inner.UseRateLimiter(r) }

func (t *ReflexTracker) NeedsAutoMarkers() bool { return t.inner.NeedsAutoMarkers() }

func (t *ReflexTracker) NotifyCpuPresentBegin(appFrameID uint64) {
	t.inner.NotifyCpuPresentBegin(t.mapFrame(appFrameID))
}

func (t *ReflexTracker) NotifyCpuPresentEnd(appFrameID uint64) {
	t.inner.NotifyCpuPresentEnd(t.mapFrame(appFrameID))
}

func (t *ReflexTracker) NotifyQueueSubmit(appFrameID uint64) {
	t.inner.NotifyQueueSubmit(t.mapFrame(appFrameID))
}

func (t *ReflexTracker) NotifyQueuePresentBegin(appFrameID uint64) {
	t.inner.NotifyQueuePresentBegin(t.mapFrame(appFrameID))
}

func (t *ReflexTracker) NotifyQueuePresentEnd(appFrameID uint64, err error) {
	t.inner.NotifyQueuePresentEnd(t.mapFrame(appFrameID), err)
}

func (t *ReflexTracker) NotifyGpuExecutionBegin(appFrameID uint64) {
	t.inner.NotifyGpuExecutionBegin(t.mapFrame(appFrameID))
}

func (t *ReflexTracker) NotifyGpuExecutionEnd(appFrameID uint64) {
	t.inner.NotifyGpuExecutionEnd(t.mapFrame(appFrameID))
}

func (t *ReflexTracker) NotifyGpuPresentEnd(appFrameID uint64) {
	t.inner.NotifyGpuPresentEnd(t.mapFrame(appFrameID))
}

func (t *ReflexTracker) SleepAndBeginFrame(appFrameID uint64, maxFrameRate float64) {
	t.inner.SleepAndBeginFrame(t.mapFrame(appFrameID), maxFrameRate)
}

func (t *ReflexTracker) DiscardTimings() { t.inner.DiscardTimings() }

func (t *ReflexTracker) Stats(appFrameID uint64) Stats {
	t.mu.Lock()
	id, ok := t.appToID[appFrameID]
	t.mu.Unlock()
	if !ok {
		return Stats{}
	}
	return t.inner.Stats(id)
}
