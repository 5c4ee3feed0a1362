package submit

import "time"

// Stats reports the last completed frame's measured latency, as
// returned by a tracker's get_stats (spec.md §4.6).
type Stats struct {
	FrameLatency  time.Duration
	SleepDuration time.Duration
}

// Tracker is the capability set every latency tracker implements
// (spec.md §9 "Double-dispatch latency trackers": "polymorphic over
// {notify_*, sleep_and_begin_frame, get_stats}"). The built-in
// ring-buffer tracker and the Reflex-style tracker both satisfy it;
// Queue treats the two interchangeably and a nil Tracker disables
// latency tracking entirely.
type Tracker interface {
	// NeedsAutoMarkers reports whether Queue must synthesize its own
	// NotifyQueueSubmit/NotifyQueuePresentBegin/End calls around
	// submissions, as opposed to relying on markers the application
	// supplies directly (the Reflex-style tracker's markerless mode).
	NeedsAutoMarkers() bool

	NotifyCpuPresentBegin(frameID uint64)
	NotifyCpuPresentEnd(frameID uint64)
	NotifyQueueSubmit(frameID uint64)
	NotifyQueuePresentBegin(frameID uint64)
	NotifyQueuePresentEnd(frameID uint64, err error)
	NotifyGpuExecutionBegin(frameID uint64)
	NotifyGpuExecutionEnd(frameID uint64)
	NotifyGpuPresentEnd(frameID uint64)

	// SleepAndBeginFrame blocks the calling (render) thread until the
	// computed wake time, then opens a new frame entry for frameID.
	// maxFrameRate <= 0 means uncapped.
	SleepAndBeginFrame(frameID uint64, maxFrameRate float64)

	// DiscardTimings drops the tracker's history, used after a
	// resolution change or similar discontinuity that would otherwise
	// corrupt the sliding estimate window.
	DiscardTimings()

	Stats(frameID uint64) Stats
}
