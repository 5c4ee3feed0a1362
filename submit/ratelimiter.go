package submit

import (
	"sync"
	"time"
)

// sleepThreshold is the shortest sleep RateLimiter.Delay will actually
// issue; below it, the call overhead of sleeping would cost more than
// it saves (FpsLimiter::delay's inline threshold constant).
const sleepThreshold = 50 * time.Microsecond

// RateLimiter paces frames to a target rate independent of a latency
// tracker's own deadline math, grounded on
// original_source/src/util/util_fps_limit.{h,cpp}'s FpsLimiter. It is
// a standalone collaborator reused by both BuiltinTracker and
// ReflexTracker (set via UseRateLimiter) rather than folded into
// either tracker's estimate, matching the distilled spec's "max_rate"
// handling while keeping the deviation-compensated sleep primitive
// self-contained and reusable. A zero-value RateLimiter (or a nil
// *RateLimiter) never delays.
type RateLimiter struct {
	mu sync.Mutex

	targetInterval  float64 // seconds; 0 means uncapped
	refreshInterval float64 // seconds; 0 means no known display refresh
	deviation       float64 // seconds, signed
	lastFrame       time.Time
}

// NewRateLimiter builds a limiter targeting targetFrameRate frames per
// second. targetFrameRate <= 0 means uncapped.
func NewRateLimiter(targetFrameRate float64) *RateLimiter {
	r := &RateLimiter{lastFrame: time.Now()}
	r.SetTargetFrameRate(targetFrameRate)
	return r
}

// SetTargetFrameRate reconfigures the limiter's target rate. rate <= 0
// disables limiting.
func (r *RateLimiter) SetTargetFrameRate(rate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rate > 0 {
		r.targetInterval = 1.0 / rate
	} else {
		r.targetInterval = 0
	}
}

// SetDisplayRefreshRate records the swapchain's refresh rate so Delay
// can disable itself when vsync already paces close enough to the
// target (FpsLimiter::setDisplayRefreshRate).
func (r *RateLimiter) SetDisplayRefreshRate(rate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rate > 0 {
		r.refreshInterval = 1.0 / rate
	} else {
		r.refreshInterval = 0
	}
}

// Delay blocks the calling goroutine to pace successive calls to the
// configured target rate, compensating for sleep overshoot/undershoot
// across calls so cumulative drift does not accumulate
// (FpsLimiter::delay). syncInterval is the presentation sync interval
// (vblank count) of the frame about to be presented; pass 1 absent a
// more specific value.
func (r *RateLimiter) Delay(syncInterval uint32) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.targetInterval == 0 {
		return
	}
	if r.refreshInterval*float64(syncInterval) > r.targetInterval*0.97 {
		// vsync is already pacing close enough to the target; limiting
		// on top of it would just introduce stutter.
		return
	}

	t0 := r.lastFrame
	t1 := time.Now()
	elapsed := t1.Sub(t0).Seconds()

	if elapsed > r.targetInterval*1.03-r.deviation {
		// A slow frame: don't try to compensate for it later.
		r.deviation = 0
	} else {
		threshold := sleepThreshold.Seconds()
		sleepSeconds := r.targetInterval - r.deviation - elapsed
		if sleepSeconds > threshold {
			time.Sleep(time.Duration((sleepSeconds - threshold) * float64(time.Second)))
			t1 = time.Now()
		}

		r.deviation += t1.Sub(t0).Seconds() - r.targetInterval
		if maxDeviation := r.targetInterval / 16; r.deviation > maxDeviation {
			r.deviation = maxDeviation
		}
	}

	r.lastFrame = t1
}
