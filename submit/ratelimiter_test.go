package submit

import (
	"testing"
	"time"
)

func TestRateLimiterUncappedNeverDelays(t *testing.T) {
	r := NewRateLimiter(0)
	start := time.Now()
	r.Delay(1)
	if time.Since(start) > 5*time.Millisecond {
		t.Fatal("an uncapped limiter must return immediately")
	}
}

func TestRateLimiterSkipsWhenRefreshRateCoversTarget(t *testing.T) {
	r := NewRateLimiter(60)
	r.SetDisplayRefreshRate(60)
	start := time.Now()
	r.Delay(1)
	if time.Since(start) > 5*time.Millisecond {
		t.Fatal("a refresh rate matching the target must disable limiting")
	}
}

func TestRateLimiterPacesToTargetInterval(t *testing.T) {
	r := NewRateLimiter(500) // 2ms target interval
	r.Delay(1)               // paces against the lastFrame NewRateLimiter set and resets it

	start := time.Now()
	r.Delay(1)
	elapsed := time.Since(start)
	if elapsed < time.Millisecond {
		t.Fatalf("Delay should pace toward a 2ms interval, only slept %v", elapsed)
	}
}
