package tune

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsFirstFiring(t *testing.T) {
	r := NewRateLimiter(time.Second)
	if !r.Allow("mode-rejected", time.Unix(0, 0)) {
		t.Fatalf("expected the first firing of a new event id to be allowed")
	}
}

func TestRateLimiterSuppressesWithinInterval(t *testing.T) {
	r := NewRateLimiter(time.Second)
	now := time.Unix(0, 0)
	r.Allow("mode-rejected", now)
	if r.Allow("mode-rejected", now.Add(500*time.Millisecond)) {
		t.Fatalf("expected a repeat within the minimum interval to be suppressed")
	}
}

func TestRateLimiterAllowsAfterInterval(t *testing.T) {
	r := NewRateLimiter(time.Second)
	now := time.Unix(0, 0)
	r.Allow("mode-rejected", now)
	if !r.Allow("mode-rejected", now.Add(2*time.Second)) {
		t.Fatalf("expected a repeat after the minimum interval to be allowed")
	}
}

func TestRateLimiterTracksEventIDsIndependently(t *testing.T) {
	r := NewRateLimiter(time.Second)
	now := time.Unix(0, 0)
	r.Allow("mode-rejected", now)
	if !r.Allow("esc-calibration", now) {
		t.Fatalf("expected a distinct event id to fire independently")
	}
}

func TestNegativeCueForDeniedFailedRejectedUnsupported(t *testing.T) {
	cases := []struct {
		denied, failed, rejected, unsupported bool
	}{
		{denied: true},
		{failed: true},
		{rejected: true},
		{unsupported: true},
	}
	for _, c := range cases {
		if !NegativeCueFor(c.denied, c.failed, c.rejected, c.unsupported, false) {
			t.Fatalf("expected a negative cue for %+v", c)
		}
	}
}

func TestNegativeCueForSuppressedDuringRCCalibration(t *testing.T) {
	if NegativeCueFor(true, true, true, true, true) {
		t.Fatalf("expected no negative cue while RC calibration is in progress")
	}
}

func TestNegativeCueForQuietOnSuccess(t *testing.T) {
	if NegativeCueFor(false, false, false, false, false) {
		t.Fatalf("expected no negative cue when nothing was denied, failed, rejected, or unsupported")
	}
}
