// Package tune encodes the tune_control and led_control outputs named
// in spec §6/§7: an audible negative cue on denial/failure, the
// parachute-release tune, and the LED colour ladder. Driving the
// actual buzzer/LED hardware is out of scope (spec §1 non-goal); this
// package only decides and rate-limits which cue/colour applies.
package tune

import "time"

// ToneID names a tune_control tone, mirroring the PX4 TUNE_ID space
// named in spec §8 scenario S2.
type ToneID uint8

const (
	ToneNone ToneID = iota
	ToneNegative
	ToneArmWarning
	ToneParachuteRelease
)

// LEDColor is the LED colour ladder from the GLOSSARY/§7.
type LEDColor uint8

const (
	LEDInit LEDColor = iota
	LEDStandby
	LEDArmed
	LEDFailsafe
	LEDBatteryWarn
	LEDBatteryCritical
	LEDHomeKnown
	LEDOverload

	// LEDOff is driven once the arming state machine reaches SHUTDOWN
	// (spec §5's should_exit / LED-off resource release step).
	LEDOff
)

// RateLimiter suppresses repeat identical events within a minimum
// interval, per SPEC_FULL §12 item 3 ("rate-limited mode-rejected and
// esc-calibration tunes").
type RateLimiter struct {
	minInterval time.Duration
	lastFired   map[string]time.Time
}

// NewRateLimiter creates a limiter with the given minimum re-announce
// interval per event id.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{minInterval: minInterval, lastFired: make(map[string]time.Time)}
}

// Allow reports whether eventID may fire again at now, and records
// the firing if so.
func (r *RateLimiter) Allow(eventID string, now time.Time) bool {
	last, ok := r.lastFired[eventID]
	if ok && now.Sub(last) < r.minInterval {
		return false
	}
	r.lastFired[eventID] = now
	return true
}

// NegativeCueFor reports whether result warrants the negative acoustic
// cue of §7 ("a negative acoustic cue on any DENIED/FAILED/REJECTED/
// UNSUPPORTED result (except during RC calibration)").
func NegativeCueFor(denied, failed, rejected, unsupported, rcCalibrationInProgress bool) bool {
	if rcCalibrationInProgress {
		return false
	}
	return denied || failed || rejected || unsupported
}
