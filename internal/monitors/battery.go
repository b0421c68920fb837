package monitors

import "github.com/tiiuae/flightcore/internal/types"

// BatteryMonitor tracks the warning level and remaining-time flag.
// Only increases in warning level while armed trigger failsafe
// actions (§4.6) — the monitor's Update reports that edge explicitly
// so the failsafe resolver never has to re-derive it from a bare
// level comparison.
type BatteryMonitor struct {
	level        types.BatteryWarning
	lowRemaining bool
	initialized  bool
}

// NewBatteryMonitor creates a monitor starting at BatteryWarningNone.
func NewBatteryMonitor() *BatteryMonitor {
	return &BatteryMonitor{}
}

// Update records a new warning-level/remaining-time sample. worsened
// is true only when armed and the level strictly increased from the
// previous sample.
func (b *BatteryMonitor) Update(level types.BatteryWarning, lowRemainingTime, armed bool) (worsened bool) {
	if b.initialized && armed && level > b.level {
		worsened = true
	}
	b.level = level
	b.lowRemaining = lowRemainingTime
	b.initialized = true
	return worsened
}

// Level returns the current battery warning level.
func (b *BatteryMonitor) Level() types.BatteryWarning { return b.level }

// LowRemainingTime returns the current battery_low_remaining_time flag.
func (b *BatteryMonitor) LowRemainingTime() bool { return b.lowRemaining }
