package monitors

import "time"

// WindMonitor implements the two-threshold, 60s-quiet-period watchdog
// of spec §4.6.
type WindMonitor struct {
	warnThreshold float64
	maxThreshold  float64
	quietPeriod   time.Duration
	lastWarningAt time.Time
	hasWarned     bool
}

// NewWindMonitor creates a monitor with the given thresholds and a
// 60s quiet period between warnings, as specified.
func NewWindMonitor(warnThreshold, maxThreshold float64) *WindMonitor {
	return &WindMonitor{
		warnThreshold: warnThreshold,
		maxThreshold:  maxThreshold,
		quietPeriod:   60 * time.Second,
	}
}

// Evaluate reports whether speedMS crossed the warn threshold (subject
// to the quiet period) and whether it exceeded the max threshold,
// which requests AUTO_RTL unconditionally (no quiet period on max).
func (w *WindMonitor) Evaluate(speedMS float64, now time.Time) (warn bool, exceeded bool) {
	exceeded = speedMS > w.maxThreshold

	if speedMS <= w.warnThreshold {
		return false, exceeded
	}
	if w.hasWarned && now.Sub(w.lastWarningAt) < w.quietPeriod {
		return false, exceeded
	}
	w.hasWarned = true
	w.lastWarningAt = now
	return true, exceeded
}
