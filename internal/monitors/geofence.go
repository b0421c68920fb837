package monitors

import (
	"time"

	"github.com/tiiuae/flightcore/internal/geofence"
)

// GeofenceMonitorConfig controls the prediction loop's interval and
// the vehicle's braking characteristics (§4.6).
type GeofenceMonitorConfig struct {
	Interval          time.Duration
	IsRotary          bool
	FixedWingRadius   float64
	MaxHorizontalDecel float64
	MaxVerticalDecel  float64
}

// GeofenceMonitor runs the predicted-breach check at a fixed interval
// (§4.6, §4.12, and scenario S5).
type GeofenceMonitor struct {
	cfg     GeofenceMonitorConfig
	fence   geofence.Fence
	lastRun time.Time
	hasRun  bool
	loiterOn bool

	// lastViolation/lastLoiterLat/lastLoiterLon persist the most recent
	// computed verdict so callers that poll Evaluate every tick (the
	// Commander Loop feeds it straight into failsafe.Inputs) keep
	// seeing the last known state between interval boundaries instead
	// of it flickering back to a false negative every non-due tick.
	lastViolation geofence.Violation
	lastLoiterLat float64
	lastLoiterLon float64
}

// NewGeofenceMonitor creates a monitor for the given fence and config.
func NewGeofenceMonitor(fence geofence.Fence, cfg GeofenceMonitorConfig) *GeofenceMonitor {
	return &GeofenceMonitor{cfg: cfg, fence: fence}
}

// SetFence replaces the active fence (e.g. after fenceupdate syncs a
// new polygon file).
func (g *GeofenceMonitor) SetFence(f geofence.Fence) { g.fence = f }

// LoiterOn reports whether this monitor's own corrective loiter is
// currently engaged — the "_geofence_loiter_on" flag from scenario S5.
func (g *GeofenceMonitor) LoiterOn() bool { return g.loiterOn }

// Evaluate runs the prediction at most once per Interval. due is
// false on ticks where the interval hasn't elapsed, in which case the
// caller should keep using the last Violation/loiter setpoint.
func (g *GeofenceMonitor) Evaluate(
	lat, lon, alt, headingRad, groundSpeedMS, climbRateMS float64,
	homeLat, homeLon float64,
	now time.Time,
) (violation geofence.Violation, loiterLat, loiterLon float64, due bool) {
	if g.hasRun && now.Sub(g.lastRun) < g.cfg.Interval {
		return g.lastViolation, g.lastLoiterLat, g.lastLoiterLon, false
	}
	g.lastRun = now
	g.hasRun = true

	tp := geofence.PredictTestPoint(lat, lon, alt, headingRad, groundSpeedMS, climbRateMS,
		g.cfg.IsRotary, g.cfg.FixedWingRadius, g.cfg.MaxHorizontalDecel, g.cfg.MaxVerticalDecel)

	violation = geofence.Check(g.fence, tp, homeLat, homeLon)

	if violation.Any() {
		if nLat, nLon, ok := geofence.NearestBoundaryPoint(g.fence, geofence.TestPoint{Lat: lat, Lon: lon, Alt: alt}); ok {
			// Bias the corrective point slightly inside the boundary so
			// the loiter circle itself stays within the fence.
			loiterLat = lat + (nLat-lat)*0.95
			loiterLon = lon + (nLon-lon)*0.95
		} else {
			loiterLat, loiterLon = lat, lon
		}
		g.loiterOn = true
	} else {
		g.loiterOn = false
	}

	g.lastViolation = violation
	g.lastLoiterLat, g.lastLoiterLon = loiterLat, loiterLon

	return violation, loiterLat, loiterLon, true
}
