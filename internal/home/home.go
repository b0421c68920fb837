// Package home implements the Home Position Manager of spec §4.5.
package home

import (
	"time"

	"github.com/tiiuae/flightcore/internal/types"
)

// Config controls optional in-air refresh behaviour.
type Config struct {
	RefreshInAir bool
}

// Manager owns the single HomePosition record. Once a failsafe action
// requiring home has fired, the invariant "home must remain valid for
// the remainder of that action" (§4.5) is enforced by the caller never
// invoking Invalidate while such an action is in progress; Manager
// itself only refuses to invalidate while ActionInProgress is true.
type Manager struct {
	cfg     Config
	current types.HomePosition

	actionInProgress bool
}

// New creates an empty, invalid Manager.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Current returns the current home position.
func (m *Manager) Current() types.HomePosition { return m.current }

// SetActionInProgress marks whether a failsafe action that depends on
// home validity is currently running.
func (m *Manager) SetActionInProgress(inProgress bool) { m.actionInProgress = inProgress }

// SetFromPosition sets home from the vehicle's current global
// position and yaw — used for "current position" home commands and
// for the first-arm / takeoff-edge triggers.
func (m *Manager) SetFromPosition(lat, lon, alt float64, yaw float32, now time.Time) bool {
	return m.set(lat, lon, alt, yaw, now)
}

// SetManual sets home from explicit lat/lon/alt/yaw parameters (the
// DO_SET_HOME command's manual-coordinates form, §6).
func (m *Manager) SetManual(lat, lon, alt float64, yaw float32, now time.Time) bool {
	return m.set(lat, lon, alt, yaw, now)
}

func (m *Manager) set(lat, lon, alt float64, yaw float32, now time.Time) bool {
	candidate := types.HomePosition{Lat: lat, Lon: lon, Alt: alt, Yaw: yaw, Timestamp: now}
	candidate.Valid = candidate.IsFinite()
	if !candidate.Valid {
		return false
	}
	m.current = candidate
	return true
}

// OnFirstArm is called once per flight when the arm state machine
// transitions into ARMED, at least 500ms after boot (§4.5). It sets
// home only if not already valid (first-arm semantics) and the boot
// holdoff has elapsed.
func (m *Manager) OnFirstArm(lat, lon, alt float64, yaw float32, now, bootTime time.Time) bool {
	if m.current.Valid {
		return false
	}
	if now.Sub(bootTime) < 500*time.Millisecond {
		return false
	}
	return m.set(lat, lon, alt, yaw, now)
}

// OnTakeoffEdge refreshes home at the takeoff edge if in-air home
// updates are enabled (§4.5 trigger iii).
func (m *Manager) OnTakeoffEdge(lat, lon, alt float64, yaw float32, now time.Time) bool {
	if !m.cfg.RefreshInAir {
		return false
	}
	return m.set(lat, lon, alt, yaw, now)
}

// Invalidate clears home on shutdown (§4.5 lifecycle). Refuses while
// a home-dependent failsafe action is in progress.
func (m *Manager) Invalidate() bool {
	if m.actionInProgress {
		return false
	}
	m.current = types.HomePosition{}
	return true
}
