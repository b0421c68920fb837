// Package monitors implements the debounced watchdogs of spec §4.6:
// link, battery, wind, geofence, and the two auto-disarm hysteresis
// timers. Each watchdog is its own small type; only the two
// auto-disarm timers use types.Hysteresis, while the other watchdogs
// use their own timeouts and intervals. This follows the same "one handler per
// concern feeding a shared post function" shape the teacher uses for
// its per-topic subscribers (communicationlink/telemetry/telemetry.go
// registers one handler per PX4 topic; here one monitor per watchdog
// role).
package monitors

import "time"

// LinkRole identifies a telemetry stream role (§4.6).
type LinkRole uint8

const (
	LinkRoleGCS LinkRole = iota
	LinkRoleOnboardController
	LinkRoleParachuteSystem
	LinkRoleOpenDroneID
	LinkRoleAvoidance
	LinkRoleHighLatency
	LinkRoleRC
)

type linkState struct {
	lastHeartbeat time.Time
	hasHeartbeat  bool
	lost          bool
	timeout       time.Duration
}

// LinkMonitor tracks last-heartbeat-per-role and exposes a regain
// edge (§4.6). USB acts as a sticky-connected flag once observed.
type LinkMonitor struct {
	roles map[LinkRole]*linkState
	usbEverConnected bool
}

// NewLinkMonitor creates a monitor with the given per-role timeouts.
func NewLinkMonitor(timeouts map[LinkRole]time.Duration) *LinkMonitor {
	m := &LinkMonitor{roles: make(map[LinkRole]*linkState)}
	for role, timeout := range timeouts {
		m.roles[role] = &linkState{timeout: timeout}
	}
	return m
}

// Heartbeat records a heartbeat for role at now.
func (m *LinkMonitor) Heartbeat(role LinkRole, now time.Time) {
	s := m.stateFor(role)
	s.lastHeartbeat = now
	s.hasHeartbeat = true
}

func (m *LinkMonitor) stateFor(role LinkRole) *linkState {
	s, ok := m.roles[role]
	if !ok {
		s = &linkState{timeout: 5 * time.Second}
		m.roles[role] = s
	}
	return s
}

// Update evaluates timeouts at now and returns (lost, regained) for
// role. regained is true exactly on the tick the link transitions
// from lost back to not-lost.
func (m *LinkMonitor) Update(role LinkRole, now time.Time) (lost bool, regained bool) {
	s := m.stateFor(role)
	wasLost := s.lost
	if !s.hasHeartbeat {
		s.lost = true
	} else {
		s.lost = now.Sub(s.lastHeartbeat) > s.timeout
	}
	regained = wasLost && !s.lost
	return s.lost, regained
}

// SetUSBConnected marks the sticky USB-connected flag. Once true it
// never reports false again for this monitor's lifetime.
func (m *LinkMonitor) SetUSBConnected(connected bool) {
	if connected {
		m.usbEverConnected = true
	}
}

// USBConnected reports the sticky USB flag.
func (m *LinkMonitor) USBConnected() bool { return m.usbEverConnected }
