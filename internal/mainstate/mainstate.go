// Package mainstate implements the user/automatic flight-mode state
// machine described in spec §4.2. Like armstate, its shape — state
// field plus gated transition attempts returning a result enum — is
// grounded on the teacher's task-state machines
// (missionengine/internal/flypx4/state.go,
// missionengine/internal/flyf4f/state.go).
package mainstate

import "github.com/tiiuae/flightcore/internal/types"

// Conditions collects the vehicle-status/status-flags preconditions a
// main-state transition request is checked against (§4.2).
type Conditions struct {
	GlobalPositionValid     bool
	LocalPositionValid      bool
	AltitudeValid           bool
	HomePositionValid       bool
	OffboardSignalRecent    bool
	VehicleType             types.VehicleType
	NeverChangedModeSinceBoot bool
	RequestIsHighLevelSource bool
}

// DenialReason explains why a requested transition was rejected.
type DenialReason uint8

const (
	DenialNone DenialReason = iota
	DenialMissingGlobalPosition
	DenialMissingLocalPosition
	DenialMissingHome
	DenialOffboardSignalStale
	DenialUnsupportedForVehicleType
)

// Machine is the main flight-mode state machine.
type Machine struct {
	state   types.MainState
	changes uint32
}

// New creates a Machine starting in MANUAL.
func New() *Machine {
	return &Machine{state: types.MainStateManual}
}

// State returns the current main state and its monotonic change
// counter (§3 "Commander State").
func (m *Machine) State() (types.MainState, uint32) { return m.state, m.changes }

// requiresGlobalPosition reports which main states are AUTO modes
// that need a global position estimate (§4.2).
func requiresGlobalPosition(s types.MainState) bool {
	switch s {
	case types.MainStateAutoMission, types.MainStateAutoLoiter, types.MainStateAutoRTL,
		types.MainStateAutoFollowTarget, types.MainStateAutoPrecland, types.MainStateOrbit,
		types.MainStateAutoVtolTakeoff:
		return true
	default:
		return false
	}
}

// Try attempts to switch to target. Idempotent: requesting the
// currently active state returns Changed=NotChanged without touching
// the change counter, satisfying §8 invariant 8.
func (m *Machine) Try(target types.MainState, c Conditions) (types.TransitionResult, DenialReason, types.MainState) {
	if target == m.state {
		return types.TransitionNotChanged, DenialNone, m.state
	}

	if requiresGlobalPosition(target) && !c.GlobalPositionValid {
		return types.TransitionDenied, DenialMissingGlobalPosition, m.state
	}

	if target == types.MainStateAutoTakeoff && !c.LocalPositionValid {
		return types.TransitionDenied, DenialMissingLocalPosition, m.state
	}

	if target == types.MainStateAutoRTL && !c.HomePositionValid {
		return types.TransitionDenied, DenialMissingHome, m.state
	}

	if target == types.MainStateOffboard && !c.OffboardSignalRecent {
		return types.TransitionDenied, DenialOffboardSignalStale, m.state
	}

	if c.VehicleType == types.VehicleTypeRover {
		switch target {
		case types.MainStateAcro, types.MainStateAutoVtolTakeoff, types.MainStateAutoFollowTarget:
			return types.TransitionDenied, DenialUnsupportedForVehicleType, m.state
		}
	}

	// Tie-break: POSCTL requested but position invalid -> fall back to
	// ALTCTL if altitude valid, else deny (§4.2).
	if target == types.MainStatePosctl && !c.GlobalPositionValid {
		if c.AltitudeValid {
			target = types.MainStateAltctl
			if target == m.state {
				return types.TransitionNotChanged, DenialNone, m.state
			}
		} else {
			return types.TransitionDenied, DenialMissingGlobalPosition, m.state
		}
	}

	m.state = target
	m.changes++
	return types.TransitionChanged, DenialNone, m.state
}

// ForceInstallInitial implements §4.2's special rule: if the operator
// has never changed mode since boot, an initial RC mode-slot
// assignment may force-install ALTCTL/POSCTL without transition
// checks, and a high-level (non-RC) source may force POSCTL.
func (m *Machine) ForceInstallInitial(target types.MainState, c Conditions) bool {
	if !c.NeverChangedModeSinceBoot {
		return false
	}
	if c.RequestIsHighLevelSource {
		m.state = types.MainStatePosctl
		return true
	}
	switch target {
	case types.MainStateAltctl, types.MainStatePosctl:
		m.state = target
		return true
	}
	return false
}
