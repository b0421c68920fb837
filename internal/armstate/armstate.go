// Package armstate implements the 5(+1)-state arm lifecycle machine
// described in spec §4.1: {INIT, STANDBY, ARMED, STANDBY_ERROR,
// SHUTDOWN, IN_AIR_RESTORE}. The shape — an explicit state field plus
// one function per external event returning a result enum — is
// grounded on the teacher's task-state machines
// (missionengine/internal/flypx4/state.go and
// missionengine/internal/flyf4f/state.go), generalized from their
// per-mission-task lifecycle to the vehicle-wide arm lifecycle.
package armstate

import (
	"time"

	"github.com/tiiuae/flightcore/internal/types"
)

// Gates collects the external preconditions an arm attempt consults.
// The Machine never reaches into global state; every decision is a
// pure function of the Gates passed to each call.
type Gates struct {
	ChecksPass           bool // health & arming checks pass for the candidate state
	PreArmChecksPass     bool // optional pre-arm gates (§4.1 bullet "optional pre-arm gates")
	Forced               bool
	InAirRestricted       bool // forced arm while a landed/in-air restriction applies
	Landed               bool
	ManualRotaryThrustOK bool // manual rotary-wing with manual thrust, allows ARMED->STANDBY
	IsRover              bool

	// Additional arming gates, §4.1 "Arming gates beyond health checks".
	FromManualClimbRateMode    bool
	ThrottleAboveCenter        bool
	FromManualNonClimbRateMode bool
	ThrottleNearFloor          bool
	SourceIsRC                 bool
	SourceInManualModeContext  bool
	GeofenceActionIsRTL        bool
	HomeValid                  bool

	OnboardIOArmWhileAirborne bool // INIT -> IN_AIR_RESTORE -> ARMED path
}

// DeniedReason names why an attempted transition was rejected, for the
// structured event and negative tune the spec requires on denial
// (§4.1, §7).
type DeniedReason uint8

const (
	DeniedNone DeniedReason = iota
	DeniedChecksFail
	DeniedPreArmChecksFail
	DeniedThrottleAboveCenter
	DeniedThrottleNotNearFloor
	DeniedNotInManualModeContext
	DeniedHomeInvalidForGeofenceRTL
	DeniedNotLanded
	DeniedAlreadyArmedOrShutdown
	DeniedForceFailsafeActive
)

// Machine is the arm lifecycle state machine. It is not safe for
// concurrent use — the Commander Loop is its only caller, once per
// tick, per §5's single-threaded cooperative model.
type Machine struct {
	state ArmingState
	// forceFailsafeSetThisFlight is monotone once true, enforcing
	// invariant 1 in spec §8: once force_failsafe is set during a
	// flight the machine never returns to ARMED from STANDBY within
	// the same session unless force_failsafe is externally cleared.
	forceFailsafeSetThisFlight bool
	bootTime                   time.Time
}

// ArmingState aliases types.ArmingState for readability within this
// package's public API.
type ArmingState = types.ArmingState

// New creates a Machine starting in INIT at the given boot time. The
// boot time anchors the in-air restart holdoff interval (§4.1).
func New(bootTime time.Time) *Machine {
	return &Machine{state: types.ArmingStateInit, bootTime: bootTime}
}

// State returns the current arming state.
func (m *Machine) State() ArmingState { return m.state }

// SetForceFailsafe latches the monotone force-failsafe flag for the
// remainder of the flight. Only an external "clear" command
// (ClearForceFailsafe) may undo it.
func (m *Machine) SetForceFailsafe() { m.forceFailsafeSetThisFlight = true }

// ClearForceFailsafe is the sole external escape from the monotone
// force-failsafe lock (§8 invariant 1's explicit exception).
func (m *Machine) ClearForceFailsafe() { m.forceFailsafeSetThisFlight = false }

// ForceFailsafeLatched reports whether the monotone lock is active.
func (m *Machine) ForceFailsafeLatched() bool { return m.forceFailsafeSetThisFlight }

// InAirHoldoffElapsed reports whether the boot holdoff (~500ms) that
// suppresses home-set-on-arm after a brown-out restart has elapsed.
func (m *Machine) InAirHoldoffElapsed(now time.Time) bool {
	return now.Sub(m.bootTime) >= 500*time.Millisecond
}

// TryInit attempts INIT -> STANDBY or INIT -> STANDBY_ERROR, the only
// transitions legal from INIT besides the IN_AIR_RESTORE path.
func (m *Machine) TryInit(g Gates) (types.TransitionResult, DeniedReason) {
	if m.state != types.ArmingStateInit {
		return types.TransitionNotChanged, DeniedNone
	}
	if g.ChecksPass {
		m.state = types.ArmingStateStandby
		return types.TransitionChanged, DeniedNone
	}
	m.state = types.ArmingStateStandbyError
	return types.TransitionChanged, DeniedChecksFail
}

// TryArm attempts STANDBY -> ARMED, applying every arming gate in
// §4.1 plus the §8 invariant-1 monotone force-failsafe lock and the
// §8 invariant-2 geofence-RTL home-validity rule.
func (m *Machine) TryArm(g Gates, now time.Time) (types.TransitionResult, DeniedReason) {
	if m.state == types.ArmingStateArmed {
		return types.TransitionNotChanged, DeniedNone
	}
	if m.state != types.ArmingStateStandby && m.state != types.ArmingStateInAirRestore {
		return types.TransitionDenied, DeniedAlreadyArmedOrShutdown
	}

	if m.forceFailsafeSetThisFlight && m.state == types.ArmingStateStandby {
		return types.TransitionDenied, DeniedForceFailsafeActive
	}

	// Invariant 2 (§8): arm denied when geofence action == RTL and
	// home is invalid.
	if g.GeofenceActionIsRTL && !g.HomeValid {
		return types.TransitionDenied, DeniedHomeInvalidForGeofenceRTL
	}

	if !g.Forced {
		if !g.ChecksPass {
			return types.TransitionDenied, DeniedChecksFail
		}
		if !g.PreArmChecksPass {
			return types.TransitionDenied, DeniedPreArmChecksFail
		}
	} else if g.InAirRestricted {
		return types.TransitionDenied, DeniedAlreadyArmedOrShutdown
	}

	// Gate 1: manual-climb-rate mode, throttle above center rejected.
	if g.FromManualClimbRateMode && g.ThrottleAboveCenter {
		return types.TransitionDenied, DeniedThrottleAboveCenter
	}
	// Gate 2: manual non-climb-rate mode (not rover), throttle must be
	// near floor.
	if g.FromManualNonClimbRateMode && !g.IsRover && !g.ThrottleNearFloor {
		return types.TransitionDenied, DeniedThrottleNotNearFloor
	}
	// Gate 3: RC sources other than manual-mode context require
	// manual mode first.
	if g.SourceIsRC && !g.SourceInManualModeContext {
		return types.TransitionDenied, DeniedNotInManualModeContext
	}

	m.state = types.ArmingStateArmed
	return types.TransitionChanged, DeniedNone
}

// TryDisarm attempts ARMED -> STANDBY. Succeeds when landed, when
// forced, or when called while manual rotary-wing with manual thrust
// (§4.1).
func (m *Machine) TryDisarm(g Gates) (types.TransitionResult, DeniedReason) {
	if m.state != types.ArmingStateArmed {
		return types.TransitionNotChanged, DeniedNone
	}
	if g.Landed || g.Forced || g.ManualRotaryThrustOK {
		m.state = types.ArmingStateStandby
		return types.TransitionChanged, DeniedNone
	}
	return types.TransitionDenied, DeniedNotLanded
}

// TryShutdown attempts any-non-ARMED -> SHUTDOWN. Requires an explicit
// shutdown request and that the vehicle is not armed.
func (m *Machine) TryShutdown(requested bool) (types.TransitionResult, DeniedReason) {
	if m.state == types.ArmingStateArmed {
		return types.TransitionDenied, DeniedAlreadyArmedOrShutdown
	}
	if !requested {
		return types.TransitionNotChanged, DeniedNone
	}
	if m.state == types.ArmingStateShutdown {
		return types.TransitionNotChanged, DeniedNone
	}
	m.state = types.ArmingStateShutdown
	return types.TransitionChanged, DeniedNone
}

// TryOnboardIOArm drives INIT -> IN_AIR_RESTORE, the transient state
// used when an onboard system attempts to restart mid-flight (§4.1).
// A subsequent TryArm call completes IN_AIR_RESTORE -> ARMED.
func (m *Machine) TryOnboardIOArm(g Gates) types.TransitionResult {
	if m.state != types.ArmingStateInit || !g.OnboardIOArmWhileAirborne {
		return types.TransitionNotChanged
	}
	m.state = types.ArmingStateInAirRestore
	return types.TransitionChanged
}
