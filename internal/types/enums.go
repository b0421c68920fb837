// Package types holds the data model shared by every supervisory
// subsystem: arming/navigation/main-mode enums, vehicle status and
// command records, and the small value types that flow across the
// pub/sub bus.
package types

// ArmingState is the lifecycle stage of motor enablement.
type ArmingState uint8

const (
	ArmingStateInit ArmingState = iota
	ArmingStateStandby
	ArmingStateArmed
	ArmingStateStandbyError
	ArmingStateShutdown
	ArmingStateInAirRestore
)

func (s ArmingState) String() string {
	switch s {
	case ArmingStateInit:
		return "INIT"
	case ArmingStateStandby:
		return "STANDBY"
	case ArmingStateArmed:
		return "ARMED"
	case ArmingStateStandbyError:
		return "STANDBY_ERROR"
	case ArmingStateShutdown:
		return "SHUTDOWN"
	case ArmingStateInAirRestore:
		return "IN_AIR_RESTORE"
	default:
		return "UNKNOWN"
	}
}

// NavigationState is the effective mode after failsafe resolution —
// what the downstream controllers actually obey.
type NavigationState uint8

const (
	NavStateManual NavigationState = iota
	NavStateAltctl
	NavStatePosctl
	NavStateAutoMission
	NavStateAutoLoiter
	NavStateAutoRTL
	NavStateAcro
	NavStateDescend
	NavStateTermination
	NavStateOffboard
	NavStateStabilized
	NavStateAutoTakeoff
	NavStateAutoLand
	NavStateAutoFollowTarget
	NavStatePrecland
	NavStateOrbit
	NavStateAutoVtolTakeoff
	NavStateRCRecover
	NavStateDataLinkLoss
	NavStateOffboardLoss
)

func (s NavigationState) String() string {
	names := [...]string{
		"MANUAL", "ALTCTL", "POSCTL", "AUTO_MISSION", "AUTO_LOITER",
		"AUTO_RTL", "ACRO", "DESCEND", "TERMINATION", "OFFBOARD",
		"STABILIZED", "AUTO_TAKEOFF", "AUTO_LAND", "AUTO_FOLLOW_TARGET",
		"AUTO_PRECLAND", "ORBIT", "AUTO_VTOL_TAKEOFF", "RC_RECOVER",
		"DATALINK_LOSS", "OFFBOARD_LOSS",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// MainState is the operator/automation-requested flight mode.
type MainState uint8

const (
	MainStateManual MainState = iota
	MainStateAltctl
	MainStatePosctl
	MainStateAutoMission
	MainStateAutoLoiter
	MainStateAutoRTL
	MainStateAcro
	MainStateOffboard
	MainStateStab
	MainStateAutoTakeoff
	MainStateAutoLand
	MainStateAutoFollowTarget
	MainStateAutoPrecland
	MainStateOrbit
	MainStateAutoVtolTakeoff
)

func (s MainState) String() string {
	names := [...]string{
		"MANUAL", "ALTCTL", "POSCTL", "AUTO_MISSION", "AUTO_LOITER",
		"AUTO_RTL", "ACRO", "OFFBOARD", "STAB", "AUTO_TAKEOFF",
		"AUTO_LAND", "AUTO_FOLLOW_TARGET", "AUTO_PRECLAND", "ORBIT",
		"AUTO_VTOL_TAKEOFF",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// VehicleType gates which transitions are legal for a given frame.
type VehicleType uint8

const (
	VehicleTypeUnknown VehicleType = iota
	VehicleTypeRotaryWing
	VehicleTypeFixedWing
	VehicleTypeRover
	VehicleTypeVTOL
)

// BatteryWarning is the monotone-within-a-flight warning ladder.
type BatteryWarning uint8

const (
	BatteryWarningNone BatteryWarning = iota
	BatteryWarningLow
	BatteryWarningCritical
	BatteryWarningEmergency
)

// RTLType selects which return-to-launch sub-strategy the Navigator's
// RTL mode executes.
type RTLType uint8

const (
	RTLDirect RTLType = iota
	RTLClosest
	RTLMissionLanding
	RTLMissionLandingReversed
)

// GeofenceAction is the configured response to a geofence breach.
type GeofenceAction uint8

const (
	GeofenceActionNone GeofenceAction = iota
	GeofenceActionWarn
	GeofenceActionLoiter
	GeofenceActionRTL
	GeofenceActionLand
	GeofenceActionTerminate
)

// FailsafeAction is the configured response to a link/battery loss
// event, shared by the link-loss, RC-loss, offboard-loss and battery
// failsafe tables.
type FailsafeAction uint8

const (
	FailsafeActionWarn FailsafeAction = iota
	FailsafeActionHold
	FailsafeActionRTL
	FailsafeActionLand
	FailsafeActionTerminate
)

// SetpointType distinguishes the semantics of a position setpoint.
type SetpointType uint8

const (
	SetpointIdle SetpointType = iota
	SetpointLoiter
	SetpointTakeoff
	SetpointLand
	SetpointPosition
)

// LoiterDirection is the turn sense for a loiter circle.
type LoiterDirection int8

const (
	LoiterCounterClockwise LoiterDirection = -1
	LoiterClockwise        LoiterDirection = 1
)

// NavModeKind tags the Navigator's active mode variant (§4.8, §9 —
// "runtime polymorphism over navigation modes... a tagged variant").
type NavModeKind uint8

const (
	NavModeNone NavModeKind = iota
	NavModeMission
	NavModeLoiter
	NavModeRTL
	NavModeTakeoff
	NavModeVTOLTakeoff
	NavModeLand
	NavModePrecland
)

func (k NavModeKind) String() string {
	names := [...]string{"NONE", "MISSION", "LOITER", "RTL", "TAKEOFF", "VTOL_TAKEOFF", "LAND", "PRECLAND"}
	if int(k) < len(names) {
		return names[k]
	}
	return "UNKNOWN"
}

// CommandResult is the outcome a command handler returns; the
// dispatcher maps it 1:1 to exactly one ACK per spec §4.9/§7.
type CommandResult uint8

const (
	CommandAccepted CommandResult = iota
	CommandTemporarilyRejected
	CommandDenied
	CommandFailed
	CommandUnsupported
)

// TransitionResult is what the arm/main state machines return per
// attempt (§4.1).
type TransitionResult uint8

const (
	TransitionChanged TransitionResult = iota
	TransitionNotChanged
	TransitionDenied
)

// ActionSource identifies where an ActionRequest originated.
type ActionSource uint8

const (
	ActionSourceRCStick ActionSource = iota
	ActionSourceRCSwitch
	ActionSourceRCButton
	ActionSourceRCModeSlot
)

// Action is the compact user-intent carried by an ActionRequest.
type Action uint8

const (
	ActionArm Action = iota
	ActionDisarm
	ActionToggle
	ActionKill
	ActionUnkill
	ActionSwitchMode
)
