package types

import "time"

// VehicleStatus mirrors the PX4 vehicle_status topic: the value object
// carrying arming/nav state, frame type, and the link/data flags the
// failsafe resolver consumes (§3 "Vehicle Status").
type VehicleStatus struct {
	SystemID    uint8
	ComponentID uint8
	VehicleType VehicleType

	ArmingState     ArmingState
	NavState        NavigationState
	MainState       MainState

	FailsafeActive         bool
	RCSignalLost           bool
	DataLinkLost           bool
	HighLatencyDataLinkLost bool
	USBConnected           bool
	InTransitionMode       bool
	InTransitionToFW       bool

	BootTimestamp     time.Time
	ArmingTimestamp   time.Time
	TakeoffTimestamp  time.Time
	LastNavStateChange time.Time
}

// ActuatorArmed is the small bit-vector gating motor output (§3
// "Actuator Armed"). Equality is structural — callers compare two
// snapshots with ==.
type ActuatorArmed struct {
	Armed               bool
	Prearmed            bool
	ReadyToArm          bool
	Lockdown            bool
	ManualLockdown       bool
	ForceFailsafe       bool
	InESCCalibrationMode bool
}

// StatusFlags are the preflight and runtime pass/fail flags (§3
// "Status Flags").
type StatusFlags struct {
	GPSValid                   bool
	GlobalPositionValid        bool
	LocalPositionValid         bool
	LocalVelocityValid         bool
	HomePositionValid          bool
	BatteryWarning             BatteryWarning
	BatteryLowRemainingTime    bool
	PreFlightChecksPass        bool
	CalibrationEnabled         bool
	RCCalibrationInProgress    bool
	OffboardControlSignalLost  bool
	VTOLTransitionFailure      bool
}

// CommanderState carries the main_state plus its monotonic change
// counter (§3 "Commander State").
type CommanderState struct {
	MainState        MainState
	MainStateChanges uint32
}

// HomePosition is the reference used by RTL, altitude references, and
// some failsafe actions (§3 "Home Position", §4.5).
type HomePosition struct {
	Lat       float64
	Lon       float64
	Alt       float64
	Yaw       float32
	Timestamp time.Time
	Valid     bool
}

// IsFinite reports whether the position carries real geodetic values —
// the validity precondition named in §4.5.
func (h HomePosition) IsFinite() bool {
	return !isNaNOrInf(h.Lat) && !isNaNOrInf(h.Lon) && !isNaNOrInf(h.Alt)
}

// PositionSetpoint is one leg of a PositionSetpointTriplet (§3).
type PositionSetpoint struct {
	Lat              float64
	Lon              float64
	Alt              float64
	Type             SetpointType
	Yaw              float32
	YawValid         bool
	LoiterRadius     float32
	LoiterDirection  LoiterDirection
	CruisingSpeed    float32
	CruisingThrottle float32
	AcceptanceRadius float32
	Valid            bool
}

// PositionSetpointTriplet is the ordered trio the Navigator mutates
// and the external position controller reads (§3).
type PositionSetpointTriplet struct {
	Previous PositionSetpoint
	Current  PositionSetpoint
	Next     PositionSetpoint
}

// VehicleCommand is the discriminated record described in §3, and the
// unit the Command Dispatcher (§4.9) routes.
type VehicleCommand struct {
	Command        uint16
	Param1         float32
	Param2         float32
	Param3         float32
	Param4         float32
	Param5         float64 // lat
	Param6         float64 // lon
	Param7         float32
	SourceSystem   uint8
	SourceComponent uint8
	TargetSystem   uint8
	TargetComponent uint8
	FromExternal   bool
}

// VehicleCommandAck is published exactly once per handled command
// (§4.9, §7, §8 invariant 9).
type VehicleCommandAck struct {
	Command     uint16
	Result      CommandResult
	TargetSystem uint8
	TargetComponent uint8
}

// ActionRequest is the compact user-intent event described in §3.
type ActionRequest struct {
	Source ActionSource
	Action Action
	Mode   MainState
	HasMode bool
}

// MissionResult mirrors the PX4 mission_result topic (§3).
type MissionResult struct {
	Valid              bool
	Failure            bool
	FlightTermination  bool
	Finished           bool
	Warning            bool
	InstanceCount      int
	SeqTotal           int
	SeqCurrent         int
	LandStartAvailable bool
	LandStartIndex     int
}

// Point is a local-frame or lat/lon/alt coordinate used by the
// geofence predictor and mission path helpers.
type Point struct {
	X float64
	Y float64
	Z float64
}

// GlobalPosition is lat/lon/alt in WGS84, as published by the
// estimator (external collaborator per §1).
type GlobalPosition struct {
	Lat float64
	Lon float64
	Alt float64
}

// LocalPosition is the local NED frame estimate (external collaborator
// per §1), carrying the validity flags the monitors and home manager
// gate on.
type LocalPosition struct {
	X, Y, Z       float64
	VX, VY, VZ    float64
	XYValid       bool
	ZValid        bool
	VXYValid      bool
	VZValid       bool
	HeadingValid  bool
	Heading       float32
}

func isNaNOrInf(f float64) bool {
	return f != f || f > 1e300 || f < -1e300
}
