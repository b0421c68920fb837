package commander

import (
	"time"

	"github.com/tiiuae/flightcore/internal/armstate"
	"github.com/tiiuae/flightcore/internal/types"
)

// Vehicle command ids, as named in spec §4.9/§6's "Vehicle command set
// (selected)". Values mirror the MAVLink MAV_CMD enumeration so a
// transport layer decoding raw MAVLink frames can pass Command through
// unmodified.
const (
	CmdDoSetMode               uint16 = 176
	CmdComponentArmDisarm      uint16 = 400
	CmdDoReposition            uint16 = 192
	CmdDoFlightTermination     uint16 = 185
	CmdDoSetHome               uint16 = 179
	CmdNavReturnToLaunch       uint16 = 20
	CmdNavTakeoff              uint16 = 22
	CmdNavVtolTakeoff          uint16 = 84
	CmdNavLand                 uint16 = 21
	CmdNavPrecland             uint16 = 94
	CmdMissionStart            uint16 = 300
	CmdControlHighLatency      uint16 = 2600
	CmdDoOrbit                 uint16 = 34
	CmdActuatorTest            uint16 = 310
	CmdPreflightRebootShutdown uint16 = 246
	CmdPreflightCalibration    uint16 = 241
	CmdFixedMagCalYaw          uint16 = 42006
	CmdPreflightStorage        uint16 = 245
	CmdRunPrearmChecks         uint16 = 401
	CmdStartRxPair             uint16 = 500
	CmdSetGPSGlobalOrigin      uint16 = 48

	// CmdDoVtolTransition is PX4's VTOL fixed-wing/multicopter
	// transition command (MAV_CMD_DO_VTOL_TRANSITION), distinct from
	// CmdDoOrbit. param1 carries the target MAV_VTOL_STATE.
	CmdDoVtolTransition uint16 = 3000

	// vtolTransitionToMC/vtolTransitionToFW mirror MAV_VTOL_STATE's
	// MC (3) and FW (4) values, the only two a transition command
	// requests; vtolTransitionToggle (0) requests whichever state the
	// vehicle isn't currently in.
	vtolTransitionToggle uint16 = 0
	vtolTransitionToMC   uint16 = 3
	vtolTransitionToFW   uint16 = 4

	// CmdParachuteRelease is re-emitted toward the parachute system
	// component on a kill-switch edge. The target component id is a
	// constructor parameter of the Loop (parachuteComponentID), not a
	// re-subscription to the vehicle's own system id, per spec §8's
	// open question about target_component = 161.
	CmdParachuteRelease uint16 = 208

	// armDisarmForceMagic is MAVLink's documented "force" sentinel for
	// COMPONENT_ARM_DISARM.param2 and DO_FLIGHTTERMINATION-adjacent
	// force paths (spec §8 REDESIGN FLAGS: "named constants... pointing
	// at the MAVLink spec").
	armDisarmForceMagic float32 = 21196

	// inAirRestoreMagic is the sentinel carried in param3 that, paired
	// with a command whose source system equals this vehicle's own
	// system id, requests the INIT -> IN_AIR_RESTORE -> ARMED path.
	inAirRestoreMagic float32 = 1234
)

// handleCommand filters cmd by target addressing, routes it to the
// matching handler, and returns exactly one ACK (spec §4.9).
func (l *Loop) handleCommand(cmd types.VehicleCommand, now time.Time) *types.VehicleCommandAck {
	if cmd.TargetSystem != 0 && cmd.TargetSystem != l.sysID {
		return nil // not addressed to this vehicle; no ACK per spec's "broadcast or targeted" filter
	}

	result := l.dispatchCommand(cmd, now)
	return &types.VehicleCommandAck{
		Command:         cmd.Command,
		Result:          result,
		TargetSystem:    cmd.SourceSystem,
		TargetComponent: cmd.SourceComponent,
	}
}

func (l *Loop) dispatchCommand(cmd types.VehicleCommand, now time.Time) types.CommandResult {
	switch cmd.Command {
	case CmdDoSetMode:
		return l.cmdDoSetMode(cmd, now)
	case CmdComponentArmDisarm:
		return l.cmdComponentArmDisarm(cmd, now)
	case CmdDoReposition:
		return l.cmdDoReposition(cmd, now)
	case CmdDoFlightTermination:
		return l.cmdDoFlightTermination(cmd)
	case CmdDoSetHome:
		return l.cmdDoSetHome(cmd, now)
	case CmdNavReturnToLaunch:
		return l.cmdSwitchMainState(types.MainStateAutoRTL, now)
	case CmdNavTakeoff:
		return l.cmdSwitchMainState(types.MainStateAutoTakeoff, now)
	case CmdNavVtolTakeoff:
		return l.cmdSwitchMainState(types.MainStateAutoVtolTakeoff, now)
	case CmdNavLand:
		return l.cmdSwitchMainState(types.MainStateAutoLand, now)
	case CmdNavPrecland:
		return l.cmdSwitchMainState(types.MainStateAutoPrecland, now)
	case CmdMissionStart:
		return l.cmdMissionStart(cmd, now)
	case CmdControlHighLatency:
		l.highLatencyMode = cmd.Param1 > 0.5
		return types.CommandAccepted
	case CmdDoOrbit:
		return l.cmdSwitchMainState(types.MainStateOrbit, now)
	case CmdDoVtolTransition:
		return l.cmdDoVtolTransition(cmd)
	case CmdActuatorTest:
		return types.CommandUnsupported
	case CmdPreflightRebootShutdown:
		return l.cmdPreflightRebootShutdown(cmd)
	case CmdPreflightCalibration:
		return l.cmdPreflightCalibration(cmd)
	case CmdFixedMagCalYaw:
		if l.calibrationBusy {
			return types.CommandTemporarilyRejected
		}
		return types.CommandAccepted
	case CmdPreflightStorage:
		if l.armM.State() == types.ArmingStateArmed {
			return types.CommandDenied
		}
		return types.CommandAccepted
	case CmdRunPrearmChecks:
		return types.CommandAccepted
	case CmdStartRxPair:
		return types.CommandAccepted
	case CmdSetGPSGlobalOrigin:
		if l.homeMgr.SetManual(cmd.Param5, cmd.Param6, float64(cmd.Param7), 0, now) {
			return types.CommandAccepted
		}
		return types.CommandFailed
	default:
		return types.CommandUnsupported
	}
}

// cmdDoSetMode handles DO_SET_MODE (spec §6): routes to the arm
// machine for INIT->IN_AIR_RESTORE request sentinel, otherwise resolves
// the requested main state from the command's custom-mode fields and
// attempts the transition.
func (l *Loop) cmdDoSetMode(cmd types.VehicleCommand, now time.Time) types.CommandResult {
	if cmd.Param3 == inAirRestoreMagic && cmd.SourceSystem == l.sysID {
		if l.armM.TryOnboardIOArm(armstate.Gates{OnboardIOArmWhileAirborne: true}) == types.TransitionChanged {
			return types.CommandAccepted
		}
	}

	target := decodeCustomMainState(cmd.Param2, cmd.Param3)

	if l.mainM.ForceInstallInitial(target, l.mainConditions(cmd.FromExternal, now)) {
		l.everChangedMode = true
		return types.CommandAccepted
	}

	result, denial, _ := l.mainM.Try(target, l.mainConditions(cmd.FromExternal, now))
	l.everChangedMode = true
	switch result {
	case types.TransitionChanged, types.TransitionNotChanged:
		return types.CommandAccepted
	default:
		_ = denial
		return types.CommandDenied
	}
}

func (l *Loop) cmdSwitchMainState(target types.MainState, now time.Time) types.CommandResult {
	result, _, _ := l.mainM.Try(target, l.mainConditions(false, now))
	l.everChangedMode = true
	if result == types.TransitionDenied {
		return types.CommandDenied
	}
	return types.CommandAccepted
}

// cmdComponentArmDisarm handles COMPONENT_ARM_DISARM, including the
// 21196 force-magic sentinel in param2 (spec §4.9, §6, §8 REDESIGN
// FLAGS).
func (l *Loop) cmdComponentArmDisarm(cmd types.VehicleCommand, now time.Time) types.CommandResult {
	forced := cmd.Param2 == armDisarmForceMagic
	arm := cmd.Param1 > 0.5

	if arm {
		gates := armstate.Gates{
			ChecksPass:          l.checksPass(),
			PreArmChecksPass:    l.checksPass(),
			Forced:              forced,
			Landed:              l.vehicle.Landed,
			SourceIsRC:          false,
			GeofenceActionIsRTL: parseGeofenceAction(l.params.Current().GFAction) == types.GeofenceActionRTL,
			HomeValid:           l.homeMgr.Current().Valid,
		}
		result, denial := l.armM.TryArm(gates, now)
		if result == types.TransitionDenied {
			_ = denial
			return types.CommandDenied
		}
		l.homeMgr.OnFirstArm(l.vehicle.Lat, l.vehicle.Lon, l.vehicle.Alt, 0, now, l.bootTime)
		return types.CommandAccepted
	}

	gates := armstate.Gates{Landed: l.vehicle.Landed, Forced: forced}
	result, _ := l.armM.TryDisarm(gates)
	if result == types.TransitionDenied {
		return types.CommandDenied
	}
	l.autoDisarm.NoteDisarmed()
	return types.CommandAccepted
}

// cmdDoReposition handles DO_REPOSITION: param2 bit 0 additionally
// requests a switch to AUTO_LOITER once the reposition is accepted
// (spec §6).
func (l *Loop) cmdDoReposition(cmd types.VehicleCommand, now time.Time) types.CommandResult {
	switchToLoiter := int(cmd.Param2)&0x1 != 0
	if switchToLoiter {
		return l.cmdSwitchMainState(types.MainStateAutoLoiter, now)
	}
	return types.CommandAccepted
}

// cmdDoVtolTransition handles MAV_CMD_DO_VTOL_TRANSITION: param1
// carries the target MAV_VTOL_STATE (3=MC, 4=FW; 0 toggles). This is
// PX4's fixed-wing/multicopter transition, distinct from CmdDoOrbit —
// the Commander Loop validates the request and re-publishes it toward
// the VTOL attitude controller component, the same forwarding shape
// tick.go uses for parachute release; the transition sequencing itself
// runs outside this loop.
func (l *Loop) cmdDoVtolTransition(cmd types.VehicleCommand) types.CommandResult {
	if l.vehicle.VehicleType != types.VehicleTypeVTOL {
		return types.CommandUnsupported
	}

	target := uint16(cmd.Param1)
	if target == vtolTransitionToggle {
		if l.vehicle.VTOLIsFixedWing {
			target = vtolTransitionToMC
		} else {
			target = vtolTransitionToFW
		}
	}
	if target != vtolTransitionToMC && target != vtolTransitionToFW {
		return types.CommandDenied
	}
	if (target == vtolTransitionToFW) == l.vehicle.VTOLIsFixedWing {
		return types.CommandTemporarilyRejected
	}
	if l.vehicle.VTOLInTransition {
		return types.CommandTemporarilyRejected
	}

	l.bus.Topic("vehicle_command").Publish(types.VehicleCommand{
		Command:         CmdDoVtolTransition,
		Param1:          float32(target),
		TargetSystem:    l.sysID,
		TargetComponent: cmd.TargetComponent,
	})
	return types.CommandAccepted
}

// cmdDoFlightTermination handles DO_FLIGHTTERMINATION: param1 >1.5
// requests lockdown, >0.5 requests termination, otherwise clears both
// (spec §6).
func (l *Loop) cmdDoFlightTermination(cmd types.VehicleCommand) types.CommandResult {
	switch {
	case cmd.Param1 > 1.5:
		l.lockdownCommanded = true
		return types.CommandAccepted
	case cmd.Param1 > 0.5:
		l.forceFailsafeCommanded = true
		return types.CommandAccepted
	default:
		l.lockdownCommanded = false
		l.forceFailsafeCommanded = false
		l.armM.ClearForceFailsafe()
		return types.CommandAccepted
	}
}

// cmdDoSetHome handles DO_SET_HOME: param1 requests "use current
// position", otherwise param5/param6/param7 carry explicit lat/lon/alt
// (spec §6).
func (l *Loop) cmdDoSetHome(cmd types.VehicleCommand, now time.Time) types.CommandResult {
	var ok bool
	if cmd.Param1 > 0.5 {
		ok = l.homeMgr.SetFromPosition(l.vehicle.Lat, l.vehicle.Lon, l.vehicle.Alt, 0, now)
	} else {
		ok = l.homeMgr.SetManual(cmd.Param5, cmd.Param6, float64(cmd.Param7), 0, now)
	}
	if !ok {
		return types.CommandFailed
	}
	return types.CommandAccepted
}

// cmdMissionStart handles MISSION_START(param1=starting index). A
// negative index is DENIED. The index is not checked against the
// mission's item count (MissionSource exposes none), so an index at or
// past seq_total is accepted like any other.
func (l *Loop) cmdMissionStart(cmd types.VehicleCommand, now time.Time) types.CommandResult {
	if l.mission == nil {
		return types.CommandFailed
	}
	if int(cmd.Param1) < 0 {
		return types.CommandDenied
	}
	return l.cmdSwitchMainState(types.MainStateAutoMission, now)
}

// cmdPreflightRebootShutdown requires the arm machine's SHUTDOWN gate
// (armM.TryShutdown) to pass (spec §4.9).
func (l *Loop) cmdPreflightRebootShutdown(cmd types.VehicleCommand) types.CommandResult {
	result, _ := l.armM.TryShutdown(true)
	if result == types.TransitionDenied {
		return types.CommandDenied
	}
	l.shutdownRequested = true
	return types.CommandAccepted
}

// cmdPreflightCalibration requires not-armed and no busy worker (spec
// §4.9).
func (l *Loop) cmdPreflightCalibration(cmd types.VehicleCommand) types.CommandResult {
	if l.armM.State() == types.ArmingStateArmed {
		return types.CommandDenied
	}
	if l.calibrationBusy {
		return types.CommandTemporarilyRejected
	}
	l.calibrationBusy = true
	return types.CommandAccepted
}

// CalibrationDone is called by the composition root once the worker
// task backing a calibration command completes (spec §9's
// hasResult()-polled worker task).
func (l *Loop) CalibrationDone() { l.calibrationBusy = false }

// decodeCustomMainState maps DO_SET_MODE's custom main/sub mode fields
// onto a MainState. Only the custom-mode encoding is modeled; the
// base-mode bitmask path is treated as MANUAL.
func decodeCustomMainState(customMain, customSub float32) types.MainState {
	switch int(customMain) {
	case 1:
		return types.MainStateManual
	case 2:
		return types.MainStateAltctl
	case 3:
		return types.MainStatePosctl
	case 4:
		switch int(customSub) {
		case 2:
			return types.MainStateAutoTakeoff
		case 3:
			return types.MainStateAutoLoiter
		case 4:
			return types.MainStateAutoMission
		case 5:
			return types.MainStateAutoRTL
		case 6:
			return types.MainStateAutoLand
		case 8:
			return types.MainStateAutoFollowTarget
		case 9:
			return types.MainStateAutoPrecland
		default:
			return types.MainStateAutoLoiter
		}
	case 5:
		return types.MainStateAcro
	case 6:
		return types.MainStateOffboard
	case 7:
		return types.MainStateStab
	case 8:
		return types.MainStateOrbit
	default:
		return types.MainStateManual
	}
}
