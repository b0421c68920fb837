package commander

import (
	"time"

	"github.com/google/uuid"

	"github.com/tiiuae/flightcore/internal/armstate"
	"github.com/tiiuae/flightcore/internal/failsafe"
	"github.com/tiiuae/flightcore/internal/failuredetector"
	"github.com/tiiuae/flightcore/internal/monitors"
	"github.com/tiiuae/flightcore/internal/navigator/modes"
	"github.com/tiiuae/flightcore/internal/tune"
	"github.com/tiiuae/flightcore/internal/types"
)

// Tick runs exactly one Commander Loop cycle (spec §4.7) and reports
// what, if anything, it published. now is the monotonic tick
// timestamp; the caller (cmd/commander's scheduler) is responsible for
// calling Tick at the configured rate.
func (l *Loop) Tick(now time.Time) Outputs {
	priorArmed := l.lastArmed

	l.params.PollAndReload(l.armM.State() == types.ArmingStateArmed)
	p := l.params.Current()

	linkLost, _ := l.linkMon.Update(monitors.LinkRoleGCS, now)
	rcLost, _ := l.linkMon.Update(monitors.LinkRoleRC, now)
	batteryWorsened := l.batMon.Update(l.pendingBatteryLevel, l.pendingBatteryLow, l.armM.State() == types.ArmingStateArmed)
	windWarn, windExceeded := l.windMon.Evaluate(l.pendingWindSpeed, now)
	_ = windWarn

	detFlags := l.failDet.Evaluate(failuredetector.Inputs{
		TiltAngleDeg:     l.vehicle.TiltAngleDeg,
		AltitudeLossRate: 0,
		ExternalFailure:  false,
		ESCArmed:         l.armM.State() == types.ArmingStateArmed,
		TimeSinceArm:     now.Sub(l.armedTime),
	}, now)

	home := l.homeMgr.Current()
	geoAction := parseGeofenceAction(p.GFAction)
	geoViolation, geoLoiterLat, geoLoiterLon, geoDue := l.fenceMon.Evaluate(
		l.vehicle.Lat, l.vehicle.Lon, l.vehicle.Alt, l.vehicle.HeadingRad,
		l.vehicle.GroundSpeedMS, l.vehicle.ClimbRateMS,
		home.Lat, home.Lon, now,
	)

	var ack *types.VehicleCommandAck
	if len(l.cmdQueue) > 0 {
		cmd := l.cmdQueue[0]
		l.cmdQueue = l.cmdQueue[1:]
		ack = l.handleCommand(cmd, now)
	}

	if len(l.actionQueue) > 0 {
		a := l.actionQueue[0]
		l.actionQueue = l.actionQueue[1:]
		l.handleAction(a, now)
	}

	l.drainPowerButtonQueue()
	if l.shutdownRequested && l.armM.State() != types.ArmingStateShutdown {
		l.armM.TryShutdown(true)
	}

	landed := l.vehicle.Landed
	if l.autoDisarm.EvaluateLanded(landed, now) {
		l.armM.TryDisarm(armstate.Gates{Landed: true, Forced: true})
	}

	parachuteJustCommanded := false
	if l.killSwitchEngaged && !l.parachuteCommanded {
		l.parachuteCommanded = true
		parachuteJustCommanded = true
		l.bus.Topic("vehicle_command").Publish(types.VehicleCommand{
			Command:         CmdParachuteRelease,
			TargetSystem:    l.sysID,
			TargetComponent: l.parachuteComponentID,
		})
	}
	if !l.killSwitchEngaged {
		l.parachuteCommanded = false
	}
	if l.autoDisarm.EvaluateKillSwitch(l.killSwitchEngaged, now) {
		l.armM.TryDisarm(armstate.Gates{Forced: true})
	}
	if l.wasLanded && !landed {
		l.autoDisarm.NoteTakeoff()
		l.homeMgr.OnTakeoffEdge(l.vehicle.Lat, l.vehicle.Lon, l.vehicle.Alt, 0, now)
		l.takeoffTime = now
	}
	l.wasLanded = landed

	armGates := armstate.Gates{
		ChecksPass:       l.checksPass(),
		PreArmChecksPass: l.checksPass(),
		Landed:           landed,
	}
	if l.armM.State() == types.ArmingStateInit {
		l.armM.TryInit(armGates)
	}

	armedNow := l.armM.State() == types.ArmingStateArmed
	if armedNow && !priorArmed.Armed {
		l.armedTime = now
	}
	if !armedNow {
		l.armedTime = time.Time{}
		l.takeoffTime = time.Time{}
	}

	offboardTimeout := time.Duration(p.ComOffbLossT * float64(time.Second))
	offboardLinkLost := l.haveOffboardSignal && now.Sub(l.lastOffboardSignal) > offboardTimeout

	// EarlyTakeoffCriticalFailure aggregates the failure-detector faults
	// serious enough to abort a climb-out (§4.3 rule 3): roll/pitch,
	// altitude loss, external failure, ESC failure and motor failure.
	earlyTakeoffCriticalFailure := detFlags.ESCFailure || detFlags.MotorFailure || detFlags.RollPitchExceeded ||
		detFlags.AltitudeLossExceeded || detFlags.ExternalFailure

	maxFlightTimeReached := p.ComFlightTimeMax > 0 && armedNow && !l.armedTime.IsZero() &&
		now.Sub(l.armedTime) >= time.Duration(p.ComFlightTimeMax*float64(time.Second))

	fsDecision := failsafe.Resolve(failsafe.Inputs{
		MainState:                   l.mainStateOrZero(),
		Armed:                       armedNow,
		Landed:                      landed,
		MaybeLanded:                 l.vehicle.MaybeLanded,
		GroundContact:               l.vehicle.GroundContact,
		GCSDataLinkLost:             linkLost,
		RCSignalLost:                rcLost,
		OffboardLinkLost:            offboardLinkLost,
		BatteryWarning:              l.batMon.Level(),
		BatteryWarningWorsened:      batteryWorsened,
		GeofenceAction:              geoAction,
		GeofenceViolation:           geoViolation.Any(),
		GeofenceTerminate:           geoViolation.Any() && geoAction == types.GeofenceActionTerminate,
		ForceFailsafe:               l.forceFailsafeCommanded || l.armM.ForceFailsafeLatched(),
		MissionRequestedTermination: l.lastMissionRes.FlightTermination,
		EarlyTakeoffCriticalFailure: earlyTakeoffCriticalFailure,
		TimeSinceTakeoff:            now.Sub(l.takeoffTime),
		MaxFlightTimeReached:        maxFlightTimeReached,
		HighWindExceeded:            windExceeded,
		VTOLQuadchute:               l.vehicle.VTOLQuadchuteRequested,
		CurrentNavState:             l.lastStatus.NavState,
	}, failsafe.Config{
		CircuitBreakerFlightTermination: p.CBFlightTerm,
		EarlyTakeoffLockdownWindow:      time.Duration(p.ComLkdownTko * float64(time.Second)),
		LinkLossAction:                  parseFailsafeAction(p.NavDLLActT),
		RCLossAction:                    parseFailsafeAction(p.NavRCLAct),
		RCLossExceptWhileAuto:           p.ComRCInAutoAct,
		BatteryWarningActions: map[types.BatteryWarning]types.FailsafeAction{
			types.BatteryWarningLow:      parseFailsafeAction(p.ComLowBatAct),
			types.BatteryWarningCritical: parseFailsafeAction(p.ComCriticalBatAct),
		},
		OffboardLossAction:            parseFailsafeAction(p.ComOBLAct),
		OffboardLossRCAvailableAction: parseFailsafeAction(p.ComOBLRCAct),
		QuadchuteAction:               parseFailsafeAction(p.ComQcAct),
	})

	if l.forceFailsafeCommanded {
		l.armM.SetForceFailsafe()
	}

	// ruleEarlyTakeoffLockdown firing means Commander.cpp's early-takeoff
	// critical failure path: motors go into lockdown, not just a nav
	// state change (§4.3 rule 3, "lockdown (motors off)"). Latched the
	// same way lockdownCommanded already latches for a commanded
	// DO_FLIGHTTERMINATION lockdown; cmdDoFlightTermination's param1<=0.5
	// case is the only way to clear it.
	if fsDecision.Cause == "early_takeoff_lockdown" {
		l.lockdownCommanded = true
	}

	ctx := &modes.Context{
		Now:               now,
		VehicleLat:        l.vehicle.Lat,
		VehicleLon:        l.vehicle.Lon,
		VehicleAlt:        l.vehicle.Alt,
		VehicleHeadingRad: l.vehicle.HeadingRad,
		GroundSpeedMS:     l.vehicle.GroundSpeedMS,
		Home:              home,
		VehicleType:       l.vehicle.VehicleType,
		Mission:           l.mission,
		Fence:             &l.fence,
		RTLType:           l.rtlType,
		ReturnAltitude:    l.returnAltitude,
		LoiterRadius:      l.loiterRadius,
		AcceptanceRadius:  l.acceptanceRadius,
		GeofenceAction:    geoAction,
		GeofenceViolation: geoViolation,
		GeofenceLoiterLat: geoLoiterLat,
		GeofenceLoiterLon: geoLoiterLon,
		GeofenceCheckDue:  geoDue,
	}
	triplet, missionRes := l.nav.Tick(armedNow, fsDecision.NavState, ctx)
	l.lastMissionRes = missionRes

	armed := types.ActuatorArmed{
		Armed:                l.armM.State() == types.ArmingStateArmed,
		Prearmed:             l.checksPass(),
		ReadyToArm:           l.armM.State() == types.ArmingStateStandby && l.checksPass(),
		Lockdown:             l.lockdownCommanded,
		ManualLockdown:       l.killSwitchEngaged,
		ForceFailsafe:        l.armM.ForceFailsafeLatched(),
		InESCCalibrationMode: l.calibrationBusy,
	}

	if armed.Armed && !priorArmed.Armed {
		l.flightUUID = uuid.NewString()
	}
	if !armed.Armed {
		l.flightUUID = ""
	}

	status := types.VehicleStatus{
		SystemID:       l.sysID,
		ComponentID:    l.compID,
		VehicleType:    l.vehicle.VehicleType,
		ArmingState:    l.armM.State(),
		NavState:       fsDecision.NavState,
		MainState:      l.mainStateOrZero(),
		FailsafeActive: fsDecision.NavState == types.NavStateTermination,
		RCSignalLost:   rcLost,
		DataLinkLost:   linkLost,
		BootTimestamp:  l.bootTime,
	}

	flags := types.StatusFlags{
		GPSValid:            l.vehicle.GlobalPositionValid,
		GlobalPositionValid: l.vehicle.GlobalPositionValid,
		LocalPositionValid:  l.vehicle.LocalPositionValid,
		HomePositionValid:   l.homeMgr.Current().Valid,
		BatteryWarning:      l.batMon.Level(),
		PreFlightChecksPass: l.checksPass(),
	}

	_, changes := l.mainM.State()
	cmdrState := types.CommanderState{MainState: l.mainStateOrZero(), MainStateChanges: changes}

	changed := armed != priorArmed || armed != l.lastArmed || status.NavState != l.lastStatus.NavState ||
		status.ArmingState != l.lastStatus.ArmingState || flags != l.lastFlags || cmdrState != l.lastCmdrSt ||
		detFlags != l.lastDetFlags

	elapsed := !l.havePublished || now.Sub(l.lastPublish) >= publishPeriod

	shuttingDown := l.armM.State() == types.ArmingStateShutdown
	if shuttingDown && !l.shutdownFinalized {
		l.homeMgr.Invalidate()
		l.shutdownFinalized = true
	}

	out := Outputs{
		Armed: armed, Status: status, Flags: flags, CmdrState: cmdrState,
		DetFlags: detFlags, NavState: fsDecision.NavState, Triplet: triplet,
		MissionRes: missionRes, Ack: ack, ShouldExit: shuttingDown,
	}

	if changed || elapsed {
		l.bus.Topic("actuator_armed").Publish(armed)
		l.bus.Topic("vehicle_control_mode").Publish(fsDecision.NavState)
		l.bus.Topic("vehicle_status").Publish(status)
		l.bus.Topic("vehicle_status_flags").Publish(flags)
		l.bus.Topic("commander_state").Publish(cmdrState)
		l.bus.Topic("failure_detector_status").Publish(detFlags)

		l.lastArmed = armed
		l.lastStatus = status
		l.lastFlags = flags
		l.lastCmdrSt = cmdrState
		l.lastDetFlags = detFlags
		l.lastPublish = now
		l.havePublished = true
		out.Published = true
	}

	out.Tone, out.LED = l.cuesFor(ack, out)
	if parachuteJustCommanded {
		out.Tone = tune.ToneParachuteRelease
	}
	return out
}

func (l *Loop) mainStateOrZero() types.MainState {
	s, _ := l.mainM.State()
	return s
}

func (l *Loop) checksPass() bool {
	return l.vehicle.GlobalPositionValid || l.vehicle.LocalPositionValid
}

func parseGeofenceAction(s string) types.GeofenceAction {
	switch s {
	case "warn":
		return types.GeofenceActionWarn
	case "loiter":
		return types.GeofenceActionLoiter
	case "rtl":
		return types.GeofenceActionRTL
	case "land":
		return types.GeofenceActionLand
	case "terminate":
		return types.GeofenceActionTerminate
	default:
		return types.GeofenceActionNone
	}
}

func parseFailsafeAction(s string) types.FailsafeAction {
	switch s {
	case "hold":
		return types.FailsafeActionHold
	case "rtl":
		return types.FailsafeActionRTL
	case "land":
		return types.FailsafeActionLand
	case "terminate":
		return types.FailsafeActionTerminate
	default:
		return types.FailsafeActionWarn
	}
}

func (l *Loop) drainPowerButtonQueue() {
	for _, e := range l.powerButtonQueue {
		// A long press while armed is ignored.
		if e.LongPress && l.armM.State() != types.ArmingStateArmed {
			l.shutdownRequested = true
		}
	}
	l.powerButtonQueue = l.powerButtonQueue[:0]
}

func (l *Loop) cuesFor(ack *types.VehicleCommandAck, out Outputs) (tune.ToneID, tune.LEDColor) {
	led := tune.LEDStandby
	switch {
	case out.ShouldExit:
		led = tune.LEDOff
	case out.Armed.ForceFailsafe:
		led = tune.LEDFailsafe
	case out.Armed.Armed:
		led = tune.LEDArmed
	case out.Flags.BatteryWarning == types.BatteryWarningCritical || out.Flags.BatteryWarning == types.BatteryWarningEmergency:
		led = tune.LEDBatteryCritical
	case out.Flags.BatteryWarning == types.BatteryWarningLow:
		led = tune.LEDBatteryWarn
	case out.Flags.HomePositionValid:
		led = tune.LEDHomeKnown
	}

	tone := tune.ToneNone
	if ack != nil {
		denied := ack.Result == types.CommandDenied
		failed := ack.Result == types.CommandFailed
		rejected := ack.Result == types.CommandTemporarilyRejected
		unsupported := ack.Result == types.CommandUnsupported
		if tune.NegativeCueFor(denied, failed, rejected, unsupported, out.Flags.RCCalibrationInProgress) {
			tone = tune.ToneNegative
		}
	}
	return tone, led
}
