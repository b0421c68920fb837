package commander

import (
	"testing"
	"time"

	"github.com/tiiuae/flightcore/internal/bus"
	"github.com/tiiuae/flightcore/internal/config"
	"github.com/tiiuae/flightcore/internal/geofence"
	"github.com/tiiuae/flightcore/internal/monitors"
	"github.com/tiiuae/flightcore/internal/tune"
	"github.com/tiiuae/flightcore/internal/types"
)

func newTestLoop(cfg config.Params) *Loop {
	return New(bus.New(), cfg, time.Unix(0, 0), 1, 1, 161)
}

func groundedRotary() VehicleSnapshot {
	return VehicleSnapshot{
		GlobalPositionValid: true,
		LocalPositionValid:  true,
		AltitudeValid:       true,
		Landed:              true,
		VehicleType:         types.VehicleTypeRotaryWing,
	}
}

func armCmd(force bool) types.VehicleCommand {
	p2 := float32(0)
	if force {
		p2 = armDisarmForceMagic
	}
	return types.VehicleCommand{Command: CmdComponentArmDisarm, Param1: 1, Param2: p2, TargetSystem: 1}
}

func disarmCmd() types.VehicleCommand {
	return types.VehicleCommand{Command: CmdComponentArmDisarm, Param1: 0, TargetSystem: 1}
}

// TestGroundArmTakeoffLandAutoDisarm covers the ground-to-flight-to-
// ground lifecycle: INIT settles to STANDBY, an arm command succeeds,
// a takeoff/land edge is observed, and the landed-for-N-seconds
// watchdog disarms once the vehicle has actually flown.
func TestGroundArmTakeoffLandAutoDisarm(t *testing.T) {
	l := newTestLoop(config.Default())
	now := time.Unix(0, 0).Add(time.Second)

	l.UpdateVehicle(groundedRotary())
	l.Tick(now) // INIT -> STANDBY

	l.SubmitCommand(armCmd(false))
	out := l.Tick(now.Add(time.Millisecond))
	if out.Ack == nil || out.Ack.Result != types.CommandAccepted {
		t.Fatalf("expected the arm command to be accepted, got %+v", out.Ack)
	}
	if !out.Armed.Armed {
		t.Fatalf("expected the vehicle to report armed")
	}

	airborne := groundedRotary()
	airborne.Landed = false
	l.UpdateVehicle(airborne)
	now = now.Add(time.Second)
	l.Tick(now) // takeoff edge

	l.UpdateVehicle(groundedRotary())
	now = now.Add(time.Second)
	l.Tick(now) // landed again, dwell timer starts

	now = now.Add(3 * time.Second) // past com_disarm_land=2s
	out = l.Tick(now)
	if out.Armed.Armed {
		t.Fatalf("expected auto-disarm-on-land to have disarmed the vehicle, got %+v", out.Armed)
	}
}

// TestEarlyTakeoffCriticalFailureLocksDownMotors covers failsafe rule
// 3: a critical failure detected within com_lkdown_tko of takeoff must
// not just switch NavState to DESCEND, it must also cut motors via the
// actuator_armed lockdown bit (Commander.cpp's early-takeoff path).
func TestEarlyTakeoffCriticalFailureLocksDownMotors(t *testing.T) {
	l := newTestLoop(config.Default())
	now := time.Unix(0, 0).Add(time.Second)

	l.UpdateVehicle(groundedRotary())
	l.Tick(now) // INIT -> STANDBY

	l.SubmitCommand(armCmd(false))
	l.Tick(now.Add(time.Millisecond))

	airborne := groundedRotary()
	airborne.Landed = false
	now = now.Add(time.Second)
	l.UpdateVehicle(airborne)
	l.Tick(now) // takeoff edge: takeoffTime latches to now

	failing := airborne
	failing.TiltAngleDeg = 60 // exceeds the roll/pitch threshold
	l.UpdateVehicle(failing)
	now = now.Add(time.Second) // still within the 5s com_lkdown_tko window
	out := l.Tick(now)

	if out.NavState != types.NavStateDescend {
		t.Fatalf("expected the early-takeoff failure to force DESCEND, got %v", out.NavState)
	}
	if !out.Armed.Lockdown {
		t.Fatalf("expected the early-takeoff critical failure to also set the lockdown bit, got %+v", out.Armed)
	}
}

// TestKillSwitchReleasesParachuteThenForceDisarms mirrors the kill-
// switch scenario: the parachute release is re-emitted on the rising
// edge, exactly once, and the vehicle force-disarms once the switch
// has held engaged for the fixed 5s window.
func TestKillSwitchReleasesParachuteThenForceDisarms(t *testing.T) {
	l := newTestLoop(config.Default())
	now := time.Unix(0, 0).Add(time.Second)

	airborne := groundedRotary()
	airborne.Landed = false
	l.UpdateVehicle(airborne)
	l.Tick(now)

	l.SubmitCommand(armCmd(false))
	l.Tick(now.Add(time.Millisecond))

	reader := l.Bus().Topic("vehicle_command").NewReader()

	l.SubmitAction(types.ActionRequest{Action: types.ActionKill})
	out := l.Tick(now.Add(2 * time.Millisecond))
	if !out.Armed.ManualLockdown {
		t.Fatalf("expected the kill switch to report manual lockdown")
	}

	v, changed, _ := reader.Poll()
	if !changed {
		t.Fatalf("expected the parachute release to be re-emitted on the vehicle_command topic")
	}
	cmd, ok := v.(types.VehicleCommand)
	if !ok || cmd.Command != CmdParachuteRelease {
		t.Fatalf("expected a CmdParachuteRelease, got %+v", v)
	}

	// A second tick with the switch still engaged must not re-fire the
	// release.
	l.Tick(now.Add(3 * time.Millisecond))
	if _, changed, _ := reader.Poll(); changed {
		t.Fatalf("expected the parachute release not to repeat while the kill switch stays engaged")
	}

	out = l.Tick(now.Add(6 * time.Second)) // past the fixed 5s kill-switch delay
	if out.Armed.Armed {
		t.Fatalf("expected the kill switch to have force-disarmed the vehicle after 5s")
	}
}

// TestGCSLinkLossTriggersConfiguredAction checks that losing the GCS
// heartbeat for longer than com_dl_loss_t forces the configured
// link-loss navigation state.
func TestGCSLinkLossTriggersConfiguredAction(t *testing.T) {
	l := newTestLoop(config.Default())
	now := time.Unix(0, 0).Add(time.Second)

	airborne := groundedRotary()
	airborne.Landed = false
	l.UpdateVehicle(airborne)
	l.Tick(now)

	l.SubmitCommand(armCmd(false))
	l.Tick(now.Add(time.Millisecond))

	l.Heartbeat(monitors.LinkRoleGCS, now)
	now = now.Add(11 * time.Second) // past the default com_dl_loss_t=10s with no further heartbeat
	out := l.Tick(now)
	if out.NavState != types.NavStateAutoRTL {
		t.Fatalf("expected the GCS link loss to force AUTO_RTL, got %v", out.NavState)
	}
}

// TestRCLossTriggersConfiguredAction checks failsafe rule 7: losing
// the RC heartbeat for longer than com_rc_loss_t forces the configured
// RC-loss action, independent of the GCS link (which stays healthy
// throughout this test).
func TestRCLossTriggersConfiguredAction(t *testing.T) {
	l := newTestLoop(config.Default())
	now := time.Unix(0, 0).Add(time.Second)

	airborne := groundedRotary()
	airborne.Landed = false
	l.UpdateVehicle(airborne)
	l.Tick(now)

	l.SubmitCommand(armCmd(false))
	l.Tick(now.Add(time.Millisecond))

	l.Heartbeat(monitors.LinkRoleGCS, now)
	l.Heartbeat(monitors.LinkRoleRC, now)
	now = now.Add(600 * time.Millisecond) // past the default com_rc_loss_t=0.5s, GCS still fresh
	l.Heartbeat(monitors.LinkRoleGCS, now)
	out := l.Tick(now)
	if out.NavState != types.NavStateAutoRTL {
		t.Fatalf("expected the RC loss to force AUTO_RTL, got %v", out.NavState)
	}
}

// TestForceArmBypassesFailedChecks covers the 21196 force-arm
// sentinel: an unforced arm attempt is denied once preflight checks
// fail, while a forced attempt with the same gates succeeds.
func TestForceArmBypassesFailedChecks(t *testing.T) {
	l := newTestLoop(config.Default())
	now := time.Unix(0, 0).Add(time.Second)

	v := groundedRotary()
	l.UpdateVehicle(v)
	l.Tick(now) // INIT -> STANDBY while checks still pass

	v.GlobalPositionValid = false
	v.LocalPositionValid = false
	l.UpdateVehicle(v)

	l.SubmitCommand(armCmd(false))
	out := l.Tick(now.Add(time.Millisecond))
	if out.Ack == nil || out.Ack.Result != types.CommandDenied {
		t.Fatalf("expected an unforced arm to be denied with failed checks, got %+v", out.Ack)
	}

	l.SubmitCommand(armCmd(true))
	out = l.Tick(now.Add(2 * time.Millisecond))
	if out.Ack == nil || out.Ack.Result != types.CommandAccepted {
		t.Fatalf("expected a forced arm to bypass the failed checks, got %+v", out.Ack)
	}
	if !out.Armed.Armed {
		t.Fatalf("expected the vehicle to report armed after a forced arm")
	}
}

// TestGeofenceBreachForcesConfiguredAction covers a predicted breach
// on a rotary-wing vehicle with the geofence action set to loiter: the
// resolved navigation state must reflect the configured action rather
// than an unconditional forced loiter.
func TestGeofenceBreachForcesConfiguredAction(t *testing.T) {
	cfg := config.Default()
	cfg.GFAction = "loiter"
	l := newTestLoop(cfg)
	now := time.Unix(0, 0).Add(time.Second)

	l.SetFence(geofence.Fence{MaxAltitude: 50, HasMaxAlt: true})
	l.Heartbeat(monitors.LinkRoleGCS, now)
	l.Heartbeat(monitors.LinkRoleRC, now)

	v := groundedRotary()
	v.Landed = false
	v.Alt = 100 // above the configured ceiling
	l.UpdateVehicle(v)
	l.Tick(now)

	l.SubmitCommand(armCmd(false))
	l.Tick(now.Add(time.Millisecond))

	out := l.Tick(now.Add(2 * time.Millisecond))
	if out.NavState != types.NavStateAutoLoiter {
		t.Fatalf("expected the configured loiter action on breach, got %v", out.NavState)
	}
}

// TestPreflightShutdownDeniedWhileArmed checks that a reboot/shutdown
// request while armed is refused rather than silently ignored.
func TestPreflightShutdownDeniedWhileArmed(t *testing.T) {
	l := newTestLoop(config.Default())
	now := time.Unix(0, 0).Add(time.Second)

	l.UpdateVehicle(groundedRotary())
	l.Tick(now)

	l.SubmitCommand(armCmd(false))
	l.Tick(now.Add(time.Millisecond))

	l.SubmitCommand(types.VehicleCommand{Command: CmdPreflightRebootShutdown, Param1: 2, TargetSystem: 1})
	out := l.Tick(now.Add(2 * time.Millisecond))
	if out.Ack == nil || out.Ack.Result != types.CommandDenied {
		t.Fatalf("expected a shutdown request while armed to be denied, got %+v", out.Ack)
	}
	if out.ShouldExit {
		t.Fatalf("expected ShouldExit to remain false while armed")
	}
}

// TestPreflightShutdownWhileDisarmedInvalidatesHomeAndExits exercises
// the should_exit path: shutdown succeeds once disarmed, home is
// invalidated, the LED reports off, and the arming state machine
// latches SHUTDOWN.
func TestPreflightShutdownWhileDisarmedInvalidatesHomeAndExits(t *testing.T) {
	l := newTestLoop(config.Default())
	now := time.Unix(0, 0).Add(time.Second)

	l.UpdateVehicle(groundedRotary())
	l.Tick(now)

	l.SubmitCommand(armCmd(false))
	l.Tick(now.Add(time.Millisecond))
	l.SubmitCommand(disarmCmd())
	l.Tick(now.Add(2 * time.Millisecond))

	l.SubmitCommand(types.VehicleCommand{Command: CmdPreflightRebootShutdown, Param1: 2, TargetSystem: 1})
	out := l.Tick(now.Add(3 * time.Millisecond))
	if out.Ack == nil || out.Ack.Result != types.CommandAccepted {
		t.Fatalf("expected shutdown while disarmed to be accepted, got %+v", out.Ack)
	}
	if !out.ShouldExit {
		t.Fatalf("expected ShouldExit once the arming state machine reaches SHUTDOWN")
	}
	if out.LED != tune.LEDOff {
		t.Fatalf("expected the LED to go off once shutting down, got %v", out.LED)
	}
	if l.homeMgr.Current().Valid {
		t.Fatalf("expected home to be invalidated on shutdown")
	}

	out = l.Tick(now.Add(4 * time.Millisecond))
	if out.Armed.Armed {
		t.Fatalf("expected the vehicle to remain disarmed after shutdown")
	}
}

// TestPublishedOutputsUpdateTogether checks that a tick which changes
// state publishes every affected topic in that same tick rather than
// splitting the update across ticks.
func TestPublishedOutputsUpdateTogether(t *testing.T) {
	l := newTestLoop(config.Default())
	now := time.Unix(0, 0).Add(time.Second)

	l.UpdateVehicle(groundedRotary())
	out := l.Tick(now)
	if !out.Published {
		t.Fatalf("expected the first tick to always publish")
	}

	armedReader := l.Bus().Topic("actuator_armed").NewReader()
	statusReader := l.Bus().Topic("vehicle_status").NewReader()
	armedReader.Poll()
	statusReader.Poll()

	l.SubmitCommand(armCmd(false))
	out = l.Tick(now.Add(time.Millisecond))
	if !out.Published {
		t.Fatalf("expected arming to trigger an immediate publish")
	}

	av, achanged, _ := armedReader.Poll()
	sv, schanged, _ := statusReader.Poll()
	if !achanged || !schanged {
		t.Fatalf("expected actuator_armed and vehicle_status to publish together on the arming tick")
	}
	if !av.(types.ActuatorArmed).Armed {
		t.Fatalf("expected the published actuator_armed record to show armed")
	}
	if sv.(types.VehicleStatus).ArmingState != types.ArmingStateArmed {
		t.Fatalf("expected the published vehicle_status record to show ARMED")
	}
}

// TestPeriodicPublicationEvenWithoutChanges checks the 500ms periodic
// republish fires even when nothing in the loop's state changed.
func TestPeriodicPublicationEvenWithoutChanges(t *testing.T) {
	l := newTestLoop(config.Default())
	now := time.Unix(0, 0).Add(time.Second)

	l.UpdateVehicle(groundedRotary())
	out := l.Tick(now)
	if !out.Published {
		t.Fatalf("expected the first tick to always publish")
	}

	out = l.Tick(now.Add(100 * time.Millisecond))
	if out.Published {
		t.Fatalf("expected no publish before the periodic window elapses with nothing changed")
	}

	out = l.Tick(now.Add(600 * time.Millisecond))
	if !out.Published {
		t.Fatalf("expected a periodic publish once 500ms elapsed even with nothing changed")
	}
}

// TestAutoDisarmLandedHysteresisResetsOnAnyAirborneTick verifies the
// landed-for-N-seconds debouncer restarts from zero on any single tick
// where landed is false, rather than merely pausing.
func TestAutoDisarmLandedHysteresisResetsOnAnyAirborneTick(t *testing.T) {
	l := newTestLoop(config.Default())
	now := time.Unix(0, 0).Add(time.Second)

	l.UpdateVehicle(groundedRotary())
	l.Tick(now) // INIT -> STANDBY

	l.SubmitCommand(armCmd(false))
	l.Tick(now.Add(time.Millisecond))

	airborne := groundedRotary()
	airborne.Landed = false
	l.UpdateVehicle(airborne)
	now = now.Add(2 * time.Millisecond)
	l.Tick(now) // takeoff edge: have-taken-off latches true

	l.UpdateVehicle(groundedRotary())
	now = now.Add(time.Second)
	l.Tick(now) // dwell timer starts

	l.UpdateVehicle(airborne)
	now = now.Add(time.Second)
	l.Tick(now) // one airborne tick resets the dwell timer

	l.UpdateVehicle(groundedRotary())
	now = now.Add(time.Millisecond)
	l.Tick(now) // back on the ground: the dwell timer restarts from this tick

	now = now.Add(1900 * time.Millisecond)
	out := l.Tick(now) // 1.9s of continuous landed since the restart, short of com_disarm_land=2s
	if !out.Armed.Armed {
		t.Fatalf("expected the reset dwell timer to keep the vehicle armed just short of the delay")
	}

	now = now.Add(200 * time.Millisecond)
	out = l.Tick(now) // now past 2s of continuous landed since the restart
	if out.Armed.Armed {
		t.Fatalf("expected auto-disarm-on-land to fire once the full delay elapsed uninterrupted")
	}
}

// TestOnlyOneCommandProcessedPerTick checks that queuing two commands
// in the same tick still yields exactly one ACK per tick, with the
// second command carried over to the next tick.
func TestOnlyOneCommandProcessedPerTick(t *testing.T) {
	l := newTestLoop(config.Default())
	now := time.Unix(0, 0).Add(time.Second)

	l.UpdateVehicle(groundedRotary())
	l.Tick(now)

	l.SubmitCommand(types.VehicleCommand{Command: CmdRunPrearmChecks, TargetSystem: 1})
	l.SubmitCommand(types.VehicleCommand{Command: CmdStartRxPair, TargetSystem: 1})

	out := l.Tick(now.Add(time.Millisecond))
	if out.Ack == nil || out.Ack.Command != CmdRunPrearmChecks {
		t.Fatalf("expected only the first queued command to be acked this tick, got %+v", out.Ack)
	}

	out = l.Tick(now.Add(2 * time.Millisecond))
	if out.Ack == nil || out.Ack.Command != CmdStartRxPair {
		t.Fatalf("expected the second queued command to be acked on the following tick, got %+v", out.Ack)
	}
}
