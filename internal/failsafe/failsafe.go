// Package failsafe implements the multi-source failsafe decision
// engine of spec §4.3: it maps (main state, nav conditions, fault
// set) to the resulting navigation state, in strict priority order.
// The priority ladder is expressed as an ordered slice of predicate
// functions rather than a chain of if/else, so the order itself is
// the single source of truth and is easy to unit-test rule by rule —
// the same "ordered table of small functions" shape the teacher uses
// for its mission/task state dispatch
// (missionengine/internal/missionplanner/state.go's handleMessage
// switch), generalized from message-type dispatch to priority
// dispatch.
package failsafe

import (
	"time"

	"github.com/tiiuae/flightcore/internal/types"
)

// Config holds the configured action for each failsafe trigger.
type Config struct {
	CircuitBreakerFlightTermination bool
	EarlyTakeoffLockdownWindow      time.Duration
	BatteryEmergencyShutdownDelay   time.Duration
	BatteryWarningActions          map[types.BatteryWarning]types.FailsafeAction
	BatteryActionDelay             time.Duration
	LinkLossAction                 types.FailsafeAction
	RCLossAction                   types.FailsafeAction
	RCLossExceptWhileAuto          bool
	OffboardLossAction             types.FailsafeAction
	OffboardLossRCAvailableAction  types.FailsafeAction
	GeofenceLoiterLandRTLOneShot   bool
	QuadchuteAction                types.FailsafeAction
}

// Inputs is the full per-tick snapshot the resolver reads. All
// debounced flags are expected to already have been through their
// respective monitor's hysteresis before arriving here.
type Inputs struct {
	MainState types.MainState

	Armed         bool
	Landed        bool
	MaybeLanded   bool
	GroundContact bool

	GCSDataLinkLost          bool
	OnboardControllerLinkLost bool
	HighLatencyLinkLost      bool
	OffboardLinkLost         bool
	RCSignalLost             bool

	BatteryWarning        types.BatteryWarning
	BatteryWarningWorsened bool
	BatteryEmergencyShutdownRequested bool

	GeofenceAction    types.GeofenceAction
	GeofenceViolation bool
	GeofenceTerminate bool

	ForceFailsafe          bool
	MissionRequestedTermination bool

	EarlyTakeoffCriticalFailure bool
	TimeSinceTakeoff            time.Duration

	MaxFlightTimeReached bool
	HighWindExceeded     bool
	VTOLQuadchute        bool

	CurrentNavState types.NavigationState
}

// Decision is the resolver's output: the next navigation state plus
// the cause recorded for logging (§4.3 "Each decision records its
// cause for logging").
type Decision struct {
	NavState types.NavigationState
	Cause    string
}

// Resolve walks the priority ladder top to bottom and returns the
// first rule that fires. A rule that would re-select the currently
// active nav state is a no-op per §4.3 ("Transitions that loop... are
// no-ops") — Resolve still reports it so the caller can suppress a
// republish, but NavState equals in.CurrentNavState in that case.
func Resolve(in Inputs, cfg Config) Decision {
	for _, rule := range rules {
		if dec, ok := rule(in, cfg); ok {
			return dec
		}
	}
	return Decision{NavState: navStateForMainState(in.MainState), Cause: "nominal"}
}

type rule func(Inputs, Config) (Decision, bool)

// rules is ordered highest-priority first, matching §4.3's numbered
// list exactly.
var rules = []rule{
	ruleForceTermination,           // 1
	ruleGeofenceTerminate,          // 2
	ruleEarlyTakeoffLockdown,       // 3
	ruleBatteryEmergency,           // 4
	ruleBatteryWarningWorsened,     // 5
	ruleGCSLinkLoss,                // 6
	ruleRCLoss,                     // 7
	ruleOffboardLoss,               // 8
	ruleGeofenceViolation,          // 9
	ruleMaxFlightTime,              // 10
	ruleHighWind,                   // 11
	ruleVTOLQuadchute,              // 12
}

func ruleForceTermination(in Inputs, cfg Config) (Decision, bool) {
	if in.ForceFailsafe {
		return Decision{NavState: types.NavStateTermination, Cause: "force_failsafe"}, true
	}
	if in.MissionRequestedTermination && !cfg.CircuitBreakerFlightTermination {
		return Decision{NavState: types.NavStateTermination, Cause: "mission_termination"}, true
	}
	return Decision{}, false
}

func ruleGeofenceTerminate(in Inputs, _ Config) (Decision, bool) {
	if in.GeofenceTerminate {
		return Decision{NavState: types.NavStateTermination, Cause: "geofence_terminate"}, true
	}
	return Decision{}, false
}

func ruleEarlyTakeoffLockdown(in Inputs, cfg Config) (Decision, bool) {
	if in.EarlyTakeoffCriticalFailure && in.TimeSinceTakeoff <= cfg.EarlyTakeoffLockdownWindow {
		return Decision{NavState: types.NavStateDescend, Cause: "early_takeoff_lockdown"}, true
	}
	return Decision{}, false
}

func ruleBatteryEmergency(in Inputs, _ Config) (Decision, bool) {
	if in.BatteryWarning == types.BatteryWarningEmergency {
		return Decision{NavState: types.NavStateAutoLand, Cause: "battery_emergency"}, true
	}
	return Decision{}, false
}

func ruleBatteryWarningWorsened(in Inputs, cfg Config) (Decision, bool) {
	if !in.BatteryWarningWorsened {
		return Decision{}, false
	}
	action, ok := cfg.BatteryWarningActions[in.BatteryWarning]
	if !ok {
		return Decision{}, false
	}
	return Decision{NavState: navStateForAction(action), Cause: "battery_warning"}, true
}

func ruleGCSLinkLoss(in Inputs, cfg Config) (Decision, bool) {
	if !in.GCSDataLinkLost {
		return Decision{}, false
	}
	// per-state exceptions (§4.3 item 6): a vehicle already landing or
	// terminating ignores a concurrent link loss.
	switch in.CurrentNavState {
	case types.NavStateAutoLand, types.NavStateTermination:
		return Decision{}, false
	}
	return Decision{NavState: navStateForAction(cfg.LinkLossAction), Cause: "commander_gcs_lost"}, true
}

func ruleRCLoss(in Inputs, cfg Config) (Decision, bool) {
	if !in.RCSignalLost || !in.Armed {
		return Decision{}, false
	}
	if cfg.RCLossExceptWhileAuto && isAutoMainState(in.MainState) {
		return Decision{}, false
	}
	return Decision{NavState: navStateForAction(cfg.RCLossAction), Cause: "rc_signal_lost"}, true
}

func ruleOffboardLoss(in Inputs, cfg Config) (Decision, bool) {
	if !in.OffboardLinkLost || in.MainState != types.MainStateOffboard {
		return Decision{}, false
	}
	if !in.RCSignalLost {
		return Decision{NavState: navStateForAction(cfg.OffboardLossRCAvailableAction), Cause: "offboard_lost_rc_available"}, true
	}
	return Decision{NavState: navStateForAction(cfg.OffboardLossAction), Cause: "offboard_lost"}, true
}

func ruleGeofenceViolation(in Inputs, _ Config) (Decision, bool) {
	if !in.GeofenceViolation {
		return Decision{}, false
	}
	switch in.GeofenceAction {
	case types.GeofenceActionLoiter:
		return Decision{NavState: types.NavStateAutoLoiter, Cause: "geofence_loiter"}, true
	case types.GeofenceActionRTL:
		return Decision{NavState: types.NavStateAutoRTL, Cause: "geofence_rtl"}, true
	case types.GeofenceActionLand:
		return Decision{NavState: types.NavStateAutoLand, Cause: "geofence_land"}, true
	}
	return Decision{}, false
}

func ruleMaxFlightTime(in Inputs, _ Config) (Decision, bool) {
	if in.MaxFlightTimeReached && in.CurrentNavState != types.NavStateAutoLand {
		return Decision{NavState: types.NavStateAutoRTL, Cause: "max_flight_time"}, true
	}
	return Decision{}, false
}

func ruleHighWind(in Inputs, _ Config) (Decision, bool) {
	if in.HighWindExceeded {
		return Decision{NavState: types.NavStateAutoRTL, Cause: "high_wind"}, true
	}
	return Decision{}, false
}

func ruleVTOLQuadchute(in Inputs, cfg Config) (Decision, bool) {
	if in.VTOLQuadchute {
		return Decision{NavState: navStateForAction(cfg.QuadchuteAction), Cause: "vtol_quadchute"}, true
	}
	return Decision{}, false
}

func navStateForAction(a types.FailsafeAction) types.NavigationState {
	switch a {
	case types.FailsafeActionWarn:
		return types.NavStateAutoLoiter
	case types.FailsafeActionHold:
		return types.NavStateAutoLoiter
	case types.FailsafeActionRTL:
		return types.NavStateAutoRTL
	case types.FailsafeActionLand:
		return types.NavStateAutoLand
	case types.FailsafeActionTerminate:
		return types.NavStateTermination
	default:
		return types.NavStateAutoLoiter
	}
}

func isAutoMainState(s types.MainState) bool {
	switch s {
	case types.MainStateAutoMission, types.MainStateAutoLoiter, types.MainStateAutoRTL,
		types.MainStateAutoTakeoff, types.MainStateAutoLand, types.MainStateAutoFollowTarget,
		types.MainStateAutoPrecland, types.MainStateOrbit, types.MainStateAutoVtolTakeoff:
		return true
	default:
		return false
	}
}

func navStateForMainState(s types.MainState) types.NavigationState {
	switch s {
	case types.MainStateManual:
		return types.NavStateManual
	case types.MainStateAltctl:
		return types.NavStateAltctl
	case types.MainStatePosctl:
		return types.NavStatePosctl
	case types.MainStateAutoMission:
		return types.NavStateAutoMission
	case types.MainStateAutoLoiter:
		return types.NavStateAutoLoiter
	case types.MainStateAutoRTL:
		return types.NavStateAutoRTL
	case types.MainStateAcro:
		return types.NavStateAcro
	case types.MainStateOffboard:
		return types.NavStateOffboard
	case types.MainStateStab:
		return types.NavStateStabilized
	case types.MainStateAutoTakeoff:
		return types.NavStateAutoTakeoff
	case types.MainStateAutoLand:
		return types.NavStateAutoLand
	case types.MainStateAutoFollowTarget:
		return types.NavStateAutoFollowTarget
	case types.MainStateAutoPrecland:
		return types.NavStatePrecland
	case types.MainStateOrbit:
		return types.NavStateOrbit
	case types.MainStateAutoVtolTakeoff:
		return types.NavStateAutoVtolTakeoff
	default:
		return types.NavStateManual
	}
}
