// Package navigator implements the Navigator mode dispatcher (spec
// §4.8): it selects a single active modes.Mode purely from the
// Commander-published navigation state, ticks it, and maintains the
// triplet-preservation rules that distinguish a mode switch from a
// fresh mission leg. The dispatch-by-tag shape mirrors spec §9's
// "tagged variant whose per-variant tick function is selected by the
// dispatcher" note, itself grounded on the teacher's ROS2 node
// callback selection in communicationlink/ros2app.
package navigator

import (
	"github.com/tiiuae/flightcore/internal/geofence"
	"github.com/tiiuae/flightcore/internal/navigator/modes"
	"github.com/tiiuae/flightcore/internal/types"
)

// Navigator owns every mode instance and the triplet they share, and
// dispatches ticks based solely on the nav state it is given — it
// never reads arming or failsafe state directly (spec §4.8: "Navigator
// has no path back into Commander other than the nav state it is
// given").
type Navigator struct {
	mission  *modes.Mission
	loiter   *modes.Loiter
	rtl      *modes.RTL
	takeoff  *modes.Takeoff
	vtolTO   *modes.VTOLTakeoff
	land     *modes.Land
	precland *modes.Precland

	active types.NavModeKind

	triplet types.PositionSetpointTriplet
}

// New constructs a Navigator with one instance of every mode. The
// Navigator never talks to the geofence monitor itself — it consumes
// whatever verdict the Commander Loop already computed this tick via
// modes.Context, alongside every other monitor (§4.6, §4.8: "Navigator
// has no path back into Commander other than the nav state it is
// given").
func New() *Navigator {
	return &Navigator{
		mission:  &modes.Mission{},
		loiter:   &modes.Loiter{},
		rtl:      &modes.RTL{},
		takeoff:  &modes.Takeoff{},
		vtolTO:   &modes.VTOLTakeoff{},
		land:     &modes.Land{},
		precland: &modes.Precland{},
		active:   types.NavModeNone,
	}
}

func kindForNavState(s types.NavigationState) types.NavModeKind {
	switch s {
	case types.NavStateAutoMission:
		return types.NavModeMission
	case types.NavStateAutoLoiter:
		return types.NavModeLoiter
	case types.NavStateAutoRTL:
		return types.NavModeRTL
	case types.NavStateAutoTakeoff:
		return types.NavModeTakeoff
	case types.NavStateAutoVtolTakeoff:
		return types.NavModeVTOLTakeoff
	case types.NavStateAutoLand:
		return types.NavModeLand
	case types.NavStatePrecland:
		return types.NavModePrecland
	default:
		return types.NavModeNone
	}
}

func (n *Navigator) modeFor(kind types.NavModeKind) modes.Mode {
	switch kind {
	case types.NavModeMission:
		return n.mission
	case types.NavModeLoiter:
		return n.loiter
	case types.NavModeRTL:
		return n.rtl
	case types.NavModeTakeoff:
		return n.takeoff
	case types.NavModeVTOLTakeoff:
		return n.vtolTO
	case types.NavModeLand:
		return n.land
	case types.NavModePrecland:
		return n.precland
	default:
		return nil
	}
}

// Tick runs one dispatch cycle: resolve the target mode from navState,
// apply the triplet-preservation rules, tick the active mode (and the
// just-deactivated one once, for cleanup), then run geofence breach
// avoidance if a violation is due. armed false forces the mode to None
// and returns a triplet whose current setpoint is invalid, on every
// such tick (spec §4.8's not-armed rule).
func (n *Navigator) Tick(armed bool, navState types.NavigationState, ctx *modes.Context) (types.PositionSetpointTriplet, types.MissionResult) {
	targetKind := kindForNavState(navState)
	if !armed {
		targetKind = types.NavModeNone
	}

	if targetKind != n.active {
		n.applyTransition(n.active, targetKind)
	}

	prevActive := n.active
	n.active = targetKind

	var result types.MissionResult

	if prevActive != targetKind && prevActive != types.NavModeNone {
		if m := n.modeFor(prevActive); m != nil {
			m.Tick(false, ctx, &n.triplet)
		}
	}

	if targetKind == types.NavModeNone {
		n.triplet.Current.Valid = false
		return n.triplet, types.MissionResult{}
	}

	if m := n.modeFor(targetKind); m != nil {
		result = m.Tick(true, ctx, &n.triplet)
	}

	n.runGeofenceBreachAvoidance(ctx)

	return n.triplet, result
}

// applyTransition implements the default-reset-unless-excepted rule
// (spec §4.8): the triplet is cleared to zero value on every mode
// change except the two named exceptions, which are left untouched so
// the new mode's Tick can see and preserve the existing setpoint.
func (n *Navigator) applyTransition(from, to types.NavModeKind) {
	if from == types.NavModeTakeoff && to == types.NavModeLoiter {
		return // exception 1: takeoff -> loiter preserves the triplet
	}
	if to == types.NavModeLoiter && n.triplet.Current.Valid && n.triplet.Current.Type == types.SetpointLoiter {
		return // exception 2: already loitering, Loiter.Tick leaves it alone
	}
	n.triplet = types.PositionSetpointTriplet{}
}

// runGeofenceBreachAvoidance consumes the geofence verdict the
// Commander Loop already computed this tick and, when the configured
// action is LOITER and a corrective reposition is due, forces the
// loiter mode's center to the monitor's computed point regardless of
// which mode is currently active (spec §4.12, the "Geofence Breach
// Avoidance ... emits corrective loiter setpoint" component).
//
// A configured action of RTL/LAND/TERMINATE is deliberately left
// alone here: spec §4.3 rule 9 already switches the failsafe-resolved
// navigation state to AUTO_RTL/AUTO_LAND for those actions, and this
// Navigator dispatches to the ordinary RTL/Land mode for that state
// like any other transition. Forcing a loiter reposition on top of
// that would silently override the configured action.
func (n *Navigator) runGeofenceBreachAvoidance(ctx *modes.Context) {
	if ctx.GeofenceAction != types.GeofenceActionLoiter {
		return
	}
	if !ctx.GeofenceCheckDue || !ctx.GeofenceViolation.Any() {
		return
	}
	n.active = types.NavModeLoiter
	n.loiter.ReengageAt(ctx, &n.triplet, ctx.GeofenceLoiterLat, ctx.GeofenceLoiterLon, ctx.VehicleAlt)
}

// FenceDistanceMeters exposes the haversine helper used by breach
// avoidance diagnostics and tests.
func FenceDistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return geofence.DistanceMeters(lat1, lon1, lat2, lon2)
}
