// Package modes implements the Navigator's per-mode tick logic: one
// type per entry in {Mission, Loiter, RTL, Takeoff, VTOL-Takeoff,
// Land, Precland}, selected by the dispatcher in internal/navigator
// as spec §9 requires ("a tagged variant whose per-variant tick(active:
// bool) function is selected by the dispatcher"). Modes never hold a
// pointer back to their owning Navigator (§9's "cyclic references...
// replaced by arena ownership"); they only see the Context passed
// into Tick.
package modes

import (
	"time"

	"github.com/tiiuae/flightcore/internal/geofence"
	"github.com/tiiuae/flightcore/internal/types"
)

// Context is the borrowed view a mode needs: read-only vehicle state,
// the mutable triplet, and a narrow set of operations (home lookup,
// mission access, event logging) — never a handle back to the
// Navigator itself.
type Context struct {
	Now time.Time

	VehicleLat, VehicleLon, VehicleAlt float64
	VehicleHeadingRad                  float64
	GroundSpeedMS                      float64

	Home          types.HomePosition
	VehicleType   types.VehicleType

	Mission MissionSource
	Fence   *geofence.Fence

	LandingTargetValid          bool
	LandingTargetLat, LandingTargetLon float64

	RTLType types.RTLType

	ReturnAltitude float64
	LoiterRadius   float32
	AcceptanceRadius float32

	// Geofence fields carry this tick's already-evaluated monitor
	// verdict (computed once by the Commander Loop, alongside its
	// other watchdogs) so breach avoidance never re-runs the
	// interval-gated prediction itself (§4.6, §4.12).
	GeofenceAction     types.GeofenceAction
	GeofenceViolation  geofence.Violation
	GeofenceLoiterLat  float64
	GeofenceLoiterLon  float64
	GeofenceCheckDue   bool

	Log func(eventID string, args ...interface{})
}

// MissionSource is the narrow slice of the dataman/mission-storage
// external collaborator (spec §1 non-goal) that the Mission and RTL
// modes need: sequential access to mission items and knowledge of
// whether a landing sequence exists.
type MissionSource interface {
	CurrentItem() (Item, bool)
	Advance() (Item, bool)
	HasLandingSequence() bool
	LandingSequenceStart() (Item, bool)
	ReverseFrom(seq int) (Item, bool)
	CurrentSeq() int
}

// Item is one mission waypoint.
type Item struct {
	Seq  int
	Lat  float64
	Lon  float64
	Alt  float64
	Type types.SetpointType
	AcceptanceRadius float32

	// Terminate marks a mission item that requests flight termination
	// on arrival — the "mission-requested termination" input named in
	// spec §4.3 priority rule 1. Rare in practice; false for every
	// ordinary waypoint.
	Terminate bool
}

// Mode is the tagged-variant interface every navigation mode
// implements. Tick receives whether this mode is the currently active
// one (the dispatcher still calls Tick on a just-deactivated mode
// exactly once so it can do cleanup, mirroring a Stop() call without
// adding a second method).
type Mode interface {
	Kind() types.NavModeKind
	Tick(active bool, ctx *Context, triplet *types.PositionSetpointTriplet) types.MissionResult
}
