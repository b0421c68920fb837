package navigator

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/tiiuae/flightcore/internal/geofence"
	"github.com/tiiuae/flightcore/internal/navigator/modes"
	"github.com/tiiuae/flightcore/internal/types"
)

func testFence() geofence.Fence {
	return geofence.Fence{HasPolygon: true, Polygon: orb.Polygon{orb.Ring{
		{-1, -1}, {1, -1}, {1, 1}, {-1, 1}, {-1, -1},
	}}}
}

func testCtx() *modes.Context {
	return &modes.Context{
		Now:              time.Unix(0, 0),
		AcceptanceRadius: 5,
		LoiterRadius:     80,
		ReturnAltitude:   50,
	}
}

func TestTickNotArmedForcesNoneAndInvalidTriplet(t *testing.T) {
	n := New()
	triplet, _ := n.Tick(false, types.NavStateAutoMission, testCtx())
	if triplet.Current.Valid {
		t.Fatalf("expected an invalid triplet while not armed")
	}
}

func TestTickDispatchesLoiterMode(t *testing.T) {
	n := New()
	ctx := testCtx()
	ctx.VehicleLat, ctx.VehicleLon, ctx.VehicleAlt = 1, 2, 3
	triplet, _ := n.Tick(true, types.NavStateAutoLoiter, ctx)
	if triplet.Current.Type != types.SetpointLoiter || triplet.Current.Lat != 1 {
		t.Fatalf("got %+v", triplet.Current)
	}
}

func TestTakeoffToLoiterPreservesTriplet(t *testing.T) {
	n := New()
	ctx := testCtx()
	n.takeoff.TargetAltitude = 10
	ctx.VehicleAlt = 10 // within reached tolerance
	n.Tick(true, types.NavStateAutoTakeoff, ctx)
	triplet, _ := n.Tick(true, types.NavStateAutoLoiter, ctx)
	// The preserved setpoint from takeoff was a SetpointTakeoff record;
	// Loiter.Tick only fills a center when the existing one isn't
	// already a valid loiter, so it replaces it with its own circle
	// centered on the vehicle's current position.
	if !triplet.Current.Valid {
		t.Fatalf("expected a valid triplet carried through the takeoff->loiter transition")
	}
}

func TestSwitchingAwayFromLoiterResetsTriplet(t *testing.T) {
	n := New()
	ctx := testCtx()
	ctx.VehicleLat, ctx.VehicleLon = 1, 2
	n.Tick(true, types.NavStateAutoLoiter, ctx)

	ctx.RTLType = types.RTLDirect
	ctx.Home = types.HomePosition{Lat: 9, Lon: 9}
	triplet, _ := n.Tick(true, types.NavStateAutoRTL, ctx)
	if triplet.Current.Lat != 9 {
		t.Fatalf("expected the triplet reset and the RTL mode to resolve fresh, got %+v", triplet.Current)
	}
}

func TestReenteringLoiterWhileAlreadyLoiteringPreservesCenter(t *testing.T) {
	n := New()
	ctx := testCtx()
	ctx.VehicleLat, ctx.VehicleLon = 1, 2
	n.Tick(true, types.NavStateAutoLoiter, ctx)
	ctx.VehicleLat, ctx.VehicleLon = 99, 99 // vehicle has since drifted
	triplet, _ := n.Tick(true, types.NavStateAutoLoiter, ctx)
	if triplet.Current.Lat != 1 || triplet.Current.Lon != 2 {
		t.Fatalf("expected the original loiter center preserved, got %+v", triplet.Current)
	}
}

func TestGeofenceBreachAvoidanceOverridesActiveModeWhenActionIsLoiter(t *testing.T) {
	n := New()
	ctx := testCtx()
	ctx.VehicleLat, ctx.VehicleLon = 1, 1 // inside the fence, dispatched to mission normally

	violation := geofence.Check(testFence(), geofence.TestPoint{Lat: 5, Lon: 5}, 0, 0)
	if !violation.Any() {
		t.Fatalf("expected the test point to breach the fence")
	}
	ctx.GeofenceAction = types.GeofenceActionLoiter
	ctx.GeofenceViolation = violation
	ctx.GeofenceCheckDue = true
	ctx.GeofenceLoiterLat, ctx.GeofenceLoiterLon = 5, 5

	n.Tick(true, types.NavStateAutoMission, ctx)

	if n.active != types.NavModeLoiter {
		t.Fatalf("expected breach avoidance to force the active mode to loiter, got %v", n.active)
	}
	if n.triplet.Current.Lat != 5 || n.triplet.Current.Lon != 5 {
		t.Fatalf("expected the loiter center at the monitor's reposition point, got %+v", n.triplet.Current)
	}
}

// TestGeofenceBreachAvoidanceLeavesRTLActionAlone verifies that a
// GeofenceActionRTL configuration is NOT force-overridden into a
// loiter here — the failsafe resolver already switched the
// navigation state to AUTO_RTL for that case (spec §4.3 rule 9), and
// this dispatcher should just run the RTL mode like any other state.
func TestGeofenceBreachAvoidanceLeavesRTLActionAlone(t *testing.T) {
	n := New()
	ctx := testCtx()
	ctx.RTLType = types.RTLDirect
	ctx.Home = types.HomePosition{Lat: 9, Lon: 9}

	ctx.GeofenceAction = types.GeofenceActionRTL
	ctx.GeofenceViolation = geofence.Violation{OutsidePolygon: true}
	ctx.GeofenceCheckDue = true
	ctx.GeofenceLoiterLat, ctx.GeofenceLoiterLon = 5, 5

	n.Tick(true, types.NavStateAutoRTL, ctx)

	if n.active != types.NavModeRTL {
		t.Fatalf("expected the RTL action to leave the dispatcher on RTL, got %v", n.active)
	}
	if n.triplet.Current.Lat != 9 {
		t.Fatalf("expected the RTL mode's own home-based setpoint, got %+v", n.triplet.Current)
	}
}
