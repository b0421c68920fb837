package modes

import "github.com/tiiuae/flightcore/internal/types"

// Takeoff climbs to a configured takeoff altitude above home, then
// reports Finished so the dispatcher can advance to AUTO_LOITER while
// preserving the triplet (spec §4.8 exception 1).
type Takeoff struct {
	TargetAltitude float64
	reached        bool
}

// Kind identifies this mode for the dispatcher.
func (t *Takeoff) Kind() types.NavModeKind { return types.NavModeTakeoff }

// Tick climbs straight up from the vehicle's current lat/lon to
// TargetAltitude and reports Finished once the vehicle altitude is
// within 0.5 m of that altitude.
func (t *Takeoff) Tick(active bool, ctx *Context, triplet *types.PositionSetpointTriplet) types.MissionResult {
	if !active {
		t.reached = false
		return types.MissionResult{}
	}

	triplet.Current = types.PositionSetpoint{
		Lat:              ctx.VehicleLat,
		Lon:              ctx.VehicleLon,
		Alt:              t.TargetAltitude,
		Type:             types.SetpointTakeoff,
		AcceptanceRadius: ctx.AcceptanceRadius,
		Valid:            true,
	}

	const altTolerance = 0.5
	if !t.reached && absFloat(ctx.VehicleAlt-t.TargetAltitude) <= altTolerance {
		t.reached = true
	}

	return types.MissionResult{Valid: true, Finished: t.reached}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
