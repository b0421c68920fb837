package modes

import "github.com/tiiuae/flightcore/internal/types"

// Land descends at the current horizontal position, or at the
// position it was activated over, until touchdown is detected
// externally (ground_contact / land_detected, both external
// collaborators per spec §1) and the dispatcher deactivates this mode.
type Land struct {
	armedLat, armedLon float64
	armed              bool
}

// Kind identifies this mode for the dispatcher.
func (l *Land) Kind() types.NavModeKind { return types.NavModeLand }

// Tick latches the horizontal target on activation and descends at
// that point indefinitely; Finished is never reported here because
// touchdown is detected by the land-detector outside the Navigator.
func (l *Land) Tick(active bool, ctx *Context, triplet *types.PositionSetpointTriplet) types.MissionResult {
	if !active {
		l.armed = false
		return types.MissionResult{}
	}

	if !l.armed {
		l.armedLat, l.armedLon = ctx.VehicleLat, ctx.VehicleLon
		l.armed = true
	}

	triplet.Current = types.PositionSetpoint{
		Lat:              l.armedLat,
		Lon:              l.armedLon,
		Alt:              ctx.Home.Alt,
		Type:             types.SetpointLand,
		AcceptanceRadius: ctx.AcceptanceRadius,
		Valid:            true,
	}

	return types.MissionResult{Valid: true}
}
