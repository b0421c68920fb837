package modes

import "github.com/tiiuae/flightcore/internal/types"

// Loiter holds position at the current (or last-commanded) point.
type Loiter struct {
	engaged bool
}

// Kind identifies this mode for the dispatcher.
func (l *Loiter) Kind() types.NavModeKind { return types.NavModeLoiter }

// Tick fills the current setpoint with a LOITER circle centered on
// the vehicle's position the first tick it becomes active. Per spec
// §4.8 exception 2, the dispatcher is responsible for *not* resetting
// the triplet before calling Tick when the existing triplet is
// already a valid loiter setpoint — Loiter.Tick only fills one in
// when it is missing.
func (l *Loiter) Tick(active bool, ctx *Context, triplet *types.PositionSetpointTriplet) types.MissionResult {
	if !active {
		l.engaged = false
		return types.MissionResult{}
	}

	if triplet.Current.Type != types.SetpointLoiter || !triplet.Current.Valid {
		triplet.Current = types.PositionSetpoint{
			Lat:              ctx.VehicleLat,
			Lon:              ctx.VehicleLon,
			Alt:              ctx.VehicleAlt,
			Type:             types.SetpointLoiter,
			LoiterRadius:     ctx.LoiterRadius,
			LoiterDirection:  types.LoiterClockwise,
			AcceptanceRadius: ctx.AcceptanceRadius,
			Valid:            true,
		}
	}
	l.engaged = true

	return types.MissionResult{Valid: true}
}

// ReengageAt forces the loiter center to a specific point — used by
// the geofence breach-avoidance corrective loiter (spec §4.12).
func (l *Loiter) ReengageAt(ctx *Context, triplet *types.PositionSetpointTriplet, lat, lon, alt float64) {
	triplet.Current = types.PositionSetpoint{
		Lat:              lat,
		Lon:              lon,
		Alt:              alt,
		Type:             types.SetpointLoiter,
		LoiterRadius:     ctx.LoiterRadius,
		LoiterDirection:  types.LoiterClockwise,
		AcceptanceRadius: ctx.AcceptanceRadius,
		Valid:            true,
	}
	l.engaged = true
}
