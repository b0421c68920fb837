package modes

import "github.com/tiiuae/flightcore/internal/types"

// VTOLTakeoff is the VTOL-specific takeoff variant: climbs
// vertically, then reports Finished once altitude is reached so the
// dispatcher can hand off to the fixed-wing transition logic living
// in vtol_vehicle_status (external, spec §6 input topic).
type VTOLTakeoff struct {
	TargetAltitude float64
	reached        bool
}

// Kind identifies this mode for the dispatcher.
func (v *VTOLTakeoff) Kind() types.NavModeKind { return types.NavModeVTOLTakeoff }

// Tick mirrors Takeoff.Tick but marks the setpoint type POSITION once
// the transition altitude is reached, signalling readiness for the
// forward-flight transition.
func (v *VTOLTakeoff) Tick(active bool, ctx *Context, triplet *types.PositionSetpointTriplet) types.MissionResult {
	if !active {
		v.reached = false
		return types.MissionResult{}
	}

	spType := types.SetpointTakeoff
	if v.reached {
		spType = types.SetpointPosition
	}

	triplet.Current = types.PositionSetpoint{
		Lat:              ctx.VehicleLat,
		Lon:              ctx.VehicleLon,
		Alt:              v.TargetAltitude,
		Type:             spType,
		AcceptanceRadius: ctx.AcceptanceRadius,
		Valid:            true,
	}

	const altTolerance = 0.5
	if !v.reached && absFloat(ctx.VehicleAlt-v.TargetAltitude) <= altTolerance {
		v.reached = true
	}

	return types.MissionResult{Valid: true, Finished: v.reached}
}
