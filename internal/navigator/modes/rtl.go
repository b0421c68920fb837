package modes

import (
	"github.com/tiiuae/flightcore/internal/geofence"
	"github.com/tiiuae/flightcore/internal/types"
)

// RTL implements the four return-to-launch sub-types named in spec
// §4.8: the dispatcher sets ctx.RTLType and RTL picks the strategy on
// activation, then runs it to completion.
type RTL struct {
	resolved bool
	target   types.PositionSetpoint
}

// Kind identifies this mode for the dispatcher.
func (r *RTL) Kind() types.NavModeKind { return types.NavModeRTL }

// Tick resolves the RTL leg on first activation, then holds at the
// resolved point until the caller observes Finished and transitions
// to AUTO_LAND or AUTO_LOITER.
func (r *RTL) Tick(active bool, ctx *Context, triplet *types.PositionSetpointTriplet) types.MissionResult {
	if !active {
		r.resolved = false
		return types.MissionResult{}
	}

	if !r.resolved {
		r.target = r.resolve(ctx)
		r.resolved = true
	}

	triplet.Current = r.target

	const acceptance = 2.0 // meters, fallback when triplet carries none
	radius := float64(r.target.AcceptanceRadius)
	if radius <= 0 {
		radius = acceptance
	}
	dist := geofence.DistanceMeters(ctx.VehicleLat, ctx.VehicleLon, r.target.Lat, r.target.Lon)
	reached := dist <= radius && absFloat(ctx.VehicleAlt-r.target.Alt) <= 1.0

	return types.MissionResult{Valid: true, Finished: reached, LandStartAvailable: r.target.Type == types.SetpointLand}
}

func (r *RTL) resolve(ctx *Context) types.PositionSetpoint {
	switch ctx.RTLType {
	case types.RTLClosest:
		return r.resolveClosest(ctx)
	case types.RTLMissionLanding:
		return r.resolveMissionLanding(ctx, false)
	case types.RTLMissionLandingReversed:
		return r.resolveMissionLanding(ctx, true)
	default: // RTLDirect
		return r.resolveDirect(ctx)
	}
}

// resolveDirect returns straight to home at the configured return
// altitude and loiters there.
func (r *RTL) resolveDirect(ctx *Context) types.PositionSetpoint {
	return types.PositionSetpoint{
		Lat:              ctx.Home.Lat,
		Lon:              ctx.Home.Lon,
		Alt:              ctx.Home.Alt + ctx.ReturnAltitude,
		Type:             types.SetpointLoiter,
		LoiterRadius:     ctx.LoiterRadius,
		AcceptanceRadius: ctx.AcceptanceRadius,
		Valid:            true,
	}
}

// resolveClosest picks the fence polygon vertex nearest the vehicle
// (geofence.NearestBoundaryPoint), falling back to direct-to-home when
// no fence polygon is loaded.
func (r *RTL) resolveClosest(ctx *Context) types.PositionSetpoint {
	if ctx.Fence == nil || !ctx.Fence.HasPolygon {
		return r.resolveDirect(ctx)
	}
	lat, lon, ok := geofence.NearestBoundaryPoint(*ctx.Fence, geofence.TestPoint{Lat: ctx.VehicleLat, Lon: ctx.VehicleLon, Alt: ctx.VehicleAlt})
	if !ok {
		return r.resolveDirect(ctx)
	}
	return types.PositionSetpoint{
		Lat:              lat,
		Lon:              lon,
		Alt:              ctx.Home.Alt + ctx.ReturnAltitude,
		Type:             types.SetpointLoiter,
		LoiterRadius:     ctx.LoiterRadius,
		AcceptanceRadius: ctx.AcceptanceRadius,
		Valid:            true,
	}
}

// resolveMissionLanding joins the mission's landing sequence, either
// from its start (forward) or reversed from the current mission
// sequence number back through the landing pattern; it falls back to
// resolveDirect when no mission or landing sequence is available.
func (r *RTL) resolveMissionLanding(ctx *Context, reversed bool) types.PositionSetpoint {
	if ctx.Mission == nil || !ctx.Mission.HasLandingSequence() {
		return r.resolveDirect(ctx)
	}

	var item Item
	var ok bool
	if reversed {
		item, ok = ctx.Mission.ReverseFrom(ctx.Mission.CurrentSeq())
	} else {
		item, ok = ctx.Mission.LandingSequenceStart()
	}
	if !ok {
		return r.resolveDirect(ctx)
	}

	return types.PositionSetpoint{
		Lat:              item.Lat,
		Lon:              item.Lon,
		Alt:              item.Alt,
		Type:             types.SetpointPosition,
		AcceptanceRadius: item.AcceptanceRadius,
		Valid:            true,
	}
}
