package modes

import "github.com/tiiuae/flightcore/internal/types"

// Precland is the precision-landing variant: it behaves like Land
// over the latched target until a landing-target estimate becomes
// available (fed in through ctx as LandingTargetValid and
// LandingTargetLat/LandingTargetLon),
// after which it steers the current setpoint onto that estimate.
type Precland struct {
	armedLat, armedLon float64
	armed              bool
}

// Kind identifies this mode for the dispatcher.
func (p *Precland) Kind() types.NavModeKind { return types.NavModePrecland }

// Tick mirrors Land.Tick but prefers ctx's landing-target estimate
// over the latched activation point once one is present.
func (p *Precland) Tick(active bool, ctx *Context, triplet *types.PositionSetpointTriplet) types.MissionResult {
	if !active {
		p.armed = false
		return types.MissionResult{}
	}

	if !p.armed {
		p.armedLat, p.armedLon = ctx.VehicleLat, ctx.VehicleLon
		p.armed = true
	}

	lat, lon := p.armedLat, p.armedLon
	if ctx.LandingTargetValid {
		lat, lon = ctx.LandingTargetLat, ctx.LandingTargetLon
	}

	triplet.Current = types.PositionSetpoint{
		Lat:              lat,
		Lon:              lon,
		Alt:              ctx.Home.Alt,
		Type:             types.SetpointLand,
		AcceptanceRadius: ctx.AcceptanceRadius,
		Valid:            true,
	}

	return types.MissionResult{Valid: true}
}
