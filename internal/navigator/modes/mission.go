package modes

import (
	"github.com/tiiuae/flightcore/internal/geofence"
	"github.com/tiiuae/flightcore/internal/types"
)

// Mission steps through the loaded mission's waypoints in sequence,
// advancing once the vehicle reaches each item's acceptance radius.
// It defers storage and sequencing to ctx.Mission (the dataman
// collaborator named as a non-goal in spec §1); this mode only knows
// how to turn "current item" into a setpoint and when to call Advance.
type Mission struct {
	haveItem bool
	item     Item
}

// Kind identifies this mode for the dispatcher.
func (m *Mission) Kind() types.NavModeKind { return types.NavModeMission }

// Tick fills the current setpoint from the mission's current item,
// advancing to the next item once the vehicle is within its
// acceptance radius. MissionResult reports Finished once the mission
// has no further item to advance to.
func (m *Mission) Tick(active bool, ctx *Context, triplet *types.PositionSetpointTriplet) types.MissionResult {
	if !active {
		m.haveItem = false
		return types.MissionResult{}
	}

	if ctx.Mission == nil {
		return types.MissionResult{Valid: false, Failure: true}
	}

	if !m.haveItem {
		item, ok := ctx.Mission.CurrentItem()
		if !ok {
			return types.MissionResult{Valid: false, Finished: true}
		}
		m.item = item
		m.haveItem = true
	}

	radius := m.item.AcceptanceRadius
	if radius <= 0 {
		radius = ctx.AcceptanceRadius
	}

	triplet.Current = types.PositionSetpoint{
		Lat:              m.item.Lat,
		Lon:              m.item.Lon,
		Alt:              m.item.Alt,
		Type:             m.item.Type,
		AcceptanceRadius: radius,
		Valid:            true,
	}

	terminate := m.item.Terminate

	dist := geofence.DistanceMeters(ctx.VehicleLat, ctx.VehicleLon, m.item.Lat, m.item.Lon)
	if dist <= float64(radius) && absFloat(ctx.VehicleAlt-m.item.Alt) <= 3.0 {
		next, ok := ctx.Mission.Advance()
		if !ok {
			return types.MissionResult{Valid: true, Finished: true, SeqCurrent: m.item.Seq, FlightTermination: terminate}
		}
		m.item = next
	}

	return types.MissionResult{Valid: true, SeqCurrent: m.item.Seq, FlightTermination: terminate}
}
