package modes

import (
	"testing"

	"github.com/tiiuae/flightcore/internal/types"
)

func TestLoiterFillsCenterOnFirstActivation(t *testing.T) {
	ctx := baseCtx()
	ctx.VehicleLat, ctx.VehicleLon, ctx.VehicleAlt = 10, 20, 30
	var triplet types.PositionSetpointTriplet
	l := &Loiter{}

	l.Tick(true, ctx, &triplet)
	if triplet.Current.Type != types.SetpointLoiter || triplet.Current.Lat != 10 || triplet.Current.Lon != 20 {
		t.Fatalf("got %+v", triplet.Current)
	}
}

func TestLoiterDoesNotOverwriteExistingValidLoiter(t *testing.T) {
	ctx := baseCtx()
	ctx.VehicleLat, ctx.VehicleLon = 10, 20
	triplet := types.PositionSetpointTriplet{Current: types.PositionSetpoint{
		Lat: 1, Lon: 2, Type: types.SetpointLoiter, Valid: true,
	}}
	l := &Loiter{}

	l.Tick(true, ctx, &triplet)
	if triplet.Current.Lat != 1 || triplet.Current.Lon != 2 {
		t.Fatalf("expected the existing loiter setpoint to be preserved, got %+v", triplet.Current)
	}
}

func TestLoiterReengageAtForcesCenter(t *testing.T) {
	ctx := baseCtx()
	triplet := types.PositionSetpointTriplet{Current: types.PositionSetpoint{
		Lat: 1, Lon: 2, Type: types.SetpointLoiter, Valid: true,
	}}
	l := &Loiter{}
	l.ReengageAt(ctx, &triplet, 50, 60, 70)
	if triplet.Current.Lat != 50 || triplet.Current.Lon != 60 || triplet.Current.Alt != 70 {
		t.Fatalf("got %+v", triplet.Current)
	}
}
