package modes

import (
	"testing"

	"github.com/tiiuae/flightcore/internal/types"
)

func TestTakeoffFinishesWithinAltitudeTolerance(t *testing.T) {
	ctx := baseCtx()
	ctx.VehicleAlt = 9.8
	var triplet types.PositionSetpointTriplet
	tk := &Takeoff{TargetAltitude: 10}

	res := tk.Tick(true, ctx, &triplet)
	if !res.Finished {
		t.Fatalf("expected Finished within 0.5m tolerance, got %+v", res)
	}
}

func TestTakeoffNotFinishedFarBelowTarget(t *testing.T) {
	ctx := baseCtx()
	ctx.VehicleAlt = 1
	var triplet types.PositionSetpointTriplet
	tk := &Takeoff{TargetAltitude: 10}

	res := tk.Tick(true, ctx, &triplet)
	if res.Finished {
		t.Fatalf("expected not finished while far below target altitude")
	}
	if triplet.Current.Alt != 10 {
		t.Fatalf("expected setpoint altitude to be the target altitude, got %v", triplet.Current.Alt)
	}
}

func TestTakeoffResetsOnDeactivation(t *testing.T) {
	ctx := baseCtx()
	ctx.VehicleAlt = 10
	var triplet types.PositionSetpointTriplet
	tk := &Takeoff{TargetAltitude: 10}
	tk.Tick(true, ctx, &triplet)
	tk.Tick(false, ctx, &triplet)
	if tk.reached {
		t.Fatalf("expected deactivation to clear the reached flag")
	}
}

func TestVTOLTakeoffSwitchesSetpointTypeOnceReached(t *testing.T) {
	ctx := baseCtx()
	ctx.VehicleAlt = 1
	var triplet types.PositionSetpointTriplet
	v := &VTOLTakeoff{TargetAltitude: 10}

	v.Tick(true, ctx, &triplet)
	if triplet.Current.Type != types.SetpointTakeoff {
		t.Fatalf("expected SetpointTakeoff before reaching altitude, got %v", triplet.Current.Type)
	}

	ctx.VehicleAlt = 10
	v.Tick(true, ctx, &triplet)
	res := v.Tick(true, ctx, &triplet)
	if triplet.Current.Type != types.SetpointPosition || !res.Finished {
		t.Fatalf("expected SetpointPosition and Finished once altitude is reached, got type=%v finished=%v",
			triplet.Current.Type, res.Finished)
	}
}
