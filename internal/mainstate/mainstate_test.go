package mainstate

import (
	"testing"

	"github.com/tiiuae/flightcore/internal/types"
)

func TestTryIdempotentRequestIsNotChanged(t *testing.T) {
	m := New()
	res, _, state := m.Try(types.MainStateManual, Conditions{})
	if res != types.TransitionNotChanged || state != types.MainStateManual {
		t.Fatalf("got (%v, %v)", res, state)
	}
	if _, changes := m.State(); changes != 0 {
		t.Fatalf("expected change counter untouched, got %d", changes)
	}
}

func TestTryDeniesAutoModeWithoutGlobalPosition(t *testing.T) {
	m := New()
	res, reason, _ := m.Try(types.MainStateAutoMission, Conditions{GlobalPositionValid: false})
	if res != types.TransitionDenied || reason != DenialMissingGlobalPosition {
		t.Fatalf("got (%v, %v)", res, reason)
	}
}

func TestTryDeniesTakeoffWithoutLocalPosition(t *testing.T) {
	m := New()
	res, reason, _ := m.Try(types.MainStateAutoTakeoff, Conditions{LocalPositionValid: false})
	if res != types.TransitionDenied || reason != DenialMissingLocalPosition {
		t.Fatalf("got (%v, %v)", res, reason)
	}
}

func TestTryDeniesRTLWithoutHome(t *testing.T) {
	m := New()
	res, reason, _ := m.Try(types.MainStateAutoRTL, Conditions{GlobalPositionValid: true, HomePositionValid: false})
	if res != types.TransitionDenied || reason != DenialMissingHome {
		t.Fatalf("got (%v, %v)", res, reason)
	}
}

func TestTryDeniesOffboardWithStaleSignal(t *testing.T) {
	m := New()
	res, reason, _ := m.Try(types.MainStateOffboard, Conditions{OffboardSignalRecent: false})
	if res != types.TransitionDenied || reason != DenialOffboardSignalStale {
		t.Fatalf("got (%v, %v)", res, reason)
	}
}

func TestTryDeniesUnsupportedModeForRover(t *testing.T) {
	m := New()
	res, reason, _ := m.Try(types.MainStateAcro, Conditions{VehicleType: types.VehicleTypeRover})
	if res != types.TransitionDenied || reason != DenialUnsupportedForVehicleType {
		t.Fatalf("got (%v, %v)", res, reason)
	}
}

func TestTryPosctlFallsBackToAltctl(t *testing.T) {
	m := New()
	res, reason, final := m.Try(types.MainStatePosctl, Conditions{GlobalPositionValid: false, AltitudeValid: true})
	if res != types.TransitionChanged || reason != DenialNone || final != types.MainStateAltctl {
		t.Fatalf("got (%v, %v, %v)", res, reason, final)
	}
}

func TestTryPosctlDeniedWithoutAltitudeEither(t *testing.T) {
	m := New()
	res, reason, _ := m.Try(types.MainStatePosctl, Conditions{GlobalPositionValid: false, AltitudeValid: false})
	if res != types.TransitionDenied || reason != DenialMissingGlobalPosition {
		t.Fatalf("got (%v, %v)", res, reason)
	}
}

func TestTryChangedIncrementsCounter(t *testing.T) {
	m := New()
	m.Try(types.MainStateAltctl, Conditions{})
	_, changes := m.State()
	if changes != 1 {
		t.Fatalf("expected change counter 1, got %d", changes)
	}
	m.Try(types.MainStatePosctl, Conditions{GlobalPositionValid: true})
	if _, changes = m.State(); changes != 2 {
		t.Fatalf("expected change counter 2, got %d", changes)
	}
}

func TestForceInstallInitialOnlyBeforeFirstModeChange(t *testing.T) {
	m := New()
	if ok := m.ForceInstallInitial(types.MainStateAltctl, Conditions{NeverChangedModeSinceBoot: false}); ok {
		t.Fatalf("expected force-install refused once a mode change has happened")
	}
	if ok := m.ForceInstallInitial(types.MainStateAltctl, Conditions{NeverChangedModeSinceBoot: true}); !ok {
		t.Fatalf("expected force-install to succeed")
	}
	if s, _ := m.State(); s != types.MainStateAltctl {
		t.Fatalf("expected ALTCTL installed, got %v", s)
	}
}

func TestForceInstallInitialHighLevelSourceForcesPosctl(t *testing.T) {
	m := New()
	ok := m.ForceInstallInitial(types.MainStateAutoMission, Conditions{
		NeverChangedModeSinceBoot: true, RequestIsHighLevelSource: true,
	})
	if !ok {
		t.Fatalf("expected force-install to succeed for a high-level source")
	}
	if s, _ := m.State(); s != types.MainStatePosctl {
		t.Fatalf("expected POSCTL forced regardless of requested target, got %v", s)
	}
}
