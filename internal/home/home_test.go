package home

import (
	"testing"
	"time"

	"math"
)

func TestCurrentInvalidBeforeAnySet(t *testing.T) {
	m := New(Config{})
	if m.Current().Valid {
		t.Fatalf("expected an empty Manager to report an invalid home position")
	}
}

func TestSetManualAcceptsFiniteCoordinates(t *testing.T) {
	m := New(Config{})
	ok := m.SetManual(10, 20, 30, 1.5, time.Unix(0, 0))
	if !ok || !m.Current().Valid {
		t.Fatalf("expected a finite manual home to be accepted")
	}
	if m.Current().Lat != 10 || m.Current().Lon != 20 || m.Current().Alt != 30 {
		t.Fatalf("got %+v", m.Current())
	}
}

func TestSetManualRejectsNonFiniteCoordinates(t *testing.T) {
	m := New(Config{})
	ok := m.SetManual(math.NaN(), 0, 0, 0, time.Unix(0, 0))
	if ok || m.Current().Valid {
		t.Fatalf("expected NaN coordinates to be rejected")
	}
}

func TestOnFirstArmRefusesBeforeBootHoldoff(t *testing.T) {
	m := New(Config{})
	boot := time.Unix(100, 0)
	ok := m.OnFirstArm(1, 2, 3, 0, boot.Add(100*time.Millisecond), boot)
	if ok || m.Current().Valid {
		t.Fatalf("expected first-arm home set to be refused before the holdoff elapses")
	}
}

func TestOnFirstArmSetsOnceAfterHoldoff(t *testing.T) {
	m := New(Config{})
	boot := time.Unix(100, 0)
	ok := m.OnFirstArm(1, 2, 3, 0, boot.Add(600*time.Millisecond), boot)
	if !ok || !m.Current().Valid {
		t.Fatalf("expected first-arm home set to succeed after the holdoff")
	}
}

func TestOnFirstArmIsOnlyFirstArm(t *testing.T) {
	m := New(Config{})
	boot := time.Unix(0, 0)
	m.OnFirstArm(1, 2, 3, 0, boot.Add(time.Second), boot)
	ok := m.OnFirstArm(9, 9, 9, 0, boot.Add(2*time.Second), boot)
	if ok {
		t.Fatalf("expected OnFirstArm to refuse once home is already valid")
	}
	if m.Current().Lat != 1 {
		t.Fatalf("expected the original home to remain unchanged, got %+v", m.Current())
	}
}

func TestOnTakeoffEdgeRequiresRefreshInAir(t *testing.T) {
	m := New(Config{RefreshInAir: false})
	ok := m.OnTakeoffEdge(1, 2, 3, 0, time.Unix(0, 0))
	if ok {
		t.Fatalf("expected the takeoff-edge refresh to be disabled")
	}

	m2 := New(Config{RefreshInAir: true})
	ok = m2.OnTakeoffEdge(1, 2, 3, 0, time.Unix(0, 0))
	if !ok || !m2.Current().Valid {
		t.Fatalf("expected the takeoff-edge refresh to succeed when enabled")
	}
}

func TestInvalidateRefusedDuringActionInProgress(t *testing.T) {
	m := New(Config{})
	m.SetManual(1, 2, 3, 0, time.Unix(0, 0))
	m.SetActionInProgress(true)
	if m.Invalidate() || !m.Current().Valid {
		t.Fatalf("expected Invalidate to be refused while an action is in progress")
	}
	m.SetActionInProgress(false)
	if !m.Invalidate() || m.Current().Valid {
		t.Fatalf("expected Invalidate to succeed once the action completes")
	}
}
