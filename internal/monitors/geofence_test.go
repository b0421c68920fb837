package monitors

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/tiiuae/flightcore/internal/geofence"
)

func squareFence() geofence.Fence {
	return geofence.Fence{
		Polygon: orb.Polygon{orb.Ring{
			{-1, -1}, {1, -1}, {1, 1}, {-1, 1}, {-1, -1},
		}},
		HasPolygon: true,
	}
}

func TestGeofenceMonitorThrottlesToInterval(t *testing.T) {
	g := NewGeofenceMonitor(geofence.Fence{}, GeofenceMonitorConfig{Interval: time.Second})
	_, _, _, due := g.Evaluate(0, 0, 0, 0, 0, 0, 0, 0, time.Unix(0, 0))
	if !due {
		t.Fatalf("expected the first Evaluate to run")
	}
	_, _, _, due = g.Evaluate(0, 0, 0, 0, 0, 0, 0, 0, time.Unix(0, int64(500*time.Millisecond)))
	if due {
		t.Fatalf("expected the second Evaluate within the interval to be skipped")
	}
	_, _, _, due = g.Evaluate(0, 0, 0, 0, 0, 0, 0, 0, time.Unix(1, 0))
	if !due {
		t.Fatalf("expected Evaluate to run again once the interval elapses")
	}
}

func TestGeofenceMonitorLoiterOnEdge(t *testing.T) {
	g := NewGeofenceMonitor(squareFence(), GeofenceMonitorConfig{IsRotary: true, MaxHorizontalDecel: 1000, MaxVerticalDecel: 1000})
	violation, _, _, _ := g.Evaluate(5, 5, 0, 0, 0, 0, 0, 0, time.Unix(0, 0))
	if !violation.Any() || !g.LoiterOn() {
		t.Fatalf("expected a violation and LoiterOn for a point far outside the fence")
	}

	violation, _, _, _ = g.Evaluate(0, 0, 0, 0, 0, 0, 0, 0, time.Unix(1, 0))
	if violation.Any() || g.LoiterOn() {
		t.Fatalf("expected no violation and LoiterOn cleared once back inside the fence")
	}
}

func TestGeofenceMonitorSetFenceReplacesActive(t *testing.T) {
	g := NewGeofenceMonitor(geofence.Fence{}, GeofenceMonitorConfig{})
	violation, _, _, _ := g.Evaluate(5, 5, 0, 0, 0, 0, 0, 0, time.Unix(0, 0))
	if violation.Any() {
		t.Fatalf("expected no violation without a fence configured")
	}
	g.SetFence(squareFence())
	violation, _, _, _ = g.Evaluate(5, 5, 0, 0, 0, 0, 0, 0, time.Unix(1, 0))
	if !violation.Any() {
		t.Fatalf("expected SetFence to take effect on the next Evaluate")
	}
}
