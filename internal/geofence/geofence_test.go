package geofence

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func squareFence() Fence {
	return Fence{
		Polygon: orb.Polygon{orb.Ring{
			{-1, -1}, {1, -1}, {1, 1}, {-1, 1}, {-1, -1},
		}},
		HasPolygon: true,
	}
}

func TestCheckPolygonContainment(t *testing.T) {
	f := squareFence()
	inside := Check(f, TestPoint{Lat: 0, Lon: 0}, 0, 0)
	if inside.OutsidePolygon {
		t.Fatalf("expected the origin to be inside the fence")
	}
	outside := Check(f, TestPoint{Lat: 5, Lon: 5}, 0, 0)
	if !outside.OutsidePolygon {
		t.Fatalf("expected (5,5) to be outside the fence")
	}
}

func TestCheckMaxAltitude(t *testing.T) {
	f := Fence{MaxAltitude: 100, HasMaxAlt: true}
	v := Check(f, TestPoint{Alt: 150}, 0, 0)
	if !v.AboveMaxAltitude {
		t.Fatalf("expected altitude breach")
	}
	v = Check(f, TestPoint{Alt: 50}, 0, 0)
	if v.AboveMaxAltitude {
		t.Fatalf("expected no altitude breach")
	}
}

func TestCheckMaxDistance(t *testing.T) {
	f := Fence{MaxDistance: 1000, HasMaxDist: true}
	// roughly 0.01 deg latitude ~ 1.1km
	v := Check(f, TestPoint{Lat: 0.01, Lon: 0}, 0, 0)
	if !v.BeyondMaxDistance {
		t.Fatalf("expected distance breach, got none")
	}
}

func TestViolationAny(t *testing.T) {
	if (Violation{}).Any() {
		t.Fatalf("zero-value violation should report Any() == false")
	}
	if !(Violation{AboveMaxAltitude: true}).Any() {
		t.Fatalf("expected Any() == true")
	}
}

func TestNearestBoundaryPoint(t *testing.T) {
	f := squareFence()
	lat, lon, ok := NearestBoundaryPoint(f, TestPoint{Lat: 0.9, Lon: 0.9})
	if !ok {
		t.Fatalf("expected a nearest point")
	}
	if lat != 1 || lon != 1 {
		t.Fatalf("expected nearest vertex (1,1), got (%v,%v)", lat, lon)
	}
}

func TestNearestBoundaryPointNoPolygon(t *testing.T) {
	_, _, ok := NearestBoundaryPoint(Fence{}, TestPoint{})
	if ok {
		t.Fatalf("expected ok=false without a polygon")
	}
}

func TestDistanceMetersZeroForSamePoint(t *testing.T) {
	if d := DistanceMeters(10, 20, 10, 20); d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
}

func TestDistanceMetersApproximatelyCorrect(t *testing.T) {
	// One degree of latitude is approximately 111.32km.
	d := DistanceMeters(0, 0, 1, 0)
	if math.Abs(d-111320) > 2000 {
		t.Fatalf("expected ~111320m, got %v", d)
	}
}

func TestBrakingDistance(t *testing.T) {
	if d := BrakingDistance(10, 2); d != 25 {
		t.Fatalf("expected 25, got %v", d)
	}
	if d := BrakingDistance(10, 0); d != 0 {
		t.Fatalf("expected 0 decel to report 0 distance, got %v", d)
	}
}

func TestPredictTestPointRotaryUsesBraking(t *testing.T) {
	tp := PredictTestPoint(0, 0, 50, 0, 10, 0, true, 60, 2, 2)
	if tp.Lat <= 0 {
		t.Fatalf("expected a positive latitude offset heading due north, got %v", tp.Lat)
	}
}

func TestPredictTestPointFixedWingUsesRadius(t *testing.T) {
	rotary := PredictTestPoint(0, 0, 50, math.Pi/2, 10, 0, true, 60, 2, 2)
	fixedWing := PredictTestPoint(0, 0, 50, math.Pi/2, 10, 0, false, 60, 2, 2)
	if rotary.Lon == fixedWing.Lon {
		t.Fatalf("expected rotary braking distance and fixed-wing radius to differ")
	}
}
