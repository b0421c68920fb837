// Package geofence wraps github.com/paulmach/orb's planar geometry to
// answer the containment and distance queries spec §4.6's geofence
// monitor needs: distance-to-home, max-altitude, and polygon/circle
// containment. Polygon math itself is explicitly an external-library
// concern per spec §1 ("geofence polygon containment math (consumed
// as a library)") — this package is that consumption point, not a
// reimplementation.
package geofence

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Fence is a loaded geofence: an optional bounding polygon plus a
// max-altitude ceiling and max-distance-from-home circle, matching
// the persisted geofence polygon file named in spec §6.
type Fence struct {
	Polygon     orb.Polygon
	HasPolygon  bool
	MaxAltitude float64
	HasMaxAlt   bool
	MaxDistance float64
	HasMaxDist  bool
}

// TestPoint is a candidate position to test against the fence — the
// "predicted test point" spec §4.6 describes building from braking
// distance.
type TestPoint struct {
	Lat, Lon, Alt float64
}

// Violation describes which part of the fence, if any, a test point
// breaches.
type Violation struct {
	OutsidePolygon    bool
	AboveMaxAltitude  bool
	BeyondMaxDistance bool
}

// Any reports whether the violation carries any breach at all.
func (v Violation) Any() bool {
	return v.OutsidePolygon || v.AboveMaxAltitude || v.BeyondMaxDistance
}

// Check evaluates a test point against the fence, given the home
// position for the distance-from-home circle.
func Check(f Fence, p TestPoint, homeLat, homeLon float64) Violation {
	var v Violation

	if f.HasPolygon {
		pt := orb.Point{p.Lon, p.Lat}
		v.OutsidePolygon = !planar.PolygonContains(f.Polygon, pt)
	}

	if f.HasMaxAlt {
		v.AboveMaxAltitude = p.Alt > f.MaxAltitude
	}

	if f.HasMaxDist {
		d := haversineMeters(homeLat, homeLon, p.Lat, p.Lon)
		v.BeyondMaxDistance = d > f.MaxDistance
	}

	return v
}

// NearestBoundaryPoint finds the vertex of the fence polygon closest
// to p — used by the CLOSEST RTL sub-type and the breach-avoidance
// loiter setpoint (§4.8, §4.12).
func NearestBoundaryPoint(f Fence, p TestPoint) (lat, lon float64, ok bool) {
	if !f.HasPolygon || len(f.Polygon) == 0 {
		return 0, 0, false
	}
	ring := f.Polygon[0]
	best := math.MaxFloat64
	for _, v := range ring {
		d := haversineMeters(p.Lat, p.Lon, v[1], v[0])
		if d < best {
			best = d
			lat, lon = v[1], v[0]
			ok = true
		}
	}
	return lat, lon, ok
}

const earthRadiusMeters = 6371000.0

// DistanceMeters is the exported great-circle distance helper used by
// the RTL mode to decide when it has reached its resolved leg.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return haversineMeters(lat1, lon1, lat2, lon2)
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// BrakingDistance estimates the horizontal stopping distance for a
// rotary-wing vehicle decelerating at maxDecel from speed (§4.6):
// d = v^2 / (2*a).
func BrakingDistance(speedMS, maxDecelMS2 float64) float64 {
	if maxDecelMS2 <= 0 {
		return 0
	}
	return (speedMS * speedMS) / (2 * maxDecelMS2)
}

// VerticalBrakingDistance estimates the vertical stopping distance,
// same formula applied to climb/descent rate (§4.6).
func VerticalBrakingDistance(climbRateMS, maxVertDecelMS2 float64) float64 {
	return BrakingDistance(climbRateMS, maxVertDecelMS2)
}

// PredictTestPoint builds the predicted test point spec §4.6 requires:
// horizontal braking distance (or a fixed radius for fixed-wing) and
// vertical braking distance projected from the current position along
// the current ground-track heading.
func PredictTestPoint(lat, lon, alt, headingRad, groundSpeedMS, climbRateMS float64, rotary bool, fixedWingRadius float64, maxDecel, maxVertDecel float64) TestPoint {
	var horiz float64
	if rotary {
		horiz = BrakingDistance(groundSpeedMS, maxDecel)
	} else {
		horiz = fixedWingRadius
	}
	vert := VerticalBrakingDistance(climbRateMS, maxVertDecel)

	dLat := (horiz * math.Cos(headingRad)) / earthRadiusMeters * (180 / math.Pi)
	dLon := (horiz * math.Sin(headingRad)) / (earthRadiusMeters * math.Cos(lat*math.Pi/180)) * (180 / math.Pi)

	return TestPoint{Lat: lat + dLat, Lon: lon + dLon, Alt: alt + vert}
}
