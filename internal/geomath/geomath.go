// Package geomath implements the spherical-earth primitives the rest of
// the engine builds on: lat/lng <-> ECEF Cartesian conversion and
// great-circle distance.
package geomath

import "math"

// LatLng is a coordinate in degrees, used wherever a function needs to
// pass a point rather than two loose floats.
type LatLng struct {
	Lat, Lng float64
}

// EarthRadiusMeters is the spherical earth radius used throughout the
// engine. A sphere, not an ellipsoid, is accurate enough at walking and
// transit scale and keeps every downstream formula closed-form.
const EarthRadiusMeters = 6_371_000.0

// ToECEF converts a lat/lng in degrees to earth-centered, earth-fixed
// Cartesian coordinates on the unit-radius sphere scaled by
// EarthRadiusMeters. Non-finite input returns the origin rather than NaN,
// so a bad coordinate degrades to "no displacement" instead of poisoning
// downstream sums.
func ToECEF(latDeg, lngDeg float64) [3]float64 {
	if !isFinite(latDeg) || !isFinite(lngDeg) {
		return [3]float64{}
	}
	lat := latDeg * math.Pi / 180
	lng := lngDeg * math.Pi / 180
	cosLat := math.Cos(lat)
	return [3]float64{
		EarthRadiusMeters * cosLat * math.Cos(lng),
		EarthRadiusMeters * cosLat * math.Sin(lng),
		EarthRadiusMeters * math.Sin(lat),
	}
}

// FromECEF is the inverse of ToECEF.
func FromECEF(xyz [3]float64) (latDeg, lngDeg float64) {
	x, y, z := xyz[0], xyz[1], xyz[2]
	r := math.Sqrt(x*x + y*y + z*z)
	if r == 0 {
		return 0, 0
	}
	lat := math.Asin(clamp(z/r, -1, 1))
	lng := math.Atan2(y, x)
	return lat * 180 / math.Pi, lng * 180 / math.Pi
}

// GreatCircleMeters computes the great-circle distance between two
// lat/lng points in degrees using the chord formula on the ECEF
// conversion above, so it shares exactly the same spherical model as
// ToECEF/FromECEF.
func GreatCircleMeters(lat1, lng1, lat2, lng2 float64) float64 {
	a := ToECEF(lat1, lng1)
	b := ToECEF(lat2, lng2)
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	chord := math.Sqrt(dx*dx + dy*dy + dz*dz)
	// chord = 2R sin(theta/2) => theta = 2 asin(chord/2R)
	half := clamp(chord/(2*EarthRadiusMeters), -1, 1)
	theta := 2 * math.Asin(half)
	return EarthRadiusMeters * theta
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
