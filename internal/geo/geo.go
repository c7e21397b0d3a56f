// Package geo provides great-circle geometry helpers for route and
// signal calculations. All distances are in kilometers.
package geo

import "math"

const earthRadiusKm = 6371

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Distance calculates the haversine distance between two points in kilometers.
func Distance(a, b Point) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	deltaPhi := (b.Lat - a.Lat) * math.Pi / 180
	deltaLambda := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// PolylineLength calculates the total length of an ordered point sequence
// in kilometers. Sequences of length 0 or 1 have length 0.
func PolylineLength(pts []Point) float64 {
	var total float64
	for i := 1; i < len(pts); i++ {
		total += Distance(pts[i-1], pts[i])
	}
	return total
}

// Bearing calculates the bearing from a to b in degrees (0-360).
func Bearing(a, b Point) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	deltaLambda := (b.Lon - a.Lon) * math.Pi / 180

	x := math.Sin(deltaLambda) * math.Cos(phi2)
	y := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLambda)

	bearing := math.Atan2(x, y) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// Interpolate linearly interpolates between two points. fraction 0 returns a,
// fraction 1 returns b. Good enough for the short segments routes are made of.
func Interpolate(a, b Point, fraction float64) Point {
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*fraction,
		Lon: a.Lon + (b.Lon-a.Lon)*fraction,
	}
}

// NearestIndex finds the index of the point in pts closest to target.
// Returns 0 for an empty slice.
func NearestIndex(pts []Point, target Point) int {
	minDist := math.MaxFloat64
	minIdx := 0

	for i, p := range pts {
		d := Distance(p, target)
		if d < minDist {
			minDist = d
			minIdx = i
		}
	}

	return minIdx
}

// Clamp constrains a value between min and max.
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
