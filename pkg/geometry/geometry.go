// Package geometry provides the small amount of survey math shared by the
// conversion engine: angular deltas on compass bearings and projection of
// taped distances onto the horizontal and vertical planes.
package geometry

import (
	"math"

	"github.com/soniakeys/unit"
)

const metersPerFoot = 0.3048

// AngleDelta returns the smallest absolute difference in degrees between
// two compass angles, accounting for wrap-around (350 vs 10 is 20).
func AngleDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// NormalizeAzimuth wraps an angle in degrees into [0, 360).
func NormalizeAzimuth(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// HorizontalDistance projects a taped distance onto the horizontal plane
// given its inclination in degrees.
func HorizontalDistance(incDeg, dist float64) float64 {
	return dist * math.Cos(unit.AngleFromDeg(incDeg).Rad())
}

// VerticalDistance projects a taped distance onto the vertical axis given
// its inclination in degrees. The result is signed: negative inclinations
// yield negative offsets.
func VerticalDistance(incDeg, dist float64) float64 {
	return dist * math.Sin(unit.AngleFromDeg(incDeg).Rad())
}

func MetersToFeet(m float64) float64 { return m / metersPerFoot }

func FeetToMeters(ft float64) float64 { return ft * metersPerFoot }
