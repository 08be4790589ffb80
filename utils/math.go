// Package utils contains small helpers shared across the machina packages.
package utils

import "math"

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Float64AlmostEqual compares two float64s and returns if the difference between them is less than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// WrapAngleDeg maps an angle in degrees into the range [-180, 180].
func WrapAngleDeg(deg float64) float64 {
	w := math.Mod(deg, 360)
	switch {
	case w > 180:
		w -= 360
	case w < -180:
		w += 360
	}
	return w
}

// AngleDiffDeg returns the signed shortest difference a-b between two angles, in degrees.
func AngleDiffDeg(a, b float64) float64 {
	return WrapAngleDeg(a - b)
}
