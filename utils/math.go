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

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ClampMagnitude bounds v to [-limit, limit].
func ClampMagnitude(v, limit float64) float64 {
	return Clamp(v, -math.Abs(limit), math.Abs(limit))
}

// ApplyDeadband returns zero when |v| is within the deadband, v otherwise.
func ApplyDeadband(v, deadband float64) float64 {
	if math.Abs(v) < deadband {
		return 0
	}
	return v
}

// CopySignFloor raises |v| to at least floor while keeping its sign. Zero stays zero.
func CopySignFloor(v, floor float64) float64 {
	if v == 0 || math.Abs(v) >= floor {
		return v
	}
	return math.Copysign(floor, v)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
