package d3

import (
	"math"

	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

// R3 vector manipulation routines shared by the evaluator and the cell tree.

// MinElem return a vector with the minimum components of two vectors.
func MinElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

// MaxElem return a vector with the maximum components of two vectors.
func MaxElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

// Clamp returns x with each component clamped to the range given by a and b.
func Clamp(x, a, b r3.Vec) r3.Vec {
	return r3.Vec{
		X: clamp(x.X, a.X, b.X),
		Y: clamp(x.Y, a.Y, b.Y),
		Z: clamp(x.Z, a.Z, b.Z),
	}
}

// IsFinite reports whether all components are neither NaN nor infinite.
func IsFinite(a r3.Vec) bool {
	return !math.IsNaN(a.X+a.Y+a.Z) && !math.IsInf(a.X+a.Y+a.Z, 0)
}

// Axis returns the k'th component of a (0=X, 1=Y, 2=Z).
func Axis(a r3.Vec, k int) float64 {
	switch k {
	case 0:
		return a.X
	case 1:
		return a.Y
	case 2:
		return a.Z
	}
	panic("axis out of range")
}

// SetAxis sets the k'th component of a.
func SetAxis(a *r3.Vec, k int, v float64) {
	switch k {
	case 0:
		a.X = v
	case 1:
		a.Y = v
	case 2:
		a.Z = v
	default:
		panic("axis out of range")
	}
}

// ToMS3 converts to the single precision vector used by the evaluators.
func ToMS3(a r3.Vec) ms3.Vec {
	return ms3.Vec{X: float32(a.X), Y: float32(a.Y), Z: float32(a.Z)}
}

// FromMS3 converts an evaluator vector to double precision.
func FromMS3(a ms3.Vec) r3.Vec {
	return r3.Vec{X: float64(a.X), Y: float64(a.Y), Z: float64(a.Z)}
}

// Clamp x between a and b, assume a <= b
func clamp(x, a, b float64) float64 {
	return math.Min(b, math.Max(x, a))
}
