package expr

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrTypeInvalidShape is the error type returned by shape constructors
// given out of range parameters.
const ErrTypeInvalidShape = "invalid_shape"

func shapeErr(msg string) error {
	return errors.New(msg).WithType(ErrTypeInvalidShape)
}

// Sphere returns the signed distance field of a sphere of radius r centered at the origin.
func Sphere(r float32) (Tree, error) {
	if r <= 0 {
		return Tree{}, shapeErr("zero or negative sphere radius")
	}
	return Sub(Sqrt(Add(Add(Square(X()), Square(Y())), Square(Z()))), Const(r)), nil
}

// Circle returns the 2D signed distance field of a circle of radius r centered at the origin.
func Circle(r float32) (Tree, error) {
	if r <= 0 {
		return Tree{}, shapeErr("zero or negative circle radius")
	}
	return Sub(Hypot(X(), Y()), Const(r)), nil
}

// Box returns the exact signed distance field of an axis aligned box
// centered at the origin with the given dimensions.
func Box(dims r3.Vec) (Tree, error) {
	if dims.X <= 0 || dims.Y <= 0 || dims.Z <= 0 {
		return Tree{}, shapeErr("zero or negative box dimension")
	}
	qx := Sub(Abs(X()), Const(float32(dims.X/2)))
	qy := Sub(Abs(Y()), Const(float32(dims.Y/2)))
	qz := Sub(Abs(Z()), Const(float32(dims.Z/2)))
	zero := Const(0)
	outside := Sqrt(Add(Add(
		Square(Max(qx, zero)),
		Square(Max(qy, zero))),
		Square(Max(qz, zero))))
	inside := Min(Max(qx, Max(qy, qz)), zero)
	return Add(outside, inside), nil
}

// BoxMitered returns the bound of an axis aligned box as the maximum of
// its six half spaces. Its interval evaluation prunes well.
func BoxMitered(lower, upper r3.Vec) (Tree, error) {
	if lower.X >= upper.X || lower.Y >= upper.Y || lower.Z >= upper.Z {
		return Tree{}, shapeErr("box lower bound not below upper bound")
	}
	x, y, z := X(), Y(), Z()
	return Max(
		Max(Sub(Const(float32(lower.X)), x), Sub(x, Const(float32(upper.X)))),
		Max(
			Max(Sub(Const(float32(lower.Y)), y), Sub(y, Const(float32(upper.Y)))),
			Max(Sub(Const(float32(lower.Z)), z), Sub(z, Const(float32(upper.Z)))),
		),
	), nil
}

// Rectangle returns the 2D bound of an axis aligned rectangle as the
// maximum of its four half planes.
func Rectangle(lower, upper r3.Vec) (Tree, error) {
	if lower.X >= upper.X || lower.Y >= upper.Y {
		return Tree{}, shapeErr("rectangle lower bound not below upper bound")
	}
	x, y := X(), Y()
	return Max(
		Max(Sub(Const(float32(lower.X)), x), Sub(x, Const(float32(upper.X)))),
		Max(Sub(Const(float32(lower.Y)), y), Sub(y, Const(float32(upper.Y)))),
	), nil
}

// Torus returns a torus around the Z axis with the given major and minor radii.
func Torus(greater, lesser float32) (Tree, error) {
	if lesser <= 0 || greater <= 0 {
		return Tree{}, shapeErr("zero or negative torus radius")
	}
	if lesser >= greater {
		return Tree{}, shapeErr("torus minor radius must be smaller than major radius")
	}
	qx := Sub(Hypot(X(), Y()), Const(greater))
	return Sub(Hypot(qx, Z()), Const(lesser)), nil
}

// Cylinder returns a capped cylinder of radius r and height h along the Z axis
// centered at the origin.
func Cylinder(r, h float32) (Tree, error) {
	if r <= 0 || h <= 0 {
		return Tree{}, shapeErr("zero or negative cylinder dimension")
	}
	radial := Sub(Hypot(X(), Y()), Const(r))
	axial := Sub(Abs(Z()), Const(h/2))
	return Max(radial, axial), nil
}

// Plane returns the half space n·p - d <= 0. n need not be normalized
// but must be nonzero.
func Plane(n r3.Vec, d float64) (Tree, error) {
	l := r3.Norm(n)
	if l == 0 {
		return Tree{}, shapeErr("zero plane normal")
	}
	n = r3.Scale(1/l, n)
	t := Add(Add(Scale(X(), float32(n.X)), Scale(Y(), float32(n.Y))), Scale(Z(), float32(n.Z)))
	return Sub(t, Const(float32(d))), nil
}

// Translate moves the shape t by offset.
func Translate(t Tree, offset r3.Vec) Tree {
	return t.Remap(
		Sub(X(), Const(float32(offset.X))),
		Sub(Y(), Const(float32(offset.Y))),
		Sub(Z(), Const(float32(offset.Z))),
	)
}
