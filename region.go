package brep

import (
	"fmt"
	"math"

	"github.com/soypat/brep/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Region is an axis aligned box that is subdivided into 2^dim equal children.
// For 2 dimensional regions the Z components of Lower and Upper are both
// equal to Perp.
type Region struct {
	Lower, Upper r3.Vec
	// Perp is the fixed Z coordinate of a 2D region. Unused in 3D.
	Perp float64
	// Level is the number of subdivisions left before reaching
	// the minimum feature size. Cells at level 0 are evaluated as leaves.
	Level int
	dim   int
}

// NewRegion3 returns a 3D region spanning lower to upper.
func NewRegion3(lower, upper r3.Vec) Region {
	return Region{Lower: d3.MinElem(lower, upper), Upper: d3.MaxElem(lower, upper), dim: 3}
}

// NewRegion2 returns a 2D region in the plane z=perp. The Z components
// of lower and upper are ignored.
func NewRegion2(lower, upper r3.Vec, perp float64) Region {
	lo := d3.MinElem(lower, upper)
	hi := d3.MaxElem(lower, upper)
	lo.Z, hi.Z = perp, perp
	return Region{Lower: lo, Upper: hi, Perp: perp, dim: 2}
}

// Dim returns the region's dimensionality, 2 or 3.
func (r Region) Dim() int { return r.dim }

// Corners returns the number of corners of the region (2^dim).
func (r Region) Corners() int { return 1 << r.dim }

// Size returns the region's extents. The Z extent of a 2D region is zero.
func (r Region) Size() r3.Vec { return r3.Sub(r.Upper, r.Lower) }

// Center returns the midpoint of the region.
func (r Region) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(r.Lower, r.Upper))
}

// Corner returns the i'th corner of the region. Bit k of i selects
// the upper bound along axis k.
func (r Region) Corner(i int) r3.Vec {
	c := r.Lower
	for k := 0; k < r.dim; k++ {
		if i&(1<<k) != 0 {
			d3.SetAxis(&c, k, d3.Axis(r.Upper, k))
		}
	}
	return c
}

// Contains reports whether p lies within the region, bounds included.
// Only the region's dimensions are checked.
func (r Region) Contains(p r3.Vec) bool {
	for k := 0; k < r.dim; k++ {
		v := d3.Axis(p, k)
		if v < d3.Axis(r.Lower, k) || v > d3.Axis(r.Upper, k) {
			return false
		}
	}
	return true
}

// ContainsRegion reports whether o lies entirely within r.
func (r Region) ContainsRegion(o Region) bool {
	return r.Contains(o.Lower) && r.Contains(o.Upper)
}

// Subdivide splits the region into 2^dim children. Child i takes the
// upper half of axis k when bit k of i is set. The midpoint is shared by
// both halves so the children tile the parent exactly.
func (r Region) Subdivide() []Region {
	mid := r.Center()
	out := make([]Region, r.Corners())
	for i := range out {
		lo, hi := r.Lower, r.Upper
		for k := 0; k < r.dim; k++ {
			m := d3.Axis(mid, k)
			if i&(1<<k) != 0 {
				d3.SetAxis(&lo, k, m)
			} else {
				d3.SetAxis(&hi, k, m)
			}
		}
		out[i] = Region{Lower: lo, Upper: hi, Perp: r.Perp, Level: r.Level - 1, dim: r.dim}
	}
	return out
}

// Parent returns the region for which r is child i.
func (r Region) Parent(i int) Region {
	lo, hi := r.Lower, r.Upper
	for k := 0; k < r.dim; k++ {
		size := d3.Axis(r.Upper, k) - d3.Axis(r.Lower, k)
		if i&(1<<k) != 0 {
			d3.SetAxis(&lo, k, d3.Axis(lo, k)-size)
		} else {
			d3.SetAxis(&hi, k, d3.Axis(hi, k)+size)
		}
	}
	return Region{Lower: lo, Upper: hi, Perp: r.Perp, Level: r.Level + 1, dim: r.dim}
}

// WithResolution returns a copy of the region whose Level is the number of
// subdivisions needed for the largest axis to shrink below minFeature.
func (r Region) WithResolution(minFeature float64) Region {
	if minFeature <= 0 {
		panic("minFeature must be positive")
	}
	size := r.Size()
	longest := 0.0
	for k := 0; k < r.dim; k++ {
		longest = math.Max(longest, d3.Axis(size, k))
	}
	level := 0
	for longest > minFeature {
		longest /= 2
		level++
	}
	r.Level = level
	return r
}

func (r Region) String() string {
	return fmt.Sprintf("Region%dD{%v %v L%d}", r.dim, r.Lower, r.Upper, r.Level)
}
