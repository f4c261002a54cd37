package brep

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestRegionSubdivide(t *testing.T) {
	for _, r := range []Region{
		NewRegion3(r3.Vec{X: -1, Y: -2, Z: -3}, r3.Vec{X: 1, Y: 2, Z: 3}),
		NewRegion2(r3.Vec{X: -1, Y: 0}, r3.Vec{X: 0.5, Y: 0.75}, 0.5),
	} {
		r.Level = 2
		children := r.Subdivide()
		if len(children) != r.Corners() {
			t.Fatalf("%v: got %d children", r, len(children))
		}
		for i, c := range children {
			if c.Level != 1 || c.Dim() != r.Dim() {
				t.Errorf("child %d: level %d dim %d", i, c.Level, c.Dim())
			}
			if !r.ContainsRegion(c) {
				t.Errorf("child %d %v escapes %v", i, c, r)
			}
			// Child i touches parent corner i.
			if c.Corner(i) != r.Corner(i) {
				t.Errorf("child %d corner %v, want %v", i, c.Corner(i), r.Corner(i))
			}
			if p := c.Parent(i); p.Lower != r.Lower || p.Upper != r.Upper || p.Level != r.Level {
				t.Errorf("child %d parent %v, want %v", i, p, r)
			}
			// Siblings meet exactly at the shared midpoint.
			if c.Corner(r.Corners()-1-i) != r.Center() {
				t.Errorf("child %d does not reach the center", i)
			}
		}
	}
}

func TestRegion2Perp(t *testing.T) {
	r := NewRegion2(r3.Vec{X: 1, Y: 1, Z: 9}, r3.Vec{Z: -4}, 0.25)
	if r.Lower != (r3.Vec{Z: 0.25}) || r.Upper != (r3.Vec{X: 1, Y: 1, Z: 0.25}) {
		t.Fatalf("bad 2D bounds %v %v", r.Lower, r.Upper)
	}
	if r.Size().Z != 0 || r.Corners() != 4 {
		t.Fatal("2D region has depth")
	}
	if !r.Contains(r3.Vec{X: 0.5, Y: 0.5, Z: 100}) {
		t.Fatal("2D containment should ignore Z")
	}
}

func TestRegionWithResolution(t *testing.T) {
	r := NewRegion3(r3.Vec{}, r3.Vec{X: 1, Y: 0.5, Z: 0.25})
	for _, test := range []struct {
		minFeature float64
		level      int
	}{
		{2, 0},
		{1, 0},
		{0.5, 1},
		{0.3, 2},
		{0.125, 3},
	} {
		if got := r.WithResolution(test.minFeature).Level; got != test.level {
			t.Errorf("min feature %v: want level %d, got %d", test.minFeature, test.level, got)
		}
	}
}
