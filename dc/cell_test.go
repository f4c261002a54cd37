package dc

import (
	"math"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/soypat/brep"
	"github.com/soypat/brep/eval"
	"github.com/soypat/brep/expr"
	"gonum.org/v1/gonum/spatial/r3"
)

func sphereDeck(t *testing.T) *eval.Deck {
	t.Helper()
	s, err := expr.Sphere(1)
	if err != nil {
		t.Fatal(err)
	}
	return eval.NewDeck(s)
}

func newCell(t *testing.T, p *Pool) (Handle, *Cell) {
	t.Helper()
	h, c, err := p.NewCell()
	if err != nil {
		t.Fatal(err)
	}
	return h, c
}

func TestEvalIntervalSphere(t *testing.T) {
	deck := sphereDeck(t)
	ev := eval.NewEvaluator(deck, nil)
	pool := NewPool()
	for _, test := range []struct {
		name   string
		region brep.Region
		want   State
	}{
		{"outside", brep.NewRegion3(r3.Vec{X: 2, Y: 2, Z: 2}, r3.Vec{X: 3, Y: 3, Z: 3}), Empty},
		{"inside", brep.NewRegion3(r3.Vec{X: -0.1, Y: -0.1, Z: -0.1}, r3.Vec{X: 0.1, Y: 0.1, Z: 0.1}), Filled},
		{"surface", brep.NewRegion3(r3.Vec{X: 0.9, Y: -0.05, Z: -0.05}, r3.Vec{X: 1, Y: 0.05, Z: 0.05}), Ambiguous},
	} {
		_, c := newCell(t, pool)
		tape, err := c.EvalInterval(ev, deck.Tape(), test.region)
		if err != nil {
			t.Fatal(err)
		}
		if c.State() != test.want {
			t.Errorf("%s: want %v, got %v", test.name, test.want, c.State())
		}
		if tape == nil {
			t.Errorf("%s: nil tape", test.name)
		}
	}
}

func TestEvalIntervalTwice(t *testing.T) {
	deck := sphereDeck(t)
	ev := eval.NewEvaluator(deck, nil)
	_, c := newCell(t, NewPool())
	region := brep.NewRegion3(r3.Vec{X: 2, Y: 2, Z: 2}, r3.Vec{X: 3, Y: 3, Z: 3})
	if _, err := c.EvalInterval(ev, deck.Tape(), region); err != nil {
		t.Fatal(err)
	}
	if _, err := c.EvalInterval(ev, deck.Tape(), region); !errors.IsType(err, ErrTypePrecondition) {
		t.Fatalf("want precondition error, got %v", err)
	}
}

func TestEvalLeafSphere(t *testing.T) {
	deck := sphereDeck(t)
	ev := eval.NewEvaluator(deck, nil)
	pool := NewPool()
	_, c := newCell(t, pool)
	region := brep.NewRegion3(r3.Vec{X: 0.9, Y: -0.05, Z: -0.05}, r3.Vec{X: 1, Y: 0.05, Z: 0.05})
	tape, err := c.EvalInterval(ev, deck.Tape(), region)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.EvalLeaf(ev, tape, region, pool, Neighbors{}); err != nil {
		t.Fatal(err)
	}
	if c.State() != Ambiguous {
		t.Fatalf("want ambiguous, got %v", c.State())
	}
	mask, err := c.CornerMask()
	if err != nil {
		t.Fatal(err)
	}
	if mask != 0b01010101 {
		t.Errorf("want corners with low x filled, got %08b", mask)
	}
	if ok, _ := c.IsManifold(); !ok {
		t.Error("leaf not manifold")
	}
	if n, _ := c.VertexCount(); n != 1 {
		t.Errorf("want 1 vertex, got %d", n)
	}
	if r, _ := c.Rank(); r != 1 {
		t.Errorf("want rank 1, got %d", r)
	}
	v, err := c.Vert(0)
	if err != nil {
		t.Fatal(err)
	}
	if !region.Contains(v) {
		t.Errorf("vertex %v outside region", v)
	}
	if d := math.Abs(r3.Norm(v) - 1); d > 1e-2 {
		t.Errorf("vertex %v is %v away from the sphere", v, d)
	}
	vec, err := c.Intersection(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if vec == nil || vec.Len() != 1 {
		t.Fatal("missing intersection on x edge")
	}
	if it := vec.Items()[0]; math.Abs(r3.Norm(it.Pos)-1) > 1e-3 || it.Normal.X <= 0 {
		t.Errorf("bad intersection %+v", it)
	}
	if _, err := c.Vert(1); !errors.IsType(err, ErrTypePrecondition) {
		t.Errorf("want precondition error, got %v", err)
	}
	if residual, err := c.FindVertex(0); err != nil || residual > 1e-3 {
		t.Errorf("FindVertex: residual %v err %v", residual, err)
	}
}

func TestEvalLeafNormals(t *testing.T) {
	x, y, z := expr.X(), expr.Y(), expr.Z()
	for _, test := range []struct {
		name     string
		field    expr.Tree
		region   brep.Region
		unitNorm bool
	}{
		{
			name:     "squared distance",
			field:    expr.AddConst(expr.Add(expr.Add(expr.Square(x), expr.Square(y)), expr.Square(z)), -1),
			region:   brep.NewRegion3(r3.Vec{X: 0.9, Y: -0.05, Z: -0.05}, r3.Vec{X: 1, Y: 0.05, Z: 0.05}),
			unitNorm: true,
		},
		{
			name:   "step",
			field:  expr.Compare(x, expr.Const(0.5)),
			region: brep.NewRegion3(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}),
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			deck := eval.NewDeck(test.field)
			ev := eval.NewEvaluator(deck, nil)
			pool := NewPool()
			_, c := newCell(t, pool)
			if err := c.EvalLeaf(ev, deck.Tape(), test.region, pool, Neighbors{}); err != nil {
				t.Fatal(err)
			}
			if mask, err := c.CornerMask(); err != nil || mask != 0b01010101 {
				t.Fatalf("mask %08b err %v", mask, err)
			}
			for _, corners := range [][2]int{{0, 1}, {2, 3}, {4, 5}, {6, 7}} {
				vec, err := c.Intersection(corners[0], corners[1])
				if err != nil || vec == nil {
					t.Fatalf("edge %v: %v %v", corners, vec, err)
				}
				for _, it := range vec.Items() {
					n := r3.Norm(it.Normal)
					switch {
					case test.unitNorm && math.Abs(n-1) > 1e-6:
						t.Errorf("edge %v: normal %v has length %v", corners, it.Normal, n)
					case test.unitNorm && math.Abs(it.Value) > 1e-3:
						t.Errorf("edge %v: distance %v", corners, it.Value)
					case !test.unitNorm && it.Normal != (r3.Vec{}):
						t.Errorf("edge %v: want zero normal, got %v", corners, it.Normal)
					}
				}
			}
			v, err := c.Vert(0)
			if err != nil {
				t.Fatal(err)
			}
			if !test.region.Contains(v) {
				t.Errorf("vertex %v outside region", v)
			}
			if !test.unitNorm && math.Abs(v.X-0.5) > 1e-3 {
				t.Errorf("vertex %v away from the mass point", v)
			}
		})
	}
}

func TestAbandonLeaf(t *testing.T) {
	deck := sphereDeck(t)
	ev := eval.NewEvaluator(deck, nil)
	pool := NewPool()
	_, c := newCell(t, pool)
	region := brep.NewRegion3(r3.Vec{X: 0.9, Y: -0.05, Z: -0.05}, r3.Vec{X: 1, Y: 0.05, Z: 0.05})
	if err := c.EvalLeaf(ev, deck.Tape(), region, pool, Neighbors{}); err != nil {
		t.Fatal(err)
	}
	vec, err := c.Intersection(0, 1)
	if err != nil || vec == nil {
		t.Fatal("missing intersection")
	}
	vec.Retain()
	defer vec.Release()

	c.abandonLeaf(pool, Unknown)
	if c.State() != Unknown || c.Leaf() != nil {
		t.Fatalf("cell left in state %v with leaf %v", c.State(), c.Leaf())
	}
	if st := pool.Stats(); st.Leaves != 0 {
		t.Fatalf("leaf not released: %+v", st)
	}
	if vec.Refs() != 1 {
		t.Fatalf("abandoned leaf kept intersections: %d refs", vec.Refs())
	}
	// The cell can be evaluated again.
	if err := c.EvalLeaf(ev, deck.Tape(), region, pool, Neighbors{}); err != nil {
		t.Fatal(err)
	}
}

func TestEvalLeafUniform(t *testing.T) {
	deck := sphereDeck(t)
	ev := eval.NewEvaluator(deck, nil)
	pool := NewPool()
	_, c := newCell(t, pool)
	// Uniform corners produce no leaf.
	region := brep.NewRegion3(r3.Vec{X: -0.2, Y: -0.2, Z: -0.2}, r3.Vec{X: 0.2, Y: 0.2, Z: 0.2})
	if err := c.EvalLeaf(ev, deck.Tape(), region, pool, Neighbors{}); err != nil {
		t.Fatal(err)
	}
	if c.State() != Filled || c.Leaf() != nil {
		t.Fatalf("want filled cell without leaf, got %v", c.State())
	}
	if mask, _ := c.CornerMask(); mask != 0xff {
		t.Fatalf("want full mask, got %08b", mask)
	}
}

func TestBranchAccessors(t *testing.T) {
	pool := NewPool()
	_, c := newCell(t, pool)
	region := brep.NewRegion3(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	if err := c.Subdivide(pool, region); err != nil {
		t.Fatal(err)
	}
	if c.State() != Branch {
		t.Fatalf("want branch, got %v", c.State())
	}
	if _, err := c.CornerMask(); !errors.IsType(err, ErrTypePrecondition) {
		t.Errorf("CornerMask: want precondition error, got %v", err)
	}
	if _, err := c.Rank(); !errors.IsType(err, ErrTypePrecondition) {
		t.Errorf("Rank: want precondition error, got %v", err)
	}
	if _, err := c.Vert(0); !errors.IsType(err, ErrTypePrecondition) {
		t.Errorf("Vert: want precondition error, got %v", err)
	}
	if _, err := c.FindVertex(0); !errors.IsType(err, ErrTypePrecondition) {
		t.Errorf("FindVertex: want precondition error, got %v", err)
	}
	if err := c.Subdivide(pool, region); !errors.IsType(err, ErrTypePrecondition) {
		t.Errorf("Subdivide: want precondition error, got %v", err)
	}
	// Children tile the parent.
	var volume float64
	for i := 0; i < 8; i++ {
		child := pool.Cell(c.Child(i))
		if child == nil || child.State() != Unknown {
			t.Fatalf("child %d not allocated", i)
		}
		r := child.Region()
		if !region.ContainsRegion(r) {
			t.Errorf("child %d region %v outside parent", i, r)
		}
		s := r.Size()
		volume += s.X * s.Y * s.Z
	}
	if volume != 1 {
		t.Errorf("children volume %v, want 1", volume)
	}
	ev := eval.NewEvaluator(sphereDeck(t), nil)
	_, err := c.CollectChildren(ev, ev.Deck().Tape(), region, pool, 1e-3)
	if !errors.IsType(err, ErrTypeChildrenPending) {
		t.Fatalf("want children pending error, got %v", err)
	}
}

// buildPlane evaluates the children of a subdivided unit cube for the
// plane x = 0.3, sharing intersections between neighbors.
func buildPlane(t *testing.T, pool *Pool) (*eval.Evaluator, *Cell, brep.Region) {
	t.Helper()
	deck := eval.NewDeck(expr.Sub(expr.X(), expr.Const(0.3)))
	ev := eval.NewEvaluator(deck, nil)
	_, c := newCell(t, pool)
	region := brep.NewRegion3(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	if err := c.Subdivide(pool, region); err != nil {
		t.Fatal(err)
	}
	var root Neighbors
	for i, r := range region.Subdivide() {
		nb := root.Push(i, c, pool)
		if err := pool.Cell(c.Child(i)).EvalLeaf(ev, deck.Tape(), r, pool, nb); err != nil {
			t.Fatal(err)
		}
	}
	return ev, c, region
}

func TestNeighborsShareIntersections(t *testing.T) {
	pool := NewPool()
	_, c, _ := buildPlane(t, pool)
	c0, c2 := pool.Cell(c.Child(0)), pool.Cell(c.Child(2))
	// Edge 2->3 of child 0 is edge 0->1 of child 2.
	a, err := c0.Intersection(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c2.Intersection(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if a == nil || a != b {
		t.Fatal("neighbors do not share the intersection list")
	}
	if a.Refs() < 2 {
		t.Fatalf("shared list holds %d references", a.Refs())
	}
	if pool.Cell(c.Child(1)).State() != Empty {
		t.Fatal("child beyond the plane should be empty")
	}
}

func TestNeighborsPush(t *testing.T) {
	pool := NewPool()
	_, c := newCell(t, pool)
	region := brep.NewRegion2(r3.Vec{}, r3.Vec{X: 1, Y: 1}, 0)
	if err := c.Subdivide(pool, region); err != nil {
		t.Fatal(err)
	}
	var root Neighbors
	nb := root.Push(0, c, pool)
	// Offset (+1, 0) is sibling 1, offset (0, +1) is sibling 2.
	if nb[5] != pool.Cell(c.Child(1)) || nb[7] != pool.Cell(c.Child(2)) || nb[8] != pool.Cell(c.Child(3)) {
		t.Fatal("siblings not found")
	}
	// Offsets outside the parent have no cell.
	if nb[3] != nil || nb[1] != nil || nb[0] != nil {
		t.Fatal("unexpected neighbor outside the parent")
	}
}

func TestCollectChildrenPlane(t *testing.T) {
	pool := NewPool()
	ev, c, region := buildPlane(t, pool)
	ok, err := c.CollectChildren(ev, ev.Deck().Tape(), region, pool, 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("plane did not collapse")
	}
	if c.State() != Ambiguous {
		t.Fatalf("want ambiguous, got %v", c.State())
	}
	if mask, _ := c.CornerMask(); mask != 0b01010101 {
		t.Errorf("want mask 01010101, got %08b", mask)
	}
	if lvl, _ := c.Level(); lvl != 1 {
		t.Errorf("want level 1, got %d", lvl)
	}
	if r, _ := c.Rank(); r != 1 {
		t.Errorf("want rank 1, got %d", r)
	}
	v, err := c.Vert(0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(v.X-0.3) > 1e-4 {
		t.Errorf("vertex %v not on plane", v)
	}
	if vec, _ := c.Intersection(0, 1); vec == nil {
		t.Error("intersection not inherited from child")
	}
	st := pool.Stats()
	if st.Cells != 1 || st.Leaves != 1 {
		t.Errorf("children not released: %+v", st)
	}
	c.ReleaseTo(pool)
	if st := pool.Stats(); st.Leaves != 0 || c.State() != Unknown {
		t.Errorf("release left %+v", st)
	}
}

func TestCollectChildrenUniform(t *testing.T) {
	deck := sphereDeck(t)
	ev := eval.NewEvaluator(deck, nil)
	pool := NewPool()
	_, c := newCell(t, pool)
	region := brep.NewRegion3(r3.Vec{X: 2, Y: 2, Z: 2}, r3.Vec{X: 3, Y: 3, Z: 3})
	if err := c.Subdivide(pool, region); err != nil {
		t.Fatal(err)
	}
	for i, r := range region.Subdivide() {
		if _, err := pool.Cell(c.Child(i)).EvalInterval(ev, deck.Tape(), r); err != nil {
			t.Fatal(err)
		}
	}
	ok, err := c.CollectChildren(ev, deck.Tape(), region, pool, 1e-3)
	if err != nil || !ok || c.State() != Empty {
		t.Fatalf("want empty collapse, got %v %v %v", ok, err, c.State())
	}
	if st := pool.Stats(); st.Cells != 1 {
		t.Fatalf("children not released: %+v", st)
	}
}

func TestCollectChildrenRejectsSplitCorners(t *testing.T) {
	// Two spheres on opposite corners of the cell produce a corner mask
	// with two separate patches, which must not collapse into one vertex.
	s1, _ := expr.Sphere(0.3)
	s2, _ := expr.Sphere(0.3)
	tree := expr.Min(
		expr.Translate(s1, r3.Vec{}),
		expr.Translate(s2, r3.Vec{X: 1, Y: 1, Z: 1}),
	)
	deck := eval.NewDeck(tree)
	ev := eval.NewEvaluator(deck, nil)
	pool := NewPool()
	_, c := newCell(t, pool)
	region := brep.NewRegion3(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	if err := c.Subdivide(pool, region); err != nil {
		t.Fatal(err)
	}
	var root Neighbors
	for i, r := range region.Subdivide() {
		nb := root.Push(i, c, pool)
		if err := pool.Cell(c.Child(i)).EvalLeaf(ev, deck.Tape(), r, pool, nb); err != nil {
			t.Fatal(err)
		}
	}
	ok, err := c.CollectChildren(ev, deck.Tape(), region, pool, 1)
	if err != nil {
		t.Fatal(err)
	}
	if ok || c.State() != Branch {
		t.Fatal("non manifold cell collapsed")
	}
}

func TestSetIntersectionConflict(t *testing.T) {
	deck := sphereDeck(t)
	ev := eval.NewEvaluator(deck, nil)
	pool := NewPool()
	_, c := newCell(t, pool)
	region := brep.NewRegion3(r3.Vec{X: 0.9, Y: -0.05, Z: -0.05}, r3.Vec{X: 1, Y: 0.05, Z: 0.05})
	if err := c.EvalLeaf(ev, deck.Tape(), region, pool, Neighbors{}); err != nil {
		t.Fatal(err)
	}
	e := Dim3.Edge(0, 1)
	held, _ := c.IntersectionEdge(e)
	if err := c.SetIntersection(e, held); err != nil {
		t.Fatalf("storing the held list: %v", err)
	}
	other := NewIntersectionVec()
	defer other.Release()
	if err := c.SetIntersection(e, other); !errors.IsType(err, ErrTypeIntersection) {
		t.Fatalf("want intersection conflict, got %v", err)
	}
	if other.Refs() != 1 {
		t.Fatalf("rejected list kept a reference: %d", other.Refs())
	}
	// An empty slot accepts a list.
	free := Dim3.Edge(1, 0)
	if err := c.SetIntersection(free, other); err != nil {
		t.Fatal(err)
	}
}
