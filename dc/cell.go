// Package dc implements the cell tree used for adaptive dual contouring:
// cells classified by interval arithmetic, leaves holding edge
// intersections and QEF vertices, and bottom-up merging of leaves.
package dc

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/soypat/brep"
	"github.com/soypat/brep/eval"
	"github.com/soypat/brep/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// searchSteps is the number of bisection steps used to locate an edge
// intersection.
const searchSteps = 16

// State classifies a cell.
type State uint8

const (
	// Unknown cells have not been evaluated.
	Unknown State = iota
	// Empty cells lie entirely outside the shape.
	Empty
	// Filled cells lie entirely inside the shape.
	Filled
	// Ambiguous cells may contain surface. Evaluated ambiguous cells hold a leaf
	// unless all of their corners share a sign.
	Ambiguous
	// Branch cells are subdivided into 2^dim children.
	Branch
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Empty:
		return "empty"
	case Filled:
		return "filled"
	case Ambiguous:
		return "ambiguous"
	case Branch:
		return "branch"
	}
	return "invalid"
}

// Cell is a node of a 2D quadtree or 3D octree. A branch owns its children
// and no leaf; any other cell owns at most one leaf. Cells are stored in a
// Pool and must not be copied.
type Cell struct {
	state    State
	children [8]Handle
	leafH    Handle
	leaf     *Leaf
	region   brep.Region
}

// State returns the cell's classification.
func (c *Cell) State() State { return c.state }

// Region returns the region the cell was last evaluated or subdivided over.
func (c *Cell) Region() brep.Region { return c.region }

// Child returns the handle of child i of a branch, or the nil handle.
func (c *Cell) Child(i int) Handle { return c.children[i] }

// Leaf returns the cell's leaf, or nil if it has none.
func (c *Cell) Leaf() *Leaf { return c.leaf }

// IsTerminal reports whether the cell is fully evaluated: Empty, Filled
// or Ambiguous with a leaf.
func (c *Cell) IsTerminal() bool {
	return c.state == Empty || c.state == Filled || (c.state == Ambiguous && c.leaf != nil)
}

func (c *Cell) dim() *Dim { return DimOf(c.region.Dim()) }

// EvalInterval classifies the cell over region with an interval
// evaluation of tape and returns the tape pruned to region. Cells whose
// evaluation may produce NaN are always Ambiguous.
func (c *Cell) EvalInterval(ev *eval.Evaluator, tape *eval.Tape, region brep.Region) (*eval.Tape, error) {
	if c.state != Unknown {
		return nil, errors.New("cell already evaluated").
			WithType(ErrTypePrecondition).
			WithTag("state", c.state.String())
	}
	c.region = region
	res := ev.IntervalAndPush(d3.ToMS3(region.Lower), d3.ToMS3(region.Upper), tape)
	switch {
	case res.Safe && res.I.Lo > 0:
		c.state = Empty
	case res.Safe && res.I.Hi < 0:
		c.state = Filled
	default:
		c.state = Ambiguous
	}
	return res.Tape, nil
}

// Subdivide turns an unevaluated or ambiguous cell without a leaf into a
// branch with 2^dim Unknown children covering region.Subdivide().
func (c *Cell) Subdivide(pool *Pool, region brep.Region) error {
	if c.state == Branch || c.leaf != nil {
		return errors.New("cell can not be subdivided").
			WithType(ErrTypePrecondition).
			WithTag("state", c.state.String())
	}
	c.region = region
	children := region.Subdivide()
	for i := range children {
		h, child, err := pool.NewCell()
		if err != nil {
			for j := 0; j < i; j++ {
				pool.ReleaseCell(c.children[j])
				c.children[j] = 0
			}
			return err
		}
		child.region = children[i]
		c.children[i] = h
	}
	c.state = Branch
	return nil
}

// EvalLeaf samples the corners of region and, if the surface crosses the
// cell, builds a leaf with one vertex per surface patch. Intersections
// already found by a neighbor on a shared edge are reused.
func (c *Cell) EvalLeaf(ev *eval.Evaluator, tape *eval.Tape, region brep.Region, pool *Pool, neighbors Neighbors) error {
	if c.state == Branch || c.leaf != nil {
		return errors.New("cell can not be evaluated as a leaf").
			WithType(ErrTypePrecondition).
			WithTag("state", c.state.String())
	}
	c.region = region
	d := c.dim()
	var mask uint8
	for i := 0; i < d.Corners(); i++ {
		if ev.Point.IsInside(d3.ToMS3(region.Corner(i)), tape) {
			mask |= 1 << i
		}
	}
	switch mask {
	case 0:
		c.state = Empty
		return nil
	case d.FullMask():
		c.state = Filled
		return nil
	}

	h, leaf, err := pool.NewLeaf()
	if err != nil {
		return err
	}
	prev := c.state
	c.state = Ambiguous
	c.leafH, c.leaf = h, leaf
	leaf.cornerMask = mask
	leaf.manifold = d.CornersAreManifold(mask)

	patches := d.Patches(mask)
	for p, edges := range patches {
		var (
			q     QEF
			mass  r3.Vec
			count int
		)
		for _, e := range edges {
			a, b := d.EdgeCorners(e)
			vec := neighbors.Check(d, a, b)
			if vec == nil {
				vec = searchEdge(ev, tape, region, a, b)
				err = c.SetIntersection(e, vec)
				vec.Release()
			} else {
				err = c.SetIntersection(e, vec)
			}
			if err != nil {
				c.abandonLeaf(pool, prev)
				return err
			}
			for _, it := range vec.Items() {
				q.Insert(it.Pos, it.Normal, it.Value)
				mass = r3.Add(mass, it.Pos)
				count++
			}
		}
		center := region.Center()
		if count > 0 {
			center = r3.Scale(1/float64(count), mass)
		}
		v, rank, _ := q.Solve(center, region)
		leaf.verts[p] = v
		leaf.rank = max(leaf.rank, rank)
		leaf.qef.Add(q)
		leaf.addMass(mass, count)
	}
	leaf.vertexCount = len(patches)
	return nil
}

// abandonLeaf releases a partially built leaf and restores the cell to
// state.
func (c *Cell) abandonLeaf(pool *Pool, state State) {
	pool.ReleaseLeaf(c.leafH)
	c.leafH, c.leaf = 0, nil
	c.state = state
}

// searchEdge locates the surface crossing between filled corner a and
// empty corner b of region, and returns one intersection per feature
// found at the crossing. Normals are unit length, with the field value
// scaled to a distance; a zero or non-finite gradient is stored as a zero
// normal.
func searchEdge(ev *eval.Evaluator, tape *eval.Tape, region brep.Region, a, b int) *IntersectionVec {
	lo, hi := region.Corner(a), region.Corner(b)
	for i := 0; i < searchSteps; i++ {
		mid := r3.Scale(0.5, r3.Add(lo, hi))
		if ev.Point.IsInside(d3.ToMS3(mid), tape) {
			lo = mid
		} else {
			hi = mid
		}
	}
	pos := r3.Scale(0.5, r3.Add(lo, hi))
	p := d3.ToMS3(pos)
	value := float64(ev.Point.Value(p, tape))
	vec := NewIntersectionVec()
	for _, f := range ev.Point.FeaturesAt(p, tape) {
		n := f.Deriv
		if region.Dim() == 2 {
			n.Z = 0
		}
		it := Intersection{Pos: pos, Value: value}
		if norm := r3.Norm(n); norm > 0 && !math.IsInf(norm, 0) && !math.IsNaN(norm) {
			it.Normal = r3.Scale(1/norm, n)
			it.Value = value / norm
		}
		vec.Append(it)
	}
	return vec
}

// CollectChildren attempts to merge the children of a branch into a
// single leaf. Children must all be terminal. Uniform children collapse
// into an Empty or Filled cell. Otherwise the merge is accepted only if
// the topology is preserved and the merged vertex has error and field
// value below maxErr. It reports whether the cell collapsed; on collapse
// the children are released to pool.
func (c *Cell) CollectChildren(ev *eval.Evaluator, tape *eval.Tape, region brep.Region, pool *Pool, maxErr float64) (bool, error) {
	if c.state != Branch {
		return false, errors.New("cell is not a branch").
			WithType(ErrTypePrecondition).
			WithTag("state", c.state.String())
	}
	c.region = region
	d := c.dim()
	n := d.Corners()
	var (
		cells      [8]*Cell
		childMasks [8]uint8
		empty      int
		filled     int
	)
	for i := 0; i < n; i++ {
		child := pool.Cell(c.children[i])
		switch {
		case child.state == Branch:
			return false, nil
		case !child.IsTerminal():
			return false, errors.New("child not evaluated").
				WithType(ErrTypeChildrenPending).
				WithTag("child", i).
				WithTag("state", child.state.String())
		case child.state == Empty:
			empty++
		case child.state == Filled:
			filled++
			childMasks[i] = d.FullMask()
		default:
			childMasks[i] = child.leaf.cornerMask
		}
		cells[i] = child
	}
	switch n {
	case empty:
		c.releaseChildren(pool)
		c.state = Empty
		return true, nil
	case filled:
		c.releaseChildren(pool)
		c.state = Filled
		return true, nil
	}

	var mask uint8
	for i := 0; i < n; i++ {
		mask |= childMasks[i] & (1 << i)
	}
	if mask == 0 || mask == d.FullMask() {
		return false, nil
	}
	if !d.CornersAreManifold(mask) || !d.LeafsAreManifold(childMasks[:n], mask) {
		return false, nil
	}

	var (
		q     QEF
		mass  r3.Vec
		count int
		level int
	)
	for _, child := range cells[:n] {
		if child.leaf == nil {
			continue
		}
		if !child.leaf.manifold {
			return false, nil
		}
		q.Add(child.leaf.qef)
		sum, cnt := child.leaf.MassPoint()
		mass = r3.Add(mass, sum)
		count += cnt
		level = max(level, child.leaf.level+1)
	}
	center := region.Center()
	if count > 0 {
		center = r3.Scale(1/float64(count), mass)
	}
	v, rank, residual := q.Solve(center, region)
	if residual >= maxErr {
		return false, nil
	}
	tape = tape.Base(d3.ToMS3(region.Lower), d3.ToMS3(region.Upper))
	if value := ev.Point.Value(d3.ToMS3(v), tape); math.Abs(float64(value)) >= maxErr {
		return false, nil
	}

	h, leaf, err := pool.NewLeaf()
	if err != nil {
		return false, err
	}
	leaf.cornerMask = mask
	leaf.vertexCount = 1
	leaf.verts[0] = v
	leaf.rank = rank
	leaf.manifold = true
	leaf.level = level
	leaf.qef = q
	leaf.addMass(mass, count)
	for i := 0; i < n; i++ {
		child := cells[i]
		if child.leaf == nil {
			continue
		}
		for _, e := range d.EdgesFromChild(i) {
			a, b := d.EdgeCorners(e)
			if mask&(1<<a) == 0 || mask&(1<<b) != 0 || leaf.intersections[e].Load() != nil {
				continue
			}
			if vec := child.leaf.intersections[e].Load(); vec != nil {
				vec.Retain()
				leaf.intersections[e].Store(vec)
			}
		}
	}
	c.releaseChildren(pool)
	c.state = Ambiguous
	c.leafH, c.leaf = h, leaf
	c.region = region
	return true, nil
}

func (c *Cell) releaseChildren(pool *Pool) {
	for i, h := range c.children {
		if h == 0 {
			continue
		}
		child := pool.Cell(h)
		child.ReleaseTo(pool)
		pool.ReleaseCell(h)
		c.children[i] = 0
	}
}

// ReleaseTo returns the cell's subtree and leaf to pool and resets the
// cell to Unknown. The cell's own slot is not released.
func (c *Cell) ReleaseTo(pool *Pool) {
	stack := make([]Handle, 0, 8)
	for _, h := range c.children {
		if h != 0 {
			stack = append(stack, h)
		}
	}
	if c.leafH != 0 {
		pool.ReleaseLeaf(c.leafH)
	}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		child := pool.Cell(h)
		for _, ch := range child.children {
			if ch != 0 {
				stack = append(stack, ch)
			}
		}
		if child.leafH != 0 {
			pool.ReleaseLeaf(child.leafH)
		}
		pool.ReleaseCell(h)
	}
	*c = Cell{}
}

// FindVertex solves the leaf's QEF, stores the result as vertex i and
// returns the error at the vertex.
func (c *Cell) FindVertex(i int) (float64, error) {
	l, err := c.checkLeaf()
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(l.verts) {
		return 0, errors.Newf("vertex index %d out of range", i).WithType(ErrTypePrecondition)
	}
	v, rank, residual := l.qef.Solve(l.centroid(c.region.Center()), c.region)
	l.verts[i] = v
	l.rank = rank
	return residual, nil
}

func (c *Cell) checkLeaf() (*Leaf, error) {
	if c.leaf == nil {
		return nil, errPrecondition(c.state)
	}
	return c.leaf, nil
}

// checkTerminal returns an error on cells whose leaf data is undefined.
func (c *Cell) checkTerminal() error {
	if !c.IsTerminal() {
		return errPrecondition(c.state)
	}
	return nil
}

// CornerMask returns the filled corners of the cell. Empty cells have no
// filled corners and Filled cells have all of them.
func (c *Cell) CornerMask() (uint8, error) {
	if err := c.checkTerminal(); err != nil {
		return 0, err
	}
	switch {
	case c.leaf != nil:
		return c.leaf.cornerMask, nil
	case c.state == Filled:
		return c.dim().FullMask(), nil
	}
	return 0, nil
}

// CornerState reports whether corner i is filled.
func (c *Cell) CornerState(i int) (bool, error) {
	mask, err := c.CornerMask()
	return mask&(1<<i) != 0, err
}

// Level returns the leaf's merge level, zero for cells without a leaf.
func (c *Cell) Level() (int, error) {
	if err := c.checkTerminal(); err != nil {
		return 0, err
	}
	if c.leaf == nil {
		return 0, nil
	}
	return c.leaf.level, nil
}

// Rank returns the leaf's feature rank, zero for cells without a leaf.
func (c *Cell) Rank() (int, error) {
	if err := c.checkTerminal(); err != nil {
		return 0, err
	}
	if c.leaf == nil {
		return 0, nil
	}
	return c.leaf.rank, nil
}

// IsManifold reports whether the cell's surface is a single sheet. Cells
// without surface are manifold.
func (c *Cell) IsManifold() (bool, error) {
	if err := c.checkTerminal(); err != nil {
		return false, err
	}
	return c.leaf == nil || c.leaf.manifold, nil
}

// VertexCount returns the number of vertices of the cell.
func (c *Cell) VertexCount() (int, error) {
	if err := c.checkTerminal(); err != nil {
		return 0, err
	}
	if c.leaf == nil {
		return 0, nil
	}
	return c.leaf.vertexCount, nil
}

// Vert returns vertex i of the cell.
func (c *Cell) Vert(i int) (r3.Vec, error) {
	l, err := c.checkLeaf()
	if err != nil {
		return r3.Vec{}, err
	}
	if i < 0 || i >= l.vertexCount {
		return r3.Vec{}, errors.Newf("vertex index %d out of range", i).
			WithType(ErrTypePrecondition).
			WithTag("vertex_count", l.vertexCount)
	}
	return l.verts[i], nil
}

// Intersection returns the intersections on the edge running from
// corner a to corner b, or nil if none were stored.
func (c *Cell) Intersection(a, b int) (*IntersectionVec, error) {
	if err := c.checkTerminal(); err != nil {
		return nil, err
	}
	return c.IntersectionEdge(c.dim().Edge(a, b))
}

// IntersectionEdge returns the intersections on directed edge e, or nil
// if none were stored.
func (c *Cell) IntersectionEdge(e int) (*IntersectionVec, error) {
	if err := c.checkTerminal(); err != nil {
		return nil, err
	}
	if c.leaf == nil {
		return nil, nil
	}
	return c.leaf.intersections[e].Load(), nil
}

// SetIntersection stores vec on directed edge e of the cell's leaf and
// takes a reference to it. Storing the list already held by the edge is
// a no-op; storing a different list is an error.
func (c *Cell) SetIntersection(e int, vec *IntersectionVec) error {
	l, err := c.checkLeaf()
	if err != nil {
		return err
	}
	vec.Retain()
	if l.intersections[e].CompareAndSwap(nil, vec) {
		return nil
	}
	vec.Release()
	if l.intersections[e].Load() == vec {
		return nil
	}
	return errors.New("edge already holds intersections").
		WithType(ErrTypeIntersection).
		WithTag("edge", e)
}
