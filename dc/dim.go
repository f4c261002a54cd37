package dc

// Dim holds the corner, edge and manifold tables of a 2D or 3D cell.
// Corner i sits at the upper bound of axis k when bit k of i is set.
// Dim2 and Dim3 are built once at package initialization and are read only.
type Dim struct {
	n       int
	corners int
	// edgeCorners maps an undirected edge to its corners, lower corner first.
	edgeCorners [][2]int
	// directed maps a corner pair to its directed edge index, -1 if not adjacent.
	directed [8][8]int
	// manifold is indexed by corner mask.
	manifold []bool
	// patches is indexed by corner mask.
	patches [][][]int
	// fromChild is indexed by child.
	fromChild [][]int
}

var (
	Dim2 = newDim(2)
	Dim3 = newDim(3)
)

// DimOf returns the tables for an n dimensional cell. It panics if n is not 2 or 3.
func DimOf(n int) *Dim {
	switch n {
	case 2:
		return Dim2
	case 3:
		return Dim3
	}
	panic("dimension must be 2 or 3")
}

func newDim(n int) *Dim {
	d := &Dim{n: n, corners: 1 << n}
	for a := range d.directed {
		for b := range d.directed[a] {
			d.directed[a][b] = -1
		}
	}
	for k := 0; k < n; k++ {
		for c := 0; c < d.corners; c++ {
			if c&(1<<k) != 0 {
				continue
			}
			u := len(d.edgeCorners)
			hi := c | 1<<k
			d.edgeCorners = append(d.edgeCorners, [2]int{c, hi})
			d.directed[c][hi] = 2 * u
			d.directed[hi][c] = 2*u + 1
		}
	}
	masks := 1 << d.corners
	d.manifold = make([]bool, masks)
	d.patches = make([][][]int, masks)
	for m := 0; m < masks; m++ {
		mask := uint8(m)
		full := uint8(masks - 1)
		d.manifold[m] = d.connected(mask) && d.connected(^mask&full)
		d.patches[m] = d.buildPatches(mask)
	}
	d.fromChild = make([][]int, d.corners)
	for i := 0; i < d.corners; i++ {
		for k := 0; k < n; k++ {
			j := i ^ 1<<k
			d.fromChild[i] = append(d.fromChild[i], d.directed[i][j], d.directed[j][i])
		}
	}
	return d
}

// N returns the number of dimensions.
func (d *Dim) N() int { return d.n }

// Corners returns the number of corners of a cell, 2^N.
func (d *Dim) Corners() int { return d.corners }

// FullMask returns the corner mask with every corner filled.
func (d *Dim) FullMask() uint8 { return uint8(1<<d.corners - 1) }

// Edges returns the number of undirected edges of a cell.
func (d *Dim) Edges() int { return len(d.edgeCorners) }

// DirectedEdges returns the number of directed edges, twice Edges.
func (d *Dim) DirectedEdges() int { return 2 * len(d.edgeCorners) }

// Edge returns the index of the directed edge from corner a to corner b.
// It panics if the corners are not adjacent.
func (d *Dim) Edge(a, b int) int {
	e := d.directed[a][b]
	if e < 0 {
		panic("corners do not share an edge")
	}
	return e
}

// EdgeCorners returns the start and end corner of directed edge e.
func (d *Dim) EdgeCorners(e int) (a, b int) {
	c := d.edgeCorners[e/2]
	if e%2 == 0 {
		return c[0], c[1]
	}
	return c[1], c[0]
}

// EdgesFromChild returns the directed edges of a cell that touch corner i,
// in both directions. Child i covers the half of each of these edges
// nearest the corner.
func (d *Dim) EdgesFromChild(i int) []int { return d.fromChild[i] }

// CornersAreManifold reports whether a cell with the given corner mask
// contains a single sheet of surface: the filled corners are edge
// connected and so are the empty ones.
func (d *Dim) CornersAreManifold(mask uint8) bool { return d.manifold[mask] }

// Patches returns the surface patches of a cell with the given mask.
// Each patch is a set of edge connected filled corners, given as the
// directed edges that run from the patch to an empty corner.
func (d *Dim) Patches(mask uint8) [][]int { return d.patches[mask] }

// connected reports whether the set bits of mask form at most one edge
// connected group of corners.
func (d *Dim) connected(mask uint8) bool {
	return len(d.components(mask)) <= 1
}

func (d *Dim) components(mask uint8) [][]int {
	var (
		out  [][]int
		seen uint8
	)
	for start := 0; start < d.corners; start++ {
		if mask&(1<<start) == 0 || seen&(1<<start) != 0 {
			continue
		}
		var group []int
		stack := []int{start}
		seen |= 1 << start
		for len(stack) > 0 {
			c := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			group = append(group, c)
			for k := 0; k < d.n; k++ {
				nb := c ^ 1<<k
				if mask&(1<<nb) != 0 && seen&(1<<nb) == 0 {
					seen |= 1 << nb
					stack = append(stack, nb)
				}
			}
		}
		out = append(out, group)
	}
	return out
}

func (d *Dim) buildPatches(mask uint8) [][]int {
	full := d.FullMask()
	if mask == 0 || mask == full {
		return nil
	}
	var out [][]int
	for _, group := range d.components(mask) {
		var edges []int
		for _, c := range group {
			for k := 0; k < d.n; k++ {
				nb := c ^ 1<<k
				if mask&(1<<nb) == 0 {
					edges = append(edges, d.directed[c][nb])
				}
			}
		}
		out = append(out, edges)
	}
	return out
}

// LeafsAreManifold checks that merging children with the given corner
// masks into a cell with corner mask mask does not hide surface. The sign
// at the center of every edge, face and the cell itself, which is a corner
// of the children around it, must match the sign of one of the corners of
// that edge, face or cell.
func (d *Dim) LeafsAreManifold(children []uint8, mask uint8) bool {
	all := d.corners - 1
	for free := 1; free <= all; free++ {
		for base := 0; base < d.corners; base++ {
			if base&free != 0 {
				continue
			}
			center := children[base]&(1<<(base|free)) != 0
			match := false
			// Enumerate every subset s of free.
			for s := free; ; s = (s - 1) & free {
				if (mask&(1<<(base|s)) != 0) == center {
					match = true
					break
				}
				if s == 0 {
					break
				}
			}
			if !match {
				return false
			}
		}
	}
	return true
}
