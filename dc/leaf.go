package dc

import (
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"
)

// maxDirectedEdges is the number of directed edges of a 3D cell.
const maxDirectedEdges = 24

// Leaf holds the surface data of a cell that contains a sign change.
type Leaf struct {
	cornerMask  uint8
	vertexCount int
	verts       [4]r3.Vec
	// Indexed by directed edge. A slot holds the intersections of the
	// edge running from a filled to an empty corner.
	intersections [maxDirectedEdges]atomic.Pointer[IntersectionVec]

	rank     int
	manifold bool
	level    int

	massSum   r3.Vec
	massCount int
	qef       QEF
}

func (l *Leaf) reset() {
	for i := range l.intersections {
		if v := l.intersections[i].Swap(nil); v != nil {
			v.Release()
		}
	}
	l.cornerMask = 0
	l.vertexCount = 0
	l.verts = [4]r3.Vec{}
	l.rank = 0
	l.manifold = false
	l.level = 0
	l.massSum = r3.Vec{}
	l.massCount = 0
	l.qef = QEF{}
}

// CornerMask returns the leaf's corner mask. Bit i is set if corner i is filled.
func (l *Leaf) CornerMask() uint8 { return l.cornerMask }

// VertexCount returns the number of vertices, one per surface patch.
func (l *Leaf) VertexCount() int { return l.vertexCount }

// Vert returns vertex i.
func (l *Leaf) Vert(i int) r3.Vec { return l.verts[i] }

// Rank returns the rank of the leaf's feature: 1 for a plane, 2 for an
// edge and 3 for a corner.
func (l *Leaf) Rank() int { return l.rank }

// IsManifold reports whether the leaf's surface is a single sheet.
func (l *Leaf) IsManifold() bool { return l.manifold }

// Level returns the number of merges that built the leaf. Leaves
// evaluated directly are level 0.
func (l *Leaf) Level() int { return l.level }

// QEF returns the leaf's accumulated error function.
func (l *Leaf) QEF() QEF { return l.qef }

// MassPoint returns the sum and number of the intersection points that
// make up the leaf.
func (l *Leaf) MassPoint() (sum r3.Vec, count int) { return l.massSum, l.massCount }

// Intersections returns the intersection list of directed edge e, or nil.
func (l *Leaf) Intersections(e int) *IntersectionVec { return l.intersections[e].Load() }

func (l *Leaf) addMass(sum r3.Vec, count int) {
	l.massSum = r3.Add(l.massSum, sum)
	l.massCount += count
}

func (l *Leaf) centroid(fallback r3.Vec) r3.Vec {
	if l.massCount == 0 {
		return fallback
	}
	return r3.Scale(1/float64(l.massCount), l.massSum)
}
