package dc

import (
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"
)

// Intersection is a point where the surface crosses a cell edge.
type Intersection struct {
	Pos r3.Vec
	// Normal is the unit surface normal at Pos, or zero where the field
	// gradient vanishes or is not finite.
	Normal r3.Vec
	// Value is the field value at Pos divided by the gradient magnitude,
	// an estimate of the distance to the surface.
	Value float64
}

// IntersectionVec is a reference counted list of intersections found on
// one edge. Neighboring leaves that share the edge share the list. A list
// is filled by the goroutine that created it and is read only once it has
// been stored in a leaf.
type IntersectionVec struct {
	items []Intersection
	refs  atomic.Int32
}

var intersectionPool = sync.Pool{
	New: func() any { return new(IntersectionVec) },
}

// NewIntersectionVec returns an empty list holding one reference.
func NewIntersectionVec() *IntersectionVec {
	v := intersectionPool.Get().(*IntersectionVec)
	v.refs.Store(1)
	return v
}

// Items returns the intersections in the list.
func (v *IntersectionVec) Items() []Intersection { return v.items }

// Len returns the number of intersections in the list.
func (v *IntersectionVec) Len() int { return len(v.items) }

// Append adds an intersection. It must not be called once the list is shared.
func (v *IntersectionVec) Append(it Intersection) {
	v.items = append(v.items, it)
}

// Retain adds a reference to the list.
func (v *IntersectionVec) Retain() { v.refs.Add(1) }

// Release drops a reference. The list is recycled when the last reference
// is dropped and must not be used by the caller afterwards.
func (v *IntersectionVec) Release() {
	switch n := v.refs.Add(-1); {
	case n == 0:
		v.items = v.items[:0]
		intersectionPool.Put(v)
	case n < 0:
		panic("intersection list released too many times")
	}
}

// Refs returns the current reference count.
func (v *IntersectionVec) Refs() int { return int(v.refs.Load()) }
