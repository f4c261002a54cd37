package dc

// Neighbors holds the cells of the same size that surround a cell. The
// neighbor at offset o, with each o_k in {-1, 0, 1}, is stored at index
// Σ (o_k+1)·3^k. Missing neighbors are nil. A 2D cell uses the first 9
// entries.
type Neighbors [27]*Cell

func neighborIndex(o [3]int, n int) int {
	idx, stride := 0, 1
	for k := 0; k < n; k++ {
		idx += (o[k] + 1) * stride
		stride *= 3
	}
	return idx
}

// Push returns the neighbors of child i of parent, given n, the
// neighbors of parent. Neighbors that are not subdivided contribute no
// children.
func (n *Neighbors) Push(i int, parent *Cell, pool *Pool) Neighbors {
	var out Neighbors
	dim := parent.region.Dim()
	center := neighborIndex([3]int{}, dim)
	count := 1
	for k := 0; k < dim; k++ {
		count *= 3
	}
	for idx := 0; idx < count; idx++ {
		if idx == center {
			continue
		}
		var (
			owner [3]int // offset of the cell holding the neighbor, relative to parent
			child int
		)
		rem := idx
		for k := 0; k < dim; k++ {
			o := rem%3 - 1
			rem /= 3
			p := (i>>k)&1 + o
			switch {
			case p < 0:
				owner[k] = -1
				p += 2
			case p > 1:
				owner[k] = 1
				p -= 2
			}
			child |= p << k
		}
		cell := parent
		if owner != [3]int{} {
			cell = n[neighborIndex(owner, dim)]
		}
		if cell != nil && cell.state == Branch {
			out[idx] = pool.Cell(cell.children[child])
		}
	}
	return out
}

// Check returns the intersections stored by a neighbor on the edge from
// corner a to corner b of the cell, or nil if no neighbor holds them.
func (n *Neighbors) Check(d *Dim, a, b int) *IntersectionVec {
	axis := 0
	for diff := a ^ b; diff > 1; diff >>= 1 {
		axis++
	}
	// Neighbors sharing the edge are offset along the other axes, toward
	// the side the edge lies on.
	var others [2]int
	no := 0
	for k := 0; k < d.N(); k++ {
		if k != axis {
			others[no] = k
			no++
		}
	}
	for sel := 1; sel < 1<<no; sel++ {
		var o [3]int
		flip := 0
		for j := 0; j < no; j++ {
			if sel&(1<<j) == 0 {
				continue
			}
			k := others[j]
			if a&(1<<k) != 0 {
				o[k] = 1
			} else {
				o[k] = -1
			}
			flip |= 1 << k
		}
		nb := n[neighborIndex(o, d.N())]
		if nb == nil || nb.leaf == nil {
			continue
		}
		if v := nb.leaf.intersections[d.Edge(a^flip, b^flip)].Load(); v != nil {
			return v
		}
	}
	return nil
}
