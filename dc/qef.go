package dc

import (
	"math"

	"github.com/soypat/brep"
	"github.com/soypat/brep/internal/d3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// eigenCutoff is the smallest eigenvalue of AtA kept when solving a QEF.
// Smaller eigenvalues are treated as zero so that flat and edge features
// snap to the mass point along their free directions.
const eigenCutoff = 0.1

// QEF is a quadratic error function accumulating planes n·x = b. The
// error at x is |A x - b|² = xᵀ AtA x - 2 xᵀ AtB + BtB.
type QEF struct {
	// AtA is symmetric.
	AtA [3][3]float64
	AtB r3.Vec
	BtB float64
}

// Insert adds the tangent plane through pos with field gradient grad and
// field value value. Zero gradients carry no plane and are skipped;
// Insert reports whether a plane was added.
func (q *QEF) Insert(pos, grad r3.Vec, value float64) bool {
	norm := r3.Norm(grad)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return false
	}
	n := r3.Scale(1/norm, grad)
	b := r3.Dot(n, pos) - value/norm
	nv := [3]float64{n.X, n.Y, n.Z}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			q.AtA[i][j] += nv[i] * nv[j]
		}
	}
	q.AtB = r3.Add(q.AtB, r3.Scale(b, n))
	q.BtB += b * b
	return true
}

// Add accumulates o into q.
func (q *QEF) Add(o QEF) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			q.AtA[i][j] += o.AtA[i][j]
		}
	}
	q.AtB = r3.Add(q.AtB, o.AtB)
	q.BtB += o.BtB
}

func (q *QEF) mulAtA(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: q.AtA[0][0]*v.X + q.AtA[0][1]*v.Y + q.AtA[0][2]*v.Z,
		Y: q.AtA[1][0]*v.X + q.AtA[1][1]*v.Y + q.AtA[1][2]*v.Z,
		Z: q.AtA[2][0]*v.X + q.AtA[2][1]*v.Y + q.AtA[2][2]*v.Z,
	}
}

// Error returns the error of the QEF at v.
func (q *QEF) Error(v r3.Vec) float64 {
	return r3.Dot(v, q.mulAtA(v)) - 2*r3.Dot(v, q.AtB) + q.BtB
}

// Solve returns the point minimizing the QEF, the rank of AtA after
// dropping small eigenvalues and the error at the returned point.
// The minimizer closest to center is chosen when AtA is rank deficient.
// The result is clamped into region, and center is returned if the
// solve does not produce a finite point.
func (q *QEF) Solve(center r3.Vec, region brep.Region) (v r3.Vec, rank int, residual float64) {
	a := mat.NewSymDense(3, []float64{
		q.AtA[0][0], q.AtA[0][1], q.AtA[0][2],
		q.AtA[1][0], q.AtA[1][1], q.AtA[1][2],
		q.AtA[2][0], q.AtA[2][1], q.AtA[2][2],
	})
	var es mat.EigenSym
	v = center
	if es.Factorize(a, true) {
		vals := es.Values(nil)
		var vecs mat.Dense
		es.VectorsTo(&vecs)

		// Pseudo inverse V D⁺ Vᵀ with small eigenvalues zeroed.
		inv := mat.NewDiagDense(3, nil)
		for i, l := range vals {
			if math.Abs(l) >= eigenCutoff {
				inv.SetDiag(i, 1/l)
				rank++
			}
		}
		var pinv, tmp mat.Dense
		tmp.Mul(&vecs, inv)
		pinv.Mul(&tmp, vecs.T())

		rhs := r3.Sub(q.AtB, q.mulAtA(center))
		x := mat.NewVecDense(3, []float64{rhs.X, rhs.Y, rhs.Z})
		var sol mat.VecDense
		sol.MulVec(&pinv, x)
		v = r3.Add(center, r3.Vec{X: sol.AtVec(0), Y: sol.AtVec(1), Z: sol.AtVec(2)})
	}
	if !d3.IsFinite(v) {
		v = center
	}
	v = d3.Clamp(v, region.Lower, region.Upper)
	if region.Dim() == 2 {
		v.Z = region.Perp
	}
	return v, rank, q.Error(v)
}
