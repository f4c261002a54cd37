package eval

import (
	"github.com/soypat/brep/expr"
	"github.com/soypat/brep/internal/d3"
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxFeatures bounds the number of features explored at a single point.
const maxFeatures = 64

// FeatureEvaluator resolves points where min and max operands tie by
// enumerating the consistent combinations of branch choices.
type FeatureEvaluator struct {
	*PointEvaluator
}

// NewFeatureEvaluator returns a feature evaluator for deck with every
// free variable set to zero.
func NewFeatureEvaluator(deck *Deck) *FeatureEvaluator {
	return NewFeatureEvaluatorVars(deck, nil)
}

// NewFeatureEvaluatorVars returns a feature evaluator for deck with free
// variables initialized from vars.
func NewFeatureEvaluatorVars(deck *Deck, vars map[expr.VarID]float32) *FeatureEvaluator {
	return &FeatureEvaluator{PointEvaluator: NewPointEvaluatorVars(deck, vars)}
}

// FeaturesAt returns the distinct features of tape at p, each with the
// gradient that holds under its choices. Points without ties return a
// single feature with no choices.
func (e *FeatureEvaluator) FeaturesAt(p ms3.Vec, tape *Tape) []Feature {
	defer func() { e.forced = nil }()
	todo := []Feature{{}}
	var done []Feature
	explored := 0
	for len(todo) > 0 && explored < maxFeatures {
		f := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		explored++
		e.force(&f)
		e.run(p, tape)

		amb, ok := e.firstTie(tape, &f)
		if !ok {
			f.Deriv = d3.FromMS3(e.d[tape.Root()])
			if !containsDeriv(done, f.Deriv) {
				done = append(done, f)
			}
			continue
		}
		da, db := d3.FromMS3(e.d[amb.A]), d3.FromMS3(e.d[amb.B])
		if da == db {
			f.pushChoice(Choice{ID: amb.ID, Choice: 0})
			todo = append(todo, f)
			continue
		}
		// Direction in which the first operand wins.
		eps := r3.Sub(db, da)
		if amb.Op == expr.OpMax {
			eps = r3.Scale(-1, eps)
		}
		fa := f.Clone()
		if fa.Push(eps, Choice{ID: amb.ID, Choice: 0}) {
			todo = append(todo, fa)
		}
		fb := f.Clone()
		if fb.Push(r3.Scale(-1, eps), Choice{ID: amb.ID, Choice: 1}) {
			todo = append(todo, fb)
		}
	}
	return done
}

// IsInside reports whether p is inside the shape, resolving points where
// the value is exactly zero by examining the features at p.
func (e *FeatureEvaluator) IsInside(p ms3.Vec, tape *Tape) bool {
	v := e.Value(p, tape)
	switch {
	case v < 0:
		return true
	case v > 0:
		return false
	}
	fs := e.FeaturesAt(p, tape)
	if len(fs) == 1 {
		return r3.Norm(fs[0].Deriv) > 0
	}
	// Inside unless every feature is compatible with the gradient and
	// none with its opposite.
	pos, neg := false, false
	for i := range fs {
		pos = pos || fs[i].IsCompatible(fs[i].Deriv)
		neg = neg || fs[i].IsCompatible(r3.Scale(-1, fs[i].Deriv))
	}
	return !(pos && !neg)
}

func (e *FeatureEvaluator) force(f *Feature) {
	if len(f.choices) == 0 {
		e.forced = nil
		return
	}
	if e.forced == nil {
		e.forced = make(map[ClauseID]choice)
	}
	clear(e.forced)
	for _, c := range f.choices {
		e.forced[c.ID] = choiceA + choice(c.Choice)
	}
}

// firstTie returns the first min or max clause of tape whose operands are
// equal and on which f has not yet made a choice.
func (e *FeatureEvaluator) firstTie(tape *Tape, f *Feature) (Clause, bool) {
	for _, c := range tape.clauses {
		if c.Op.IsChoice() && e.v[c.A] == e.v[c.B] && !f.HasChoice(c.ID) {
			return c, true
		}
	}
	return Clause{}, false
}

func containsDeriv(fs []Feature, d r3.Vec) bool {
	for i := range fs {
		if fs[i].Deriv == d {
			return true
		}
	}
	return false
}
