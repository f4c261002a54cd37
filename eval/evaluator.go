package eval

import "github.com/soypat/brep/expr"

// Evaluator bundles the interval, point and feature evaluators of one
// Deck. Each worker goroutine owns its own Evaluator.
type Evaluator struct {
	*IntervalEvaluator
	// Point evaluates values, gradients and features at single points.
	Point *FeatureEvaluator
}

// NewEvaluator returns an Evaluator for deck with free variables
// initialized from vars, which may be nil.
func NewEvaluator(deck *Deck, vars map[expr.VarID]float32) *Evaluator {
	return &Evaluator{
		IntervalEvaluator: NewIntervalEvaluatorVars(deck, vars),
		Point:             NewFeatureEvaluatorVars(deck, vars),
	}
}

// SetVar sets the free variable v in every bundled evaluator. It returns
// true if the value changed.
func (e *Evaluator) SetVar(v expr.VarID, value float32) bool {
	changed := e.IntervalEvaluator.SetVar(v, value)
	return e.Point.SetVar(v, value) || changed
}
