package eval

import (
	math32 "github.com/chewxy/math32"
	"github.com/soypat/brep/expr"
	"github.com/soypat/glgl/math/ms3"
)

// PointEvaluator evaluates a Deck and its gradient at single points.
// It must not be shared between goroutines.
type PointEvaluator struct {
	deck *Deck
	v    []float32
	d    []ms3.Vec
	// forced overrides the operand chosen by min and max clauses.
	forced map[ClauseID]choice
}

// NewPointEvaluator returns a point evaluator for deck with every free
// variable set to zero.
func NewPointEvaluator(deck *Deck) *PointEvaluator {
	return NewPointEvaluatorVars(deck, nil)
}

// NewPointEvaluatorVars returns a point evaluator for deck with free
// variables initialized from vars.
func NewPointEvaluatorVars(deck *Deck, vars map[expr.VarID]float32) *PointEvaluator {
	n := deck.Size()
	e := &PointEvaluator{
		deck: deck,
		v:    make([]float32, n),
		d:    make([]ms3.Vec, n),
	}
	for id, v := range deck.constants {
		e.v[id] = v
	}
	for v, id := range deck.vars {
		e.v[id] = vars[v]
	}
	e.d[ClauseX] = ms3.Vec{X: 1}
	e.d[ClauseY] = ms3.Vec{Y: 1}
	e.d[ClauseZ] = ms3.Vec{Z: 1}
	return e
}

// SetVar sets the free variable v to value. It returns true if v is
// present in the deck and its value changed.
func (e *PointEvaluator) SetVar(v expr.VarID, value float32) bool {
	id, ok := e.deck.vars[v]
	if !ok || e.v[id] == value {
		return false
	}
	e.v[id] = value
	return true
}

// Value returns the value of tape at p.
func (e *PointEvaluator) Value(p ms3.Vec, tape *Tape) float32 {
	e.run(p, tape)
	return e.v[tape.Root()]
}

// Deriv returns the value of tape at p and its gradient.
func (e *PointEvaluator) Deriv(p ms3.Vec, tape *Tape) (float32, ms3.Vec) {
	e.run(p, tape)
	root := tape.Root()
	return e.v[root], e.d[root]
}

// Ambiguous reports whether any min or max clause in tape has equal
// operands at p, in which case the gradient returned by Deriv is one
// of several valid choices.
func (e *PointEvaluator) Ambiguous(p ms3.Vec, tape *Tape) bool {
	e.run(p, tape)
	for _, c := range tape.clauses {
		if c.Op.IsChoice() && e.v[c.A] == e.v[c.B] {
			return true
		}
	}
	return false
}

func (e *PointEvaluator) run(p ms3.Vec, tape *Tape) {
	e.v[ClauseX], e.v[ClauseY], e.v[ClauseZ] = p.X, p.Y, p.Z
	for _, c := range tape.clauses {
		e.clause(c)
	}
}

func (e *PointEvaluator) clause(c Clause) {
	a, da := e.v[c.A], e.d[c.A]
	var b float32
	var db ms3.Vec
	if c.Op.Args() == 2 {
		b, db = e.v[c.B], e.d[c.B]
	}
	var (
		out  float32
		dout ms3.Vec
	)
	switch c.Op {
	case expr.OpCopy:
		out, dout = a, da
	case expr.OpSquare:
		out, dout = a*a, ms3.Scale(2*a, da)
	case expr.OpSqrt:
		out = math32.Sqrt(a)
		if a > 0 {
			dout = ms3.Scale(1/(2*out), da)
		}
	case expr.OpNeg:
		out, dout = -a, ms3.Scale(-1, da)
	case expr.OpAbs:
		out, dout = math32.Abs(a), da
		if a < 0 {
			dout = ms3.Scale(-1, da)
		}
	case expr.OpSin:
		out, dout = math32.Sin(a), ms3.Scale(math32.Cos(a), da)
	case expr.OpCos:
		out, dout = math32.Cos(a), ms3.Scale(-math32.Sin(a), da)
	case expr.OpTan:
		cos := math32.Cos(a)
		out, dout = math32.Tan(a), ms3.Scale(1/(cos*cos), da)
	case expr.OpAsin:
		out, dout = math32.Asin(a), ms3.Scale(1/math32.Sqrt(1-a*a), da)
	case expr.OpAcos:
		out, dout = math32.Acos(a), ms3.Scale(-1/math32.Sqrt(1-a*a), da)
	case expr.OpAtan:
		out, dout = math32.Atan(a), ms3.Scale(1/(1+a*a), da)
	case expr.OpExp:
		out = math32.Exp(a)
		dout = ms3.Scale(out, da)
	case expr.OpLog:
		out, dout = math32.Log(a), ms3.Scale(1/a, da)
	case expr.OpRecip:
		out, dout = 1/a, ms3.Scale(-1/(a*a), da)

	case expr.OpAdd:
		out, dout = a+b, ms3.Add(da, db)
	case expr.OpSub:
		out, dout = a-b, ms3.Sub(da, db)
	case expr.OpMul:
		out, dout = a*b, ms3.Add(ms3.Scale(b, da), ms3.Scale(a, db))
	case expr.OpDiv:
		out = a / b
		dout = ms3.Scale(1/(b*b), ms3.Sub(ms3.Scale(b, da), ms3.Scale(a, db)))
	case expr.OpMin, expr.OpMax:
		takeA := a <= b
		if c.Op == expr.OpMax {
			takeA = a >= b
		}
		switch e.forced[c.ID] {
		case choiceA:
			takeA = true
		case choiceB:
			takeA = false
		}
		if takeA {
			out, dout = a, da
		} else {
			out, dout = b, db
		}
	case expr.OpAtan2:
		out = math32.Atan2(a, b)
		d := a*a + b*b
		if d != 0 {
			dout = ms3.Scale(1/d, ms3.Sub(ms3.Scale(b, da), ms3.Scale(a, db)))
		}
	case expr.OpPow:
		out = math32.Pow(a, b)
		dout = ms3.Scale(b*math32.Pow(a, b-1), da)
		if a > 0 {
			dout = ms3.Add(dout, ms3.Scale(out*math32.Log(a), db))
		}
	case expr.OpMod:
		out, dout = posMod(a, b), da
	case expr.OpNanFill:
		out, dout = a, da
		if math32.IsNaN(a) {
			out, dout = b, db
		}
	case expr.OpCompare:
		switch {
		case a < b:
			out = -1
		case a > b:
			out = 1
		}
	default:
		panic("eval: bad clause opcode " + c.Op.String())
	}
	e.v[c.ID] = out
	e.d[c.ID] = dout
}
