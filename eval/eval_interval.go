package eval

import (
	"github.com/soypat/brep/expr"
	"github.com/soypat/glgl/math/ms3"
)

// Result is the outcome of an interval evaluation.
type Result struct {
	I Interval
	// Safe is false when some value in the evaluated box may produce NaN.
	Safe bool
	// Tape is the tape that was evaluated, or the pruned tape for
	// results of IntervalAndPush.
	Tape *Tape
}

type choice uint8

const (
	choiceBoth choice = iota
	choiceA
	choiceB
)

// IntervalEvaluator evaluates a Deck over boxes and prunes its tapes.
// It holds private scratch storage and must not be shared between goroutines.
type IntervalEvaluator struct {
	deck    *Deck
	i       []Interval
	mayNaN  []bool
	choices []choice
	// Bounds of the most recent evaluation, recorded in pushed tapes.
	lower, upper ms3.Vec

	// Push scratch.
	active []bool
	remap  []ClauseID
	final  []ClauseID
}

// NewIntervalEvaluator returns an evaluator for deck with every free
// variable set to zero.
func NewIntervalEvaluator(deck *Deck) *IntervalEvaluator {
	return NewIntervalEvaluatorVars(deck, nil)
}

// NewIntervalEvaluatorVars returns an evaluator for deck with free variables
// initialized from vars. Variables absent from vars are zero.
func NewIntervalEvaluatorVars(deck *Deck, vars map[expr.VarID]float32) *IntervalEvaluator {
	n := deck.Size()
	e := &IntervalEvaluator{
		deck:    deck,
		i:       make([]Interval, n),
		mayNaN:  make([]bool, n),
		choices: make([]choice, n),
		active:  make([]bool, n),
		remap:   make([]ClauseID, n),
		final:   make([]ClauseID, n),
	}
	for id, v := range deck.constants {
		e.i[id] = Point(v)
	}
	for v, id := range deck.vars {
		e.i[id] = Point(vars[v])
	}
	return e
}

// Deck returns the deck the evaluator was built for.
func (e *IntervalEvaluator) Deck() *Deck { return e.deck }

// SetVar sets the free variable v to value. It returns true if v is
// present in the deck and its value changed.
func (e *IntervalEvaluator) SetVar(v expr.VarID, value float32) bool {
	id, ok := e.deck.vars[v]
	if !ok || e.i[id] == Point(value) {
		return false
	}
	e.i[id] = Point(value)
	return true
}

// Eval evaluates the deck's root tape over the box [lower, upper].
func (e *IntervalEvaluator) Eval(lower, upper ms3.Vec) Interval {
	return e.EvalTape(lower, upper, e.deck.tape)
}

// EvalTape evaluates tape over the box [lower, upper].
func (e *IntervalEvaluator) EvalTape(lower, upper ms3.Vec, tape *Tape) Interval {
	return e.EvalResult(lower, upper, tape).I
}

// EvalResult evaluates tape over the box [lower, upper] and reports whether
// the result is free of possible NaNs.
func (e *IntervalEvaluator) EvalResult(lower, upper ms3.Vec, tape *Tape) Result {
	e.lower, e.upper = lower, upper
	e.i[ClauseX] = Interval{lower.X, upper.X}
	e.i[ClauseY] = Interval{lower.Y, upper.Y}
	e.i[ClauseZ] = Interval{lower.Z, upper.Z}
	for _, c := range tape.clauses {
		e.clause(c)
	}
	root := tape.Root()
	return Result{I: e.i[root], Safe: !e.mayNaN[root], Tape: tape}
}

func (e *IntervalEvaluator) clause(c Clause) {
	a, nanA := e.i[c.A], e.mayNaN[c.A]
	var (
		out Interval
		nan bool
	)
	switch c.Op.Args() {
	case 1:
		if c.Op == expr.OpCopy {
			out = a
		} else {
			out, nan = unaryInterval(c.Op, a)
		}
		nan = nan || nanA
	case 2:
		b, nanB := e.i[c.B], e.mayNaN[c.B]
		if c.Op == expr.OpNanFill {
			out = a
			if nanA {
				out = a.Hull(b)
			}
			nan = false
			break
		}
		out, nan = binaryInterval(c.Op, a, b)
		nan = nan || nanA || nanB
		if c.Op.IsChoice() {
			e.choices[c.ID] = choiceBoth
			if !nanA && !nanB {
				e.choices[c.ID] = pick(c.Op, a, b)
			}
		}
	default:
		panic("eval: bad clause opcode " + c.Op.String())
	}
	e.i[c.ID] = out
	e.mayNaN[c.ID] = nan
}

// pick returns the operand of a min or max clause that always determines
// the result, or choiceBoth if the intervals overlap.
func pick(op expr.Opcode, a, b Interval) choice {
	if op == expr.OpMin {
		switch {
		case a.Hi < b.Lo:
			return choiceA
		case b.Hi < a.Lo:
			return choiceB
		}
	} else {
		switch {
		case a.Lo > b.Hi:
			return choiceA
		case b.Lo > a.Hi:
			return choiceB
		}
	}
	return choiceBoth
}

// IntervalAndPush evaluates tape over [lower, upper] and returns the result
// along with a tape pruned for that box.
func (e *IntervalEvaluator) IntervalAndPush(lower, upper ms3.Vec, tape *Tape) Result {
	r := e.EvalResult(lower, upper, tape)
	r.Tape = e.Push(tape)
	return r
}

// Push returns tape pruned using the choices made by the most recent
// evaluation of tape. Min and max clauses with a strictly dominated
// operand are replaced by the other operand, and clauses no longer
// reachable from the root are dropped. If nothing can be pruned tape
// itself is returned.
func (e *IntervalEvaluator) Push(tape *Tape) *Tape {
	clauses := tape.clauses
	if len(clauses) == 0 {
		return tape
	}
	clear(e.active)
	clear(e.remap)
	root := tape.Root()
	e.active[root] = true
	changed := false
	for i := len(clauses) - 1; i >= 0; i-- {
		c := clauses[i]
		if !e.active[c.ID] {
			changed = true
			continue
		}
		if c.Op.IsChoice() {
			switch e.choices[c.ID] {
			case choiceA:
				e.remap[c.ID] = c.A
				e.active[c.A] = true
				changed = true
				continue
			case choiceB:
				e.remap[c.ID] = c.B
				e.active[c.B] = true
				changed = true
				continue
			}
		}
		e.active[c.A] = true
		if c.Op.Args() == 2 {
			e.active[c.B] = true
		}
	}
	if !changed {
		return tape
	}

	resolve := func(id ClauseID) ClauseID {
		if f := e.final[id]; f != 0 {
			return f
		}
		return id
	}
	clear(e.final)
	out := make([]Clause, 0, len(clauses))
	for _, c := range clauses {
		if !e.active[c.ID] {
			continue
		}
		if r := e.remap[c.ID]; r != 0 {
			e.final[c.ID] = resolve(r)
			continue
		}
		c.A = resolve(c.A)
		if c.Op.Args() == 2 {
			c.B = resolve(c.B)
		}
		if c.Op.IsChoice() && c.A == c.B {
			e.final[c.ID] = c.A
			continue
		}
		out = append(out, c)
	}
	if f := resolve(root); f != root {
		out = append(out, Clause{Op: expr.OpCopy, ID: root, A: f})
	}
	return &Tape{
		clauses: out,
		parent:  tape,
		lower:   e.lower,
		upper:   e.upper,
	}
}
