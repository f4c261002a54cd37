package eval

import (
	"math"

	"github.com/soypat/brep/expr"
)

// ClauseID indexes evaluator storage. Id 0 is never assigned.
type ClauseID uint32

// Reserved clause ids of the coordinate variables. They are present in
// every Deck whether or not the expression uses them.
const (
	ClauseX ClauseID = 1 + iota
	ClauseY
	ClauseZ
)

// Clause is a single tape instruction: ID = Op(A, B). B is zero for unary
// operations.
type Clause struct {
	Op   expr.Opcode
	ID   ClauseID
	A, B ClauseID
}

// Deck is an expression compiled into flat clauses. It owns the constants,
// the free variable table and the root Tape from which all pruned tapes
// descend. A Deck is immutable and may be shared between evaluators.
type Deck struct {
	tape      *Tape
	constants map[ClauseID]float32
	vars      map[expr.VarID]ClauseID
	// size is one more than the largest assigned id.
	size int
}

type clauseKey struct {
	op   expr.Opcode
	a, b ClauseID
}

// NewDeck compiles t. Structurally identical subexpressions are assigned
// the same clause. It panics if t is invalid.
func NewDeck(t expr.Tree) *Deck {
	if !t.IsValid() {
		panic("eval: invalid expression tree")
	}
	d := &Deck{
		constants: make(map[ClauseID]float32),
		vars:      make(map[expr.VarID]ClauseID),
	}
	// Topological order of operation nodes, leaves gathered separately
	// so they can be numbered first.
	var (
		order   []expr.Tree
		leaves  []expr.Tree
		visited = make(map[expr.Tree]bool)
		stack   = []expr.Tree{t}
		ready   = make(map[expr.Tree]bool)
	)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		if visited[n] {
			stack = stack[:len(stack)-1]
			if !ready[n] {
				ready[n] = true
				order = append(order, n)
			}
			continue
		}
		visited[n] = true
		switch n.Op().Args() {
		case 0:
			stack = stack[:len(stack)-1]
			ready[n] = true
			leaves = append(leaves, n)
		case 1:
			if !visited[n.Lhs()] {
				stack = append(stack, n.Lhs())
			}
		case 2:
			if !visited[n.Rhs()] {
				stack = append(stack, n.Rhs())
			}
			if !visited[n.Lhs()] {
				stack = append(stack, n.Lhs())
			}
		}
	}

	ids := make(map[expr.Tree]ClauseID, len(visited))
	next := ClauseZ + 1
	constIDs := make(map[uint32]ClauseID)
	for _, n := range leaves {
		switch n.Op() {
		case expr.OpVarX:
			ids[n] = ClauseX
		case expr.OpVarY:
			ids[n] = ClauseY
		case expr.OpVarZ:
			ids[n] = ClauseZ
		case expr.OpConst:
			bits := math.Float32bits(n.Value())
			id, ok := constIDs[bits]
			if !ok {
				id = next
				next++
				constIDs[bits] = id
				d.constants[id] = n.Value()
			}
			ids[n] = id
		case expr.OpVarFree:
			id, ok := d.vars[n.Var()]
			if !ok {
				id = next
				next++
				d.vars[n.Var()] = id
			}
			ids[n] = id
		default:
			panic("eval: unexpected leaf opcode " + n.Op().String())
		}
	}

	var clauses []Clause
	dedup := make(map[clauseKey]ClauseID)
	for _, n := range order {
		if n.Op().Args() == 0 {
			continue
		}
		c := Clause{Op: n.Op(), A: ids[n.Lhs()]}
		if c.Op.Args() == 2 {
			c.B = ids[n.Rhs()]
		}
		key := clauseKey{op: c.Op, a: c.A, b: c.B}
		if key.op.IsCommutative() && key.b < key.a {
			key.a, key.b = key.b, key.a
		}
		if id, ok := dedup[key]; ok {
			ids[n] = id
			continue
		}
		id := next
		next++
		dedup[key] = id
		ids[n] = id
		c.ID = id
		clauses = append(clauses, c)
	}

	root := ids[t]
	if t.Op().Args() == 0 {
		// Leaves are not clauses; the tape needs one to hold the result.
		clauses = append(clauses, Clause{Op: expr.OpCopy, ID: next, A: root})
		next++
	}
	d.size = int(next)
	d.tape = &Tape{clauses: clauses}
	return d
}

// Tape returns the unpruned tape of the deck.
func (d *Deck) Tape() *Tape { return d.tape }

// Root returns the clause id holding the expression's value.
func (d *Deck) Root() ClauseID { return d.tape.Root() }

// Size returns the number of storage slots an evaluator needs for the deck.
func (d *Deck) Size() int { return d.size }

// Var returns the clause id of the free variable v.
func (d *Deck) Var(v expr.VarID) (ClauseID, bool) {
	id, ok := d.vars[v]
	return id, ok
}

// Vars returns the number of free variables in the deck.
func (d *Deck) Vars() int { return len(d.vars) }
