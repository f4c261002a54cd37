package expr

import (
	"strconv"
	"sync/atomic"
)

// VarID identifies a free variable. Ids are unique for the lifetime of the program.
type VarID uint64

var lastVarID atomic.Uint64

// Tree is an immutable node of an expression DAG. The zero value is invalid.
// Trees are cheap to copy and safe for concurrent use.
type Tree struct {
	n *node
}

type node struct {
	op    Opcode
	value float32
	v     VarID
	a, b  *node
}

// X returns the tree for the x coordinate.
func X() Tree { return Tree{&node{op: OpVarX}} }

// Y returns the tree for the y coordinate.
func Y() Tree { return Tree{&node{op: OpVarY}} }

// Z returns the tree for the z coordinate.
func Z() Tree { return Tree{&node{op: OpVarZ}} }

// Const returns a constant tree.
func Const(v float32) Tree { return Tree{&node{op: OpConst, value: v}} }

// NewVar returns a tree for a new free variable. Its value is supplied
// to evaluators by the returned tree's Var id.
func NewVar() Tree {
	return Tree{&node{op: OpVarFree, v: VarID(lastVarID.Add(1))}}
}

// Unary returns a tree applying op to a. It panics if op is not unary
// or a is invalid.
func Unary(op Opcode, a Tree) Tree {
	if op.Args() != 1 || op == OpCopy {
		panic("expr: " + op.String() + " is not a unary operation")
	}
	mustValid(a)
	return Tree{&node{op: op, a: a.n}}
}

// Binary returns a tree applying op to a and b. It panics if op is not
// binary or either operand is invalid.
func Binary(op Opcode, a, b Tree) Tree {
	if op.Args() != 2 {
		panic("expr: " + op.String() + " is not a binary operation")
	}
	mustValid(a)
	mustValid(b)
	return Tree{&node{op: op, a: a.n, b: b.n}}
}

func mustValid(t Tree) {
	if t.n == nil {
		panic("expr: invalid tree operand")
	}
}

// IsValid reports whether t was built by one of the package constructors.
func (t Tree) IsValid() bool { return t.n != nil }

// Op returns the node's opcode.
func (t Tree) Op() Opcode {
	if t.n == nil {
		return OpInvalid
	}
	return t.n.op
}

// Value returns the value of a constant node.
func (t Tree) Value() float32 { return t.n.value }

// Var returns the id of a free variable node.
func (t Tree) Var() VarID { return t.n.v }

// Lhs returns the first operand, or an invalid tree for leaf nodes.
func (t Tree) Lhs() Tree { return Tree{t.n.a} }

// Rhs returns the second operand, or an invalid tree for unary and leaf nodes.
func (t Tree) Rhs() Tree { return Tree{t.n.b} }

// Same reports whether t and o are the same node.
func (t Tree) Same(o Tree) bool { return t.n == o.n }

// String returns an s-expression representation of the tree.
func (t Tree) String() string {
	return string(t.AppendString(nil))
}

// AppendString appends the s-expression of t to b and returns the result.
func (t Tree) AppendString(b []byte) []byte {
	switch op := t.Op(); {
	case op == OpInvalid:
		return append(b, "<invalid>"...)
	case op == OpConst:
		return strconv.AppendFloat(b, float64(t.n.value), 'g', -1, 32)
	case op == OpVarFree:
		b = append(b, "var"...)
		return strconv.AppendUint(b, uint64(t.n.v), 10)
	case op.IsVar():
		return append(b, op.String()...)
	default:
		b = append(b, '(')
		b = append(b, op.String()...)
		b = append(b, ' ')
		b = t.Lhs().AppendString(b)
		if op.Args() == 2 {
			b = append(b, ' ')
			b = t.Rhs().AppendString(b)
		}
		return append(b, ')')
	}
}

// Remap returns a copy of t with the coordinate variables replaced by
// x, y and z. Shared subtrees remain shared in the result.
func (t Tree) Remap(x, y, z Tree) Tree {
	mustValid(t)
	done := make(map[*node]*node)
	type frame struct {
		n        *node
		expanded bool
	}
	stack := []frame{{n: t.n}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := done[f.n]; ok {
			continue
		}
		switch f.n.op {
		case OpVarX:
			done[f.n] = x.n
			continue
		case OpVarY:
			done[f.n] = y.n
			continue
		case OpVarZ:
			done[f.n] = z.n
			continue
		case OpConst, OpVarFree:
			done[f.n] = f.n
			continue
		}
		if !f.expanded {
			stack = append(stack, frame{n: f.n, expanded: true})
			stack = append(stack, frame{n: f.n.a})
			if f.n.b != nil {
				stack = append(stack, frame{n: f.n.b})
			}
			continue
		}
		a := done[f.n.a]
		var b *node
		if f.n.b != nil {
			b = done[f.n.b]
		}
		if a == f.n.a && b == f.n.b {
			done[f.n] = f.n
		} else {
			done[f.n] = &node{op: f.n.op, a: a, b: b}
		}
	}
	return Tree{done[t.n]}
}

// Operation helpers.

func Add(a, b Tree) Tree     { return Binary(OpAdd, a, b) }
func Sub(a, b Tree) Tree     { return Binary(OpSub, a, b) }
func Mul(a, b Tree) Tree     { return Binary(OpMul, a, b) }
func Div(a, b Tree) Tree     { return Binary(OpDiv, a, b) }
func Min(a, b Tree) Tree     { return Binary(OpMin, a, b) }
func Max(a, b Tree) Tree     { return Binary(OpMax, a, b) }
func Atan2(y, x Tree) Tree   { return Binary(OpAtan2, y, x) }
func Pow(a, b Tree) Tree     { return Binary(OpPow, a, b) }
func Mod(a, b Tree) Tree     { return Binary(OpMod, a, b) }
func NanFill(a, b Tree) Tree { return Binary(OpNanFill, a, b) }
func Compare(a, b Tree) Tree { return Binary(OpCompare, a, b) }
func Square(a Tree) Tree     { return Unary(OpSquare, a) }
func Sqrt(a Tree) Tree       { return Unary(OpSqrt, a) }
func Neg(a Tree) Tree        { return Unary(OpNeg, a) }
func Abs(a Tree) Tree        { return Unary(OpAbs, a) }
func Sin(a Tree) Tree        { return Unary(OpSin, a) }
func Cos(a Tree) Tree        { return Unary(OpCos, a) }
func Tan(a Tree) Tree        { return Unary(OpTan, a) }
func Asin(a Tree) Tree       { return Unary(OpAsin, a) }
func Acos(a Tree) Tree       { return Unary(OpAcos, a) }
func Atan(a Tree) Tree       { return Unary(OpAtan, a) }
func Exp(a Tree) Tree        { return Unary(OpExp, a) }
func Log(a Tree) Tree        { return Unary(OpLog, a) }
func Recip(a Tree) Tree      { return Unary(OpRecip, a) }

// AddConst returns a + c.
func AddConst(a Tree, c float32) Tree { return Add(a, Const(c)) }

// Scale returns a * k.
func Scale(a Tree, k float32) Tree { return Mul(a, Const(k)) }

// Hypot returns sqrt(a*a + b*b).
func Hypot(a, b Tree) Tree { return Sqrt(Add(Square(a), Square(b))) }
