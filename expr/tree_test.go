package expr

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestOpcodeArgs(t *testing.T) {
	for _, test := range []struct {
		op   Opcode
		args int
	}{
		{OpConst, 0},
		{OpVarX, 0},
		{OpVarFree, 0},
		{OpSquare, 1},
		{OpRecip, 1},
		{OpCopy, 1},
		{OpAdd, 2},
		{OpCompare, 2},
		{OpInvalid, 0},
	} {
		if got := test.op.Args(); got != test.args {
			t.Errorf("%s: want %d args, got %d", test.op, test.args, got)
		}
	}
	if !OpMin.IsCommutative() || OpSub.IsCommutative() {
		t.Error("bad commutativity")
	}
}

func TestTreeString(t *testing.T) {
	tree := Add(Mul(X(), Const(2)), Min(Y(), Z()))
	const want = "(add (mul x 2) (min y z))"
	if got := tree.String(); got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestNewVarUnique(t *testing.T) {
	a, b := NewVar(), NewVar()
	if a.Var() == b.Var() {
		t.Fatal("free variables share id")
	}
	if a.Op() != OpVarFree {
		t.Fatal("bad opcode", a.Op())
	}
}

func TestRemapSharesSubtrees(t *testing.T) {
	x := X()
	sq := Square(x)
	tree := Add(sq, sq)
	moved := tree.Remap(Y(), Y(), Z())
	if moved.Op() != OpAdd {
		t.Fatal("remap changed root opcode")
	}
	if !moved.Lhs().Same(moved.Rhs()) {
		t.Error("remap duplicated a shared subtree")
	}
	if moved.Lhs().Lhs().Op() != OpVarY {
		t.Error("x not replaced by y")
	}
	// Trees without coordinates are returned as is.
	c := Add(Const(1), Const(2))
	if !c.Remap(Y(), Z(), X()).Same(c) {
		t.Error("remap copied a constant tree")
	}
}

func TestUnaryPanicsOnBinaryOp(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Unary(OpAdd, X())
}

func TestShapeErrors(t *testing.T) {
	for _, test := range []struct {
		name string
		fn   func() (Tree, error)
	}{
		{"sphere", func() (Tree, error) { return Sphere(0) }},
		{"circle", func() (Tree, error) { return Circle(-1) }},
		{"box", func() (Tree, error) { return Box(r3.Vec{X: 1, Y: 0, Z: 1}) }},
		{"torus", func() (Tree, error) { return Torus(1, 2) }},
		{"cylinder", func() (Tree, error) { return Cylinder(1, 0) }},
		{"plane", func() (Tree, error) { return Plane(r3.Vec{}, 0) }},
		{"rectangle", func() (Tree, error) { return Rectangle(r3.Vec{X: 1}, r3.Vec{}) }},
		{"mitered", func() (Tree, error) { return BoxMitered(r3.Vec{}, r3.Vec{}) }},
	} {
		tree, err := test.fn()
		if err == nil {
			t.Errorf("%s: expected error", test.name)
			continue
		}
		if !errors.IsType(err, ErrTypeInvalidShape) {
			t.Errorf("%s: unexpected error type %q", test.name, errors.Type(err))
		}
		if tree.IsValid() {
			t.Errorf("%s: valid tree returned with error", test.name)
		}
	}
}
