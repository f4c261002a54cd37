package expr

// Opcode identifies the operation performed by an expression node or
// a compiled clause.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	OpConst
	OpVarX
	OpVarY
	OpVarZ
	OpVarFree

	// Unary operations.
	OpSquare
	OpSqrt
	OpNeg
	OpAbs
	OpSin
	OpCos
	OpTan
	OpAsin
	OpAcos
	OpAtan
	OpExp
	OpLog
	OpRecip

	// Binary operations.
	OpAdd
	OpMul
	OpMin
	OpMax
	OpSub
	OpDiv
	OpAtan2
	OpPow
	OpMod
	OpNanFill
	OpCompare

	// OpCopy forwards its single argument. It only appears in tapes,
	// where it keeps the root clause id stable after pruning.
	OpCopy

	opLast
)

var opNames = [opLast]string{
	OpInvalid: "invalid",
	OpConst:   "const",
	OpVarX:    "x",
	OpVarY:    "y",
	OpVarZ:    "z",
	OpVarFree: "var",
	OpSquare:  "square",
	OpSqrt:    "sqrt",
	OpNeg:     "neg",
	OpAbs:     "abs",
	OpSin:     "sin",
	OpCos:     "cos",
	OpTan:     "tan",
	OpAsin:    "asin",
	OpAcos:    "acos",
	OpAtan:    "atan",
	OpExp:     "exp",
	OpLog:     "log",
	OpRecip:   "recip",
	OpAdd:     "add",
	OpMul:     "mul",
	OpMin:     "min",
	OpMax:     "max",
	OpSub:     "sub",
	OpDiv:     "div",
	OpAtan2:   "atan2",
	OpPow:     "pow",
	OpMod:     "mod",
	OpNanFill: "nanfill",
	OpCompare: "compare",
	OpCopy:    "copy",
}

func (op Opcode) String() string {
	if op >= opLast {
		return "invalid"
	}
	return opNames[op]
}

// Args returns the number of operands taken by op.
func (op Opcode) Args() int {
	switch {
	case op >= OpSquare && op <= OpRecip, op == OpCopy:
		return 1
	case op >= OpAdd && op <= OpCompare:
		return 2
	}
	return 0
}

// IsCommutative reports whether swapping the operands leaves the result unchanged.
func (op Opcode) IsCommutative() bool {
	switch op {
	case OpAdd, OpMul, OpMin, OpMax:
		return true
	}
	return false
}

// IsChoice reports whether op selects one of its operands (min and max),
// which makes it a candidate for tape pruning.
func (op Opcode) IsChoice() bool {
	return op == OpMin || op == OpMax
}

// IsVar reports whether op is one of the coordinate or free variables.
func (op Opcode) IsVar() bool {
	return op >= OpVarX && op <= OpVarFree
}
