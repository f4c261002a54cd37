package eval

import (
	"github.com/soypat/glgl/math/ms3"
)

// Tape is an immutable list of clauses in evaluation order; the last
// clause computes the root. Pruned tapes keep a pointer to the tape
// they were pruned from and the region over which pruning was valid.
type Tape struct {
	clauses []Clause
	parent  *Tape
	// lower and upper bound the region this tape is valid in.
	// Unused when parent is nil.
	lower, upper ms3.Vec
}

// Len returns the number of clauses in the tape.
func (t *Tape) Len() int { return len(t.clauses) }

// Clauses returns the tape's clauses in evaluation order. The returned
// slice must not be modified.
func (t *Tape) Clauses() []Clause { return t.clauses }

// Root returns the id of the clause that holds the tape's result.
func (t *Tape) Root() ClauseID {
	if len(t.clauses) == 0 {
		return 0
	}
	return t.clauses[len(t.clauses)-1].ID
}

// Parent returns the tape this one was pruned from, or nil for a deck's root tape.
func (t *Tape) Parent() *Tape { return t.parent }

// Bounds returns the region over which the tape was pruned. ok is false
// for a deck's root tape, which is valid everywhere.
func (t *Tape) Bounds() (lower, upper ms3.Vec, ok bool) {
	return t.lower, t.upper, t.parent != nil
}

// Base returns the closest ancestor of t, t included, that is valid over
// the whole box [lower, upper].
func (t *Tape) Base(lower, upper ms3.Vec) *Tape {
	for t.parent != nil {
		if t.lower.X <= lower.X && t.lower.Y <= lower.Y && t.lower.Z <= lower.Z &&
			upper.X <= t.upper.X && upper.Y <= t.upper.Y && upper.Z <= t.upper.Z {
			return t
		}
		t = t.parent
	}
	return t
}
