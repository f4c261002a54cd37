package dc

import "github.com/aukilabs/go-tooling/pkg/errors"

// Error types returned by this package. Callers branch on them with
// errors.IsType.
const (
	// ErrTypePrecondition is returned by leaf accessors called on a cell
	// that has no leaf data, such as a branch.
	ErrTypePrecondition = "precondition"
	// ErrTypePoolExhausted is returned when a pool can not allocate.
	ErrTypePoolExhausted = "pool_exhausted"
	// ErrTypeChildrenPending is returned by CollectChildren when a child
	// has not been evaluated yet.
	ErrTypeChildrenPending = "children_pending"
	// ErrTypeIntersection is returned when an edge is given two different
	// intersection lists.
	ErrTypeIntersection = "intersection_conflict"
)

func errPrecondition(state State) error {
	return errors.New("cell has no leaf data").
		WithType(ErrTypePrecondition).
		WithTag("state", state.String())
}
