package eval

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// MaxEpsilons bounds the number of distinct directions a Feature holds.
// Directions beyond the bound are reported incompatible.
const MaxEpsilons = 32

// planarTol is the tolerance on |cos| when deciding whether two cross
// products share an axis.
const planarTol = 1e-9

// Choice records which operand of a min or max clause a Feature follows.
// Choice is 0 for the first operand and 1 for the second.
type Choice struct {
	ID     ClauseID
	Choice int
}

// Less orders choices by clause id, then by operand.
func (c Choice) Less(o Choice) bool {
	if c.ID != o.ID {
		return c.ID < o.ID
	}
	return c.Choice < o.Choice
}

// PlanarResult is the outcome of Feature.CheckPlanar.
type PlanarResult int

const (
	NotPlanar PlanarResult = iota
	PlanarFail
	PlanarSuccess
)

// Feature is a set of branch choices at a point where several min or max
// operands tie, together with the epsilon directions in which each choice
// holds. A Feature is valid if some direction is consistent with all of
// its epsilons at once, that is, the epsilons lie in an open half space.
type Feature struct {
	// Deriv is the gradient of the expression under the feature's choices.
	Deriv r3.Vec

	choices  []Choice
	epsilons []r3.Vec
	literal  map[ClauseID]r3.Vec
}

// Choices returns the feature's choices, most recently pushed first.
func (f *Feature) Choices() []Choice { return f.choices }

// Epsilons returns the feature's normalized, deduplicated epsilon directions.
func (f *Feature) Epsilons() []r3.Vec { return f.epsilons }

// EpsilonFor returns the unnormalized epsilon pushed with the choice on clause id.
func (f *Feature) EpsilonFor(id ClauseID) (r3.Vec, bool) {
	e, ok := f.literal[id]
	return e, ok
}

// HasChoice reports whether the feature holds a choice on clause id.
func (f *Feature) HasChoice(id ClauseID) bool {
	return slices.ContainsFunc(f.choices, func(c Choice) bool { return c.ID == id })
}

// Clone returns a deep copy of f.
func (f *Feature) Clone() Feature {
	out := Feature{
		Deriv:    f.Deriv,
		choices:  slices.Clone(f.choices),
		epsilons: slices.Clone(f.epsilons),
	}
	if f.literal != nil {
		out.literal = make(map[ClauseID]r3.Vec, len(f.literal))
		for k, v := range f.literal {
			out.literal[k] = v
		}
	}
	return out
}

// IsCompatible reports whether direction e can be added to the feature
// while keeping every epsilon in a common open half space.
func (f *Feature) IsCompatible(e r3.Vec) bool {
	if r3.Norm(e) == 0 {
		return false
	}
	e = r3.Unit(e)
	switch len(f.epsilons) {
	case 0:
		return true
	case 1:
		return r3.Dot(e, f.epsilons[0]) != -1
	}
	for _, x := range f.epsilons {
		if x == e {
			return true
		}
	}
	if len(f.epsilons) >= MaxEpsilons {
		return false
	}

	switch f.CheckPlanar(e) {
	case PlanarFail:
		return false
	case PlanarSuccess:
		return true
	}

	// Every pair of directions spans a candidate plane. The set is valid
	// if all remaining directions are strictly on one side of some plane.
	es := append(slices.Clone(f.epsilons), e)
	for i, a := range es {
		for j, b := range es {
			if i == j || r3.Dot(a, b) == -1 {
				continue
			}
			n := r3.Cross(a, b)
			sign := 0
			passed := true
			for k, c := range es {
				if !passed {
					break
				}
				if k == i || k == j {
					continue
				}
				switch d := r3.Dot(n, c); {
				case d < 0:
					passed = sign <= 0
					sign = -1
				case d > 0:
					passed = sign >= 0
					sign = 1
				default:
					passed = false
				}
			}
			if passed {
				return true
			}
		}
	}
	return false
}

// CheckPlanar handles the case where the epsilons and e all lie in one
// plane. The angle of each epsilon is measured from e with a sign given
// by the rotation direction around the plane's normal; the set is valid
// if all angles fit in an arc narrower than pi.
func (f *Feature) CheckPlanar(e r3.Vec) PlanarResult {
	if len(f.epsilons) < 2 {
		return NotPlanar
	}
	e = r3.Unit(e)
	var axis r3.Vec
	for _, x := range f.epsilons {
		c := r3.Cross(e, x)
		if n := r3.Norm(c); n > 0 {
			axis = r3.Scale(1/n, c)
			break
		}
	}
	if axis == (r3.Vec{}) {
		return NotPlanar
	}
	lo, hi := 0.0, 0.0
	for _, x := range f.epsilons {
		c := r3.Cross(e, x)
		if n := r3.Norm(c); n > 0 && 1-math.Abs(r3.Dot(c, axis)/n) > planarTol {
			return NotPlanar
		}
		angle := math.Atan2(r3.Dot(c, axis), r3.Dot(e, x))
		lo = math.Min(lo, angle)
		hi = math.Max(hi, angle)
	}
	if hi-lo >= math.Pi {
		return PlanarFail
	}
	return PlanarSuccess
}

// Push adds choice to the feature if e is compatible with the stored
// epsilons. The choice is placed first and e is stored unnormalized for
// EpsilonFor. It returns false and leaves the feature unchanged otherwise.
func (f *Feature) Push(e r3.Vec, choice Choice) bool {
	if !f.IsCompatible(e) {
		return false
	}
	f.choices = slices.Insert(f.choices, 0, choice)
	f.setLiteral(choice.ID, e)
	e = r3.Unit(e)
	for _, x := range f.epsilons {
		if x == e {
			return true
		}
	}
	f.epsilons = append(f.epsilons, e)
	return true
}

// PushRaw appends choice and the normalized e without a compatibility check.
func (f *Feature) PushRaw(e r3.Vec, choice Choice) {
	e = r3.Unit(e)
	f.epsilons = append(f.epsilons, e)
	f.choices = append(f.choices, choice)
	f.setLiteral(choice.ID, e)
}

// pushChoice records a choice that imposes no direction.
func (f *Feature) pushChoice(choice Choice) {
	f.choices = slices.Insert(f.choices, 0, choice)
}

func (f *Feature) setLiteral(id ClauseID, e r3.Vec) {
	if f.literal == nil {
		f.literal = make(map[ClauseID]r3.Vec)
	}
	f.literal[id] = e
}
