package eval

import (
	"math"

	math32 "github.com/chewxy/math32"
	"github.com/soypat/brep/expr"
)

// Interval is a closed range of single precision values. Either bound may be infinite.
type Interval struct {
	Lo, Hi float32
}

var (
	posInf = math32.Inf(1)
	negInf = math32.Inf(-1)
	// everything is the interval returned when no bound can be computed.
	everything = Interval{negInf, posInf}
)

// Point returns the degenerate interval [v, v].
func Point(v float32) Interval { return Interval{v, v} }

// Contains reports whether v lies within the interval.
func (i Interval) Contains(v float32) bool { return i.Lo <= v && v <= i.Hi }

// ContainsInterval reports whether o lies within i.
func (i Interval) ContainsInterval(o Interval) bool { return i.Lo <= o.Lo && o.Hi <= i.Hi }

// Width returns Hi - Lo.
func (i Interval) Width() float32 { return i.Hi - i.Lo }

// IsDegenerate reports whether the interval holds a single value.
func (i Interval) IsDegenerate() bool { return i.Lo == i.Hi }

// Hull returns the smallest interval containing both i and o.
func (i Interval) Hull(o Interval) Interval {
	return Interval{math32.Min(i.Lo, o.Lo), math32.Max(i.Hi, o.Hi)}
}

func (i Interval) hasInf() bool   { return math32.IsInf(i.Lo, -1) || math32.IsInf(i.Hi, 1) }
func (i Interval) hasZero() bool  { return i.Lo <= 0 && i.Hi >= 0 }
func (i Interval) isBroken() bool { return math32.IsNaN(i.Lo) || math32.IsNaN(i.Hi) }

// roundOutSlop bounds the disagreement between math32 evaluations at
// nearby arguments, in units of the float32 epsilon.
const roundOutSlop = 8 * 0x1p-23

// roundOut widens i by lo below and hi above. Infinite bounds stay infinite.
func (i Interval) roundOut(lo, hi float32) Interval {
	if !math32.IsInf(i.Lo, 0) {
		i.Lo -= lo
	}
	if !math32.IsInf(i.Hi, 0) {
		i.Hi += hi
	}
	return i
}

// roundOutRel widens each bound by a few ulps of its own magnitude.
func (i Interval) roundOutRel() Interval {
	return i.roundOut(slop(i.Lo), slop(i.Hi))
}

func slop(v float32) float32 { return roundOutSlop * math32.Max(1, math32.Abs(v)) }

// minmax4 returns the bounds of four candidate values. NaN candidates,
// which only arise from 0*inf or inf/inf, are ignored.
func minmax4(a, b, c, d float32) Interval {
	out := Interval{posInf, negInf}
	for _, v := range [4]float32{a, b, c, d} {
		if math32.IsNaN(v) {
			continue
		}
		out.Lo = math32.Min(out.Lo, v)
		out.Hi = math32.Max(out.Hi, v)
	}
	if out.Lo > out.Hi {
		return everything
	}
	return out
}

// unaryInterval computes the interval result of op applied to a. The
// boolean result is true when the operation may produce NaN for some
// value in a.
func unaryInterval(op expr.Opcode, a Interval) (out Interval, nan bool) {
	switch op {
	case expr.OpSquare:
		lo, hi := a.Lo*a.Lo, a.Hi*a.Hi
		if a.hasZero() {
			out = Interval{0, math32.Max(lo, hi)}
		} else {
			out = Interval{math32.Min(lo, hi), math32.Max(lo, hi)}
		}
	case expr.OpSqrt:
		nan = a.Lo < 0
		out = Interval{math32.Sqrt(math32.Max(a.Lo, 0)), math32.Sqrt(math32.Max(a.Hi, 0))}
	case expr.OpNeg:
		out = Interval{-a.Hi, -a.Lo}
	case expr.OpAbs:
		switch {
		case a.Lo >= 0:
			out = a
		case a.Hi <= 0:
			out = Interval{-a.Hi, -a.Lo}
		default:
			out = Interval{0, math32.Max(-a.Lo, a.Hi)}
		}
	case expr.OpSin:
		out, nan = sinInterval(a, 0, math32.Sin)
	case expr.OpCos:
		out, nan = sinInterval(a, math.Pi/2, math32.Cos)
	case expr.OpTan:
		nan = a.hasInf()
		out = tanInterval(a)
	case expr.OpAsin:
		nan = a.Lo < -1 || a.Hi > 1
		out = Interval{math32.Asin(clampUnit(a.Lo)), math32.Asin(clampUnit(a.Hi))}.roundOutRel()
	case expr.OpAcos:
		nan = a.Lo < -1 || a.Hi > 1
		out = Interval{math32.Acos(clampUnit(a.Hi)), math32.Acos(clampUnit(a.Lo))}.roundOutRel()
		out.Lo = math32.Max(out.Lo, 0)
	case expr.OpAtan:
		out = Interval{math32.Atan(a.Lo), math32.Atan(a.Hi)}.roundOutRel()
	case expr.OpExp:
		out = Interval{math32.Exp(a.Lo), math32.Exp(a.Hi)}.roundOutRel()
		out.Lo = math32.Max(out.Lo, 0)
	case expr.OpLog:
		nan = a.Lo < 0
		out = Interval{math32.Log(math32.Max(a.Lo, 0)), math32.Log(math32.Max(a.Hi, 0))}.roundOutRel()
	case expr.OpRecip:
		return divInterval(Point(1), a)
	default:
		panic("eval: unknown unary operation")
	}
	if out.isBroken() {
		return everything, true
	}
	return out, nan
}

func clampUnit(v float32) float32 {
	return math32.Max(-1, math32.Min(1, v))
}

// sinInterval returns the range of sin(x + phase) for x in a, where fn
// computes sin(x + phase). Peak tests run in double precision so that they
// are exact for the float32 inputs. Endpoints come from fn, the same
// function the point evaluator uses, widened by the error fn accumulates
// while reducing its argument.
func sinInterval(a Interval, phase float64, fn func(float32) float32) (Interval, bool) {
	if a.hasInf() {
		return Interval{-1, 1}, true
	}
	lo, hi := float64(a.Lo)+phase, float64(a.Hi)+phase
	if hi-lo >= 2*math.Pi {
		return Interval{-1, 1}, false
	}
	slo, shi := fn(a.Lo), fn(a.Hi)
	tol := slop(math32.Max(math32.Abs(a.Lo), math32.Abs(a.Hi)))
	out := Interval{math32.Min(slo, shi), math32.Max(slo, shi)}.roundOut(tol, tol)
	out.Lo = math32.Max(out.Lo, -1)
	out.Hi = math32.Min(out.Hi, 1)
	// Peaks at pi/2 + 2k*pi, troughs at 3pi/2 + 2k*pi.
	if k := math.Ceil((lo - math.Pi/2) / (2 * math.Pi)); math.Pi/2+2*math.Pi*k <= hi {
		out.Hi = 1
	}
	if k := math.Ceil((lo - 3*math.Pi/2) / (2 * math.Pi)); 3*math.Pi/2+2*math.Pi*k <= hi {
		out.Lo = -1
	}
	return out, false
}

func tanInterval(a Interval) Interval {
	if a.hasInf() {
		return everything
	}
	lo, hi := float64(a.Lo), float64(a.Hi)
	if hi-lo >= math.Pi {
		return everything
	}
	// Poles at pi/2 + k*pi.
	if k := math.Ceil((lo - math.Pi/2) / math.Pi); math.Pi/2+math.Pi*k <= hi {
		return everything
	}
	tlo, thi := math32.Tan(a.Lo), math32.Tan(a.Hi)
	// The slope 1+tan² amplifies argument reduction error.
	x := math32.Max(math32.Abs(a.Lo), math32.Abs(a.Hi))
	return Interval{tlo, thi}.roundOut(slop(x)*(1+tlo*tlo), slop(x)*(1+thi*thi))
}

// binaryInterval computes the interval result of op applied to a and b.
func binaryInterval(op expr.Opcode, a, b Interval) (out Interval, nan bool) {
	switch op {
	case expr.OpAdd:
		nan = (math32.IsInf(a.Hi, 1) && math32.IsInf(b.Lo, -1)) ||
			(math32.IsInf(a.Lo, -1) && math32.IsInf(b.Hi, 1))
		out = Interval{a.Lo + b.Lo, a.Hi + b.Hi}
	case expr.OpSub:
		nan = (math32.IsInf(a.Hi, 1) && math32.IsInf(b.Hi, 1)) ||
			(math32.IsInf(a.Lo, -1) && math32.IsInf(b.Lo, -1))
		out = Interval{a.Lo - b.Hi, a.Hi - b.Lo}
	case expr.OpMul:
		nan = (a.hasZero() && b.hasInf()) || (b.hasZero() && a.hasInf())
		out = minmax4(a.Lo*b.Lo, a.Lo*b.Hi, a.Hi*b.Lo, a.Hi*b.Hi)
	case expr.OpDiv:
		return divInterval(a, b)
	case expr.OpMin:
		out = Interval{math32.Min(a.Lo, b.Lo), math32.Min(a.Hi, b.Hi)}
	case expr.OpMax:
		out = Interval{math32.Max(a.Lo, b.Lo), math32.Max(a.Hi, b.Hi)}
	case expr.OpAtan2:
		if a.Lo > 0 || a.Hi < 0 || b.Lo > 0 {
			out = minmax4(math32.Atan2(a.Lo, b.Lo), math32.Atan2(a.Lo, b.Hi),
				math32.Atan2(a.Hi, b.Lo), math32.Atan2(a.Hi, b.Hi)).roundOutRel()
			out.Lo = math32.Max(out.Lo, -math32.Pi)
			out.Hi = math32.Min(out.Hi, math32.Pi)
		} else {
			out = Interval{-math32.Pi, math32.Pi}
		}
	case expr.OpPow:
		return powInterval(a, b)
	case expr.OpMod:
		return modInterval(a, b)
	case expr.OpNanFill:
		// Resolved by the evaluator, which knows whether a may be NaN.
		out = a
	case expr.OpCompare:
		switch {
		case a.Hi < b.Lo:
			out = Point(-1)
		case a.Lo > b.Hi:
			out = Point(1)
		default:
			out = Interval{-1, 1}
			if a.Lo >= b.Hi {
				out.Lo = 0
			}
			if a.Hi <= b.Lo {
				out.Hi = 0
			}
		}
	default:
		panic("eval: unknown binary operation")
	}
	if out.isBroken() {
		return everything, true
	}
	return out, nan
}

// divInterval returns a / b. Division by an interval containing zero
// is unbounded.
func divInterval(a, b Interval) (Interval, bool) {
	nan := (a.hasZero() && b.hasZero()) || (a.hasInf() && b.hasInf())
	if b.hasZero() {
		return everything, nan
	}
	return minmax4(a.Lo/b.Lo, a.Lo/b.Hi, a.Hi/b.Lo, a.Hi/b.Hi), nan
}

func powInterval(a, b Interval) (Interval, bool) {
	if b.IsDegenerate() && b.Lo == math32.Trunc(b.Lo) && !b.hasInf() {
		n := b.Lo
		even := math32.Mod(n, 2) == 0
		plo, phi := math32.Pow(a.Lo, n), math32.Pow(a.Hi, n)
		switch {
		case n == 0:
			return Point(1), false
		case even && a.hasZero() && n > 0:
			hi := math32.Max(plo, phi)
			return Interval{0, hi + slop(hi)}, false
		case n < 0 && a.hasZero():
			return everything, a.Lo == 0 && a.Hi == 0
		}
		return Interval{math32.Min(plo, phi), math32.Max(plo, phi)}.roundOutRel(), false
	}
	nan := a.Lo < 0
	lo := math32.Max(a.Lo, 0)
	hi := math32.Max(a.Hi, 0)
	out := minmax4(math32.Pow(lo, b.Lo), math32.Pow(lo, b.Hi), math32.Pow(hi, b.Lo), math32.Pow(hi, b.Hi)).roundOutRel()
	out.Lo = math32.Max(out.Lo, 0)
	return out, nan
}

// modInterval returns the positive modulo of a by b, which lies in
// [0, |b|) whatever the sign of b.
func modInterval(a, b Interval) (Interval, bool) {
	if b.hasZero() {
		return everything, true
	}
	if b.Hi < 0 {
		return Interval{0, -b.Lo}, a.hasInf()
	}
	if a.hasInf() {
		return Interval{0, b.Hi}, true
	}
	// Within one period the modulo is increasing. Narrow enough inputs
	// whose remainders are ordered cannot span a period boundary.
	if b.IsDegenerate() && a.Hi-a.Lo < b.Lo/2 {
		if lo, hi := posMod(a.Lo, b.Lo), posMod(a.Hi, b.Lo); lo <= hi {
			return Interval{lo, hi}, false
		}
	}
	return Interval{0, b.Hi}, false
}

// posMod returns the modulo of a by b in the range [0, |b|).
func posMod(a, b float32) float32 {
	m := math32.Mod(a, b)
	if m < 0 {
		m += math32.Abs(b)
	}
	return m
}
