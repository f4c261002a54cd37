// Package brep builds adaptive cell trees from implicit surfaces for
// dual contouring.
//
// An implicit surface is described by an expression tree (package expr)
// whose zero set is the surface and whose negative values are inside.
// The expression is compiled into a tape (package eval) that is evaluated
// with interval arithmetic over regions, pruned as regions shrink, and
// sampled densely with gradients at leaf cells. The cell tree (package dc)
// classifies regions as empty, filled or ambiguous, solves a quadratic
// error function for each ambiguous leaf's vertex and collapses sibling
// cells when doing so does not alter the surface's topology. Package render
// drives the construction over a pool of goroutines.
//
// This root package holds the Region type shared by all of the above.
package brep
