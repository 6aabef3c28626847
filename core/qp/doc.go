// Package qp solves the small convex programs built by the horizon solver.
//
// Problems are stated in standard form,
//
//	minimize    cᵀx + w·(aᵀx − a0)²
//	subject to  A x = b
//	            x ≥ 0
//
// optionally with a feasible starting basis, which lets the simplex skip its
// phase one search. Linear programs go straight to the gonum simplex
// implementation. The single quadratic term is handled by OuterApprox, which
// replaces it with an epigraph variable bounded below by tangent cuts until
// the cut model is tight.
package qp
