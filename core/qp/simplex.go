package qp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// DefaultTolerance is the simplex optimality tolerance.
const DefaultTolerance = 1e-9

// basisTol is the most negative basic value accepted as feasible. It is
// tighter than the check lp.Simplex applies before panicking.
const basisTol = 1e-14

// perturbations are the right-hand side shifts tried, in order, after a
// numerical simplex failure.
var perturbations = []float64{1e-9, 1e-8}

// lpSimplex points to the LP routine. Tests override it to simulate
// numerical failures.
var lpSimplex = lp.Simplex

// Simplex solves linear programs with gonum's simplex method.
type Simplex struct {
	Tol float64
}

// Solve runs the simplex from p.Basis when it is feasible, from gonum's
// phase one otherwise. A numerical failure from a known basis is retried
// on slightly shifted right-hand sides that keep the basis strictly
// feasible, which breaks the degenerate ties Bland's rule trips on.
func (s Simplex) Solve(p Problem) (Solution, error) {
	if err := p.Validate(); err != nil {
		return Solution{}, err
	}
	if p.Quad != nil && p.Quad.Weight != 0 {
		return Solution{}, ErrQuadratic
	}
	tol := s.Tol
	if tol <= 0 {
		tol = DefaultTolerance
	}

	basis := p.Basis
	var ab *mat.Dense
	if basis != nil {
		var ok bool
		if _, ab, ok = basicSolution(p.A, p.B, basis); !ok {
			basis = nil
		}
	}

	x, err := runSimplex(p.C, p.A, p.B, tol, basis)
	for i := 0; err != nil && basis != nil && retryable(err) && i < len(perturbations); i++ {
		x, err = runSimplex(p.C, p.A, shift(ab, p.B, perturbations[i]), tol, basis)
	}
	if err != nil {
		return Solution{}, mapLPError(err)
	}
	return Solution{X: x, Objective: p.Objective(x), Iterations: 1}, nil
}

// runSimplex calls the LP routine and turns its panics into errors.
func runSimplex(c []float64, a mat.Matrix, b []float64, tol float64, basis []int) (x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			x, err = nil, fmt.Errorf("lp: %v", r)
		}
	}()
	_, x, err = lpSimplex(c, a, b, tol, basis)
	return x, err
}

// basicSolution solves the basis columns of a against b and reports whether
// the result is non-negative.
func basicSolution(a mat.Matrix, b []float64, basis []int) ([]float64, *mat.Dense, bool) {
	m, _ := a.Dims()
	ab := mat.NewDense(m, len(basis), nil)
	col := make([]float64, m)
	for j, idx := range basis {
		mat.Col(col, idx, a)
		ab.SetCol(j, col)
	}
	xb := mat.NewVecDense(m, nil)
	if err := xb.SolveVec(ab, mat.NewVecDense(m, b)); err != nil {
		return nil, nil, false
	}
	out := make([]float64, m)
	for i := range out {
		out[i] = xb.AtVec(i)
		if out[i] < -basisTol {
			return nil, nil, false
		}
	}
	return out, ab, true
}

// basicPoint expands the basic solution to a full point with n entries.
func basicPoint(a mat.Matrix, b []float64, basis []int) ([]float64, bool) {
	xb, _, ok := basicSolution(a, b, basis)
	if !ok {
		return nil, false
	}
	_, n := a.Dims()
	x := make([]float64, n)
	for i, idx := range basis {
		x[idx] = xb[i]
	}
	return x, true
}

// shift returns b + ab·δ with δᵢ = eps·(1 + i/m), raising every basic value
// by a distinct positive amount.
func shift(ab *mat.Dense, b []float64, eps float64) []float64 {
	m := len(b)
	delta := make([]float64, m)
	for i := range delta {
		delta[i] = eps * (1 + float64(i)/float64(m))
	}
	var out mat.VecDense
	out.MulVec(ab, mat.NewVecDense(m, delta))
	sb := make([]float64, m)
	for i := range sb {
		sb[i] = b[i] + out.AtVec(i)
	}
	return sb
}

func retryable(err error) bool {
	return !errors.Is(err, lp.ErrInfeasible) && !errors.Is(err, lp.ErrUnbounded)
}

func mapLPError(err error) error {
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return fmt.Errorf("%w: %v", ErrInfeasible, err)
	case errors.Is(err, lp.ErrUnbounded):
		return fmt.Errorf("%w: %v", ErrUnbounded, err)
	default:
		return fmt.Errorf("qp: simplex: %w", err)
	}
}
