package qp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultMaxIterations bounds the number of LP solves in OuterApprox.
	DefaultMaxIterations = 200
	// DefaultGapTolerance is the relative gap at which the cut model is tight.
	DefaultGapTolerance = 1e-7
	// cutTol is the relative distance under which two tangent points are
	// the same cut.
	cutTol = 1e-9
)

// OuterApprox handles one convex quadratic term by outer linearisation.
// The term is replaced by an epigraph variable z ≥ 0 and the constraint
// z ≥ w·d² is approximated by tangents z ≥ w·(2·dₖ·d − dₖ²), one row and
// one slack column per cut.
type OuterApprox struct {
	LP            Solver
	MaxIterations int
	Tol           float64
}

// Solve runs the cut loop. Problems without a quadratic term are forwarded
// to the LP solver unchanged.
func (o OuterApprox) Solve(p Problem) (Solution, error) {
	if err := p.Validate(); err != nil {
		return Solution{}, err
	}
	inner := o.LP
	if inner == nil {
		inner = Simplex{}
	}
	if p.Quad == nil || p.Quad.Weight == 0 {
		return inner.Solve(Problem{C: p.C, A: p.A, B: p.B, Basis: p.Basis})
	}
	if p.Quad.Weight < 0 || math.IsNaN(p.Quad.Weight) {
		return Solution{}, ErrNonConvex
	}
	maxIter := o.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := o.Tol
	if tol <= 0 {
		tol = DefaultGapTolerance
	}

	m, n := p.A.Dims()
	w := p.Quad.Weight
	// The base rows are copied once. Cut k owns row m+k and slack column
	// n+1+k; column n is z.
	full := mat.NewDense(m+maxIter, n+1+maxIter, nil)
	full.Slice(0, m, 0, n).(*mat.Dense).Copy(p.A)
	c := make([]float64, n+1+maxIter)
	copy(c, p.C)
	c[n] = 1
	b := make([]float64, m, m+maxIter)
	copy(b, p.B)

	var start []float64
	if p.Basis != nil {
		if x0, ok := basicPoint(p.A, p.B, p.Basis); ok {
			start = x0
		}
	}

	var cuts []float64
	for it := 1; it <= maxIter; it++ {
		k := len(cuts)
		sub := Problem{C: p.C, A: p.A, B: p.B}
		if start != nil {
			sub.Basis = p.Basis
		}
		if k > 0 {
			a := full.Slice(0, m+k, 0, n+1+k).(*mat.Dense)
			sub = Problem{C: c[:n+1+k], A: a, B: b[:m+k]}
			if start != nil {
				sub.Basis = cutBasis(a, b[:m+k], p.Basis, start, m, n)
			}
		}
		sol, err := inner.Solve(sub)
		if err != nil {
			return Solution{}, err
		}
		x := sol.X[:n]
		var z float64
		if k > 0 {
			z = sol.X[n]
		}
		d := p.Quad.Deviation(x)
		q := w * d * d
		if q-z <= tol*(1+q) || hasCut(cuts, d) {
			out := make([]float64, n)
			copy(out, x)
			return Solution{X: out, Objective: p.Objective(out), Iterations: it}, nil
		}
		if k == maxIter-1 {
			break
		}
		row := m + k
		for i, coef := range p.Quad.Coef {
			if coef != 0 {
				full.Set(row, i, 2*w*d*coef)
			}
		}
		full.Set(row, n, -1)
		full.Set(row, n+1+k, 1)
		b = append(b, 2*w*d*p.Quad.Offset+w*d*d)
		cuts = append(cuts, d)
	}
	return Solution{}, ErrNoConvergence
}

// hasCut reports whether a tangent at d is already in the model.
func hasCut(cuts []float64, d float64) bool {
	for _, dk := range cuts {
		if math.Abs(d-dk) <= cutTol*(1+math.Abs(d)) {
			return true
		}
	}
	return false
}

// cutBasis extends the base basis with the cut slacks, evaluated at the
// base starting point with z = 0. When that point violates a cut, z enters
// in place of the slack of the most violated one.
func cutBasis(a *mat.Dense, b []float64, base []int, start []float64, m, n int) []int {
	rows, _ := a.Dims()
	basis := make([]int, 0, rows)
	basis = append(basis, base...)
	worst, worstSlack := -1, 0.0
	for r := m; r < rows; r++ {
		s := b[r]
		for i := 0; i < n; i++ {
			s -= a.At(r, i) * start[i]
		}
		if s < worstSlack {
			worst, worstSlack = r, s
		}
	}
	for r := m; r < rows; r++ {
		if r == worst {
			basis = append(basis, n)
			continue
		}
		basis = append(basis, n+1+(r-m))
	}
	return basis
}
