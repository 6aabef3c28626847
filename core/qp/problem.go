package qp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInfeasible indicates no point satisfies the constraints.
	ErrInfeasible = errors.New("qp: problem is infeasible")
	// ErrUnbounded indicates the objective decreases without bound.
	ErrUnbounded = errors.New("qp: problem is unbounded")
	// ErrNoConvergence indicates the cut loop hit its iteration limit.
	ErrNoConvergence = errors.New("qp: outer approximation did not converge")
	// ErrNonConvex indicates a negative quadratic weight.
	ErrNonConvex = errors.New("qp: quadratic weight must be non-negative")
	// ErrQuadratic is returned by linear-only solvers given a quadratic term.
	ErrQuadratic = errors.New("qp: solver does not support quadratic terms")
)

// Quad is the quadratic term Weight·(Coef·x − Offset)².
type Quad struct {
	Weight float64
	Coef   []float64
	Offset float64
}

// Value evaluates the term at x.
func (q *Quad) Value(x []float64) float64 {
	if q == nil {
		return 0
	}
	d := q.Deviation(x)
	return q.Weight * d * d
}

// Deviation returns Coef·x − Offset.
func (q *Quad) Deviation(x []float64) float64 {
	var d float64
	for i, c := range q.Coef {
		d += c * x[i]
	}
	return d - q.Offset
}

// Problem is a standard form program over non-negative variables.
//
// Basis, when set, lists one column of A per row whose basic solution is
// feasible. Solvers start from it and fall back to their own search when it
// turns out not to be.
type Problem struct {
	C     []float64
	A     *mat.Dense
	B     []float64
	Quad  *Quad
	Basis []int
}

// NumVars returns the number of decision variables.
func (p Problem) NumVars() int { return len(p.C) }

// Validate checks the dimensions of every block.
func (p Problem) Validate() error {
	n := len(p.C)
	if n == 0 {
		return errors.New("qp: no variables")
	}
	if p.A == nil {
		return errors.New("qp: no constraints")
	}
	r, c := p.A.Dims()
	if c != n || r != len(p.B) {
		return fmt.Errorf("qp: A is %dx%d, want %dx%d", r, c, len(p.B), n)
	}
	if r > n {
		return fmt.Errorf("qp: %d constraints for %d variables", r, n)
	}
	if p.Quad != nil && len(p.Quad.Coef) != n {
		return fmt.Errorf("qp: quadratic coefficients have length %d, want %d", len(p.Quad.Coef), n)
	}
	if p.Basis != nil {
		if len(p.Basis) != r {
			return fmt.Errorf("qp: basis has %d columns, want %d", len(p.Basis), r)
		}
		seen := make(map[int]bool, r)
		for _, j := range p.Basis {
			if j < 0 || j >= n || seen[j] {
				return fmt.Errorf("qp: invalid basis column %d", j)
			}
			seen[j] = true
		}
	}
	return nil
}

// Objective evaluates the full objective at x.
func (p Problem) Objective(x []float64) float64 {
	var f float64
	for i, c := range p.C {
		f += c * x[i]
	}
	return f + p.Quad.Value(x)
}

// Solution holds the optimal point.
type Solution struct {
	X          []float64
	Objective  float64
	Iterations int // LP solves performed
}

// Solver solves a Problem. Implementations must not retain state between
// calls so that one value can serve concurrent episodes.
type Solver interface {
	Solve(p Problem) (Solution, error)
}

// Func adapts a function to the Solver interface.
type Func func(p Problem) (Solution, error)

// Solve calls f.
func (f Func) Solve(p Problem) (Solution, error) { return f(p) }

// Default returns the solver used when none is injected.
func Default() Solver {
	return OuterApprox{LP: Simplex{}}
}
