package config

import (
	"fmt"

	"github.com/kilianp07/peakmpc/core/qp"
)

// SolverConfig tunes the horizon solver.
type SolverConfig struct {
	// Tolerance is the simplex optimality tolerance.
	Tolerance float64 `json:"tolerance"`
	// GapTolerance stops the cut loop once the quadratic term is matched
	// within this relative gap.
	GapTolerance float64 `json:"gap_tolerance"`
	// MaxIterations bounds the cuts added per solve.
	MaxIterations int `json:"max_iterations"`
}

// SetDefaults applies the solver package defaults.
func (c *SolverConfig) SetDefaults() {
	if c.Tolerance == 0 {
		c.Tolerance = qp.DefaultTolerance
	}
	if c.GapTolerance == 0 {
		c.GapTolerance = qp.DefaultGapTolerance
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = qp.DefaultMaxIterations
	}
}

// Validate checks the ranges.
func (c SolverConfig) Validate() error {
	if c.Tolerance < 0 || c.GapTolerance < 0 {
		return fmt.Errorf("solver: tolerances must be >= 0")
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("solver: max_iterations must be >= 0")
	}
	return nil
}

// Backend builds the QP solver described by the configuration.
func (c SolverConfig) Backend() qp.Solver {
	return qp.OuterApprox{
		LP:            qp.Simplex{Tol: c.Tolerance},
		MaxIterations: c.MaxIterations,
		Tol:           c.GapTolerance,
	}
}
