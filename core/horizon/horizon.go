// Package horizon builds and solves the finite-horizon peak shaving problem
// for one forecast window and returns the first actionable decision.
package horizon

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/peakmpc/core/model"
	"github.com/kilianp07/peakmpc/core/qp"
)

var (
	// ErrMalformedWindow is returned before solving when the inputs cannot
	// produce a meaningful problem.
	ErrMalformedWindow = errors.New("malformed forecast window")
	// ErrSolve wraps any backend failure.
	ErrSolve = errors.New("horizon solve failed")
)

// boundTol is the largest bound violation attributed to solver round-off.
const boundTol = 1e-6

// Solver produces the decision for the step following the window anchor.
type Solver interface {
	Solve(w model.ForecastWindow, energy, peak float64, p model.Params) (model.StepDecision, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(w model.ForecastWindow, energy, peak float64, p model.Params) (model.StepDecision, error)

// Solve calls f.
func (f SolverFunc) Solve(w model.ForecastWindow, energy, peak float64, p model.Params) (model.StepDecision, error) {
	return f(w, energy, peak, p)
}

// Planner solves horizons with the configured backend. The zero value uses
// qp.Default.
type Planner struct {
	Backend qp.Solver
}

// NewPlanner returns a Planner using backend, or the default backend when nil.
func NewPlanner(backend qp.Solver) Planner {
	if backend == nil {
		backend = qp.Default()
	}
	return Planner{Backend: backend}
}

// Solve implements Solver.
func (pl Planner) Solve(w model.ForecastWindow, energy, peak float64, p model.Params) (model.StepDecision, error) {
	backend := pl.Backend
	if backend == nil {
		backend = qp.Default()
	}
	return Solve(backend, w, energy, peak, p)
}

// layout indexes the standard form variables of a horizon of length h.
// Charge power is split into its charging and discharging parts, each with
// its own bound row. Inequality row r owns slack column slack(r).
type layout struct{ h int }

func (l layout) charge(t int) int    { return t }
func (l layout) discharge(t int) int { return l.h + t }
func (l layout) energy(t int) int    { return 2*l.h + t }
func (l layout) peak() int           { return 3 * l.h }
func (l layout) devPlus() int        { return 3*l.h + 1 }
func (l layout) devMinus() int       { return 3*l.h + 2 }
func (l layout) slack(row int) int   { return 3*l.h + 3 + row }
func (l layout) size() int           { return 7*l.h + 3 }
func (l layout) rows() int           { return 5*l.h + 1 }

// Constraint rows.
func (l layout) peakRow(t int) int      { return t }
func (l layout) chargeRow(t int) int    { return l.h + t }
func (l layout) dischargeRow(t int) int { return 2*l.h + t }
func (l layout) capacityRow(t int) int  { return 3*l.h + t }
func (l layout) balanceRow(t int) int   { return 4*l.h + t }
func (l layout) deviationRow() int      { return 5 * l.h }

// power returns the signed charge power at t.
func (l layout) power(x []float64, t int) float64 {
	return x[l.charge(t)] - x[l.discharge(t)]
}

// Solve builds the horizon problem for demand w.Demand, starting battery
// energy and running peak, solves it with backend and returns the decision
// at index 1.
func Solve(backend qp.Solver, w model.ForecastWindow, energy, peak float64, p model.Params) (model.StepDecision, error) {
	if err := w.Validate(); err != nil {
		return model.StepDecision{}, fmt.Errorf("%w: %v", ErrMalformedWindow, err)
	}
	if !finite(energy) || !finite(peak) {
		return model.StepDecision{}, fmt.Errorf("%w: state energy=%v peak=%v", ErrMalformedWindow, energy, peak)
	}
	if energy < -boundTol || energy > p.BatSizeKWh+boundTol {
		return model.StepDecision{}, fmt.Errorf("%w: energy %v outside [0, %v]", ErrMalformedWindow, energy, p.BatSizeKWh)
	}
	energy = math.Min(math.Max(energy, 0), p.BatSizeKWh)
	prob := Build(w.Demand, energy, peak, p)
	sol, err := backend.Solve(prob)
	if err != nil {
		return model.StepDecision{}, fmt.Errorf("%w: %w", ErrSolve, err)
	}
	l := layout{h: len(w.Demand)}
	if len(sol.X) != l.size() {
		return model.StepDecision{}, fmt.Errorf("%w: solution has %d values, want %d", ErrSolve, len(sol.X), l.size())
	}

	en, err := snap(sol.X[l.energy(1)], 0, p.BatSizeKWh, "bss_en")
	if err != nil {
		return model.StepDecision{}, err
	}
	ch, err := snap(l.power(sol.X, 1), -p.BatMaxPower, p.BatMaxPower, "bss_p_ch")
	if err != nil {
		return model.StepDecision{}, err
	}
	return model.StepDecision{
		NetLoad:         w.Demand[1] + p.BatEfficiency*ch,
		Charge:          ch,
		Energy:          en,
		CommittedCharge: l.power(sol.X, 0),
		Objective:       sol.Objective + 2*peak*p.PeakCost,
		Iterations:      sol.Iterations,
	}, nil
}

// Build states the horizon problem over non-negative variables, with
// p[t] = in[t] − out[t] and net_load[t] = demand[t] + eff·p[t] substituted:
//
//	eff·p[t] − peak ≤ −demand[t]
//	in[t] ≤ max_power,  out[t] ≤ max_power
//	e[t] ≤ capacity
//	e[0] − p[0] = e_start,  e[t] − e[t−1] − p[t] = 0
//	peak − dev⁺ + dev⁻ = monthly_peak
//
// minimising (dev⁺ + dev⁻)·peak_cost + w·(e[H−1] − e_start)². The constant
// 2·monthly_peak·peak_cost is left out of the program. The starting basis is
// the idle battery: no power, energy held at e_start, peak at the highest
// demand.
func Build(demand []float64, energy, monthlyPeak float64, p model.Params) qp.Problem {
	h := len(demand)
	l := layout{h: h}
	n := l.size()

	c := make([]float64, n)
	c[l.devPlus()] = p.PeakCost
	c[l.devMinus()] = p.PeakCost

	a := mat.NewDense(l.rows(), n, nil)
	b := make([]float64, l.rows())
	for t := 0; t < h; t++ {
		r := l.peakRow(t)
		a.Set(r, l.charge(t), p.BatEfficiency)
		a.Set(r, l.discharge(t), -p.BatEfficiency)
		a.Set(r, l.peak(), -1)
		a.Set(r, l.slack(r), 1)
		b[r] = -demand[t]

		r = l.chargeRow(t)
		a.Set(r, l.charge(t), 1)
		a.Set(r, l.slack(r), 1)
		b[r] = p.BatMaxPower

		r = l.dischargeRow(t)
		a.Set(r, l.discharge(t), 1)
		a.Set(r, l.slack(r), 1)
		b[r] = p.BatMaxPower

		r = l.capacityRow(t)
		a.Set(r, l.energy(t), 1)
		a.Set(r, l.slack(r), 1)
		b[r] = p.BatSizeKWh

		r = l.balanceRow(t)
		a.Set(r, l.energy(t), 1)
		a.Set(r, l.charge(t), -1)
		a.Set(r, l.discharge(t), 1)
		if t == 0 {
			b[r] = energy
		} else {
			a.Set(r, l.energy(t-1), -1)
		}
	}
	r := l.deviationRow()
	a.Set(r, l.peak(), 1)
	a.Set(r, l.devPlus(), -1)
	a.Set(r, l.devMinus(), 1)
	b[r] = monthlyPeak

	coef := make([]float64, n)
	coef[l.energy(h-1)] = 1
	return qp.Problem{
		C: c, A: a, B: b,
		Quad:  &qp.Quad{Weight: p.BatEndSoCWeight, Coef: coef, Offset: energy},
		Basis: idleBasis(l, demand, monthlyPeak),
	}
}

// idleBasis lists the basic columns of the idle battery vertex. The peak is
// basic on the row of the highest demand when that demand is positive and
// sits at zero otherwise.
func idleBasis(l layout, demand []float64, monthlyPeak float64) []int {
	top := 0
	for t, d := range demand {
		if d > demand[top] {
			top = t
		}
	}
	peak := math.Max(demand[top], 0)
	basis := make([]int, 0, l.rows())
	if peak > 0 {
		basis = append(basis, l.peak())
	}
	for t := range demand {
		if peak > 0 && t == top {
			continue
		}
		basis = append(basis, l.slack(l.peakRow(t)))
	}
	for t := range demand {
		basis = append(basis,
			l.slack(l.chargeRow(t)),
			l.slack(l.dischargeRow(t)),
			l.slack(l.capacityRow(t)),
			l.energy(t),
		)
	}
	if peak >= monthlyPeak {
		basis = append(basis, l.devPlus())
	} else {
		basis = append(basis, l.devMinus())
	}
	return basis
}

func snap(v, lo, hi float64, name string) (float64, error) {
	switch {
	case v < lo-boundTol || v > hi+boundTol || !finite(v):
		return 0, fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrSolve, name, v, lo, hi)
	case v < lo:
		return lo, nil
	case v > hi:
		return hi, nil
	}
	return v, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
