package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMissingActual is returned when a window carries no usable ground truth
// at its first index.
var ErrMissingActual = errors.New("missing ground truth at realisation time")

// ForecastWindow is one horizon of predicted demand anchored at Time.
// Index 0 is "now" and is only used for solving.
type ForecastWindow struct {
	Time   time.Time
	Demand []float64 // forecast load, drives the optimisation and the peak ceiling
	Actual []float64 // ground truth aligned with Demand, may be empty
	Price  []float64 // optional energy prices, not used by the peak objective
}

// Len returns the horizon length.
func (w ForecastWindow) Len() int { return len(w.Demand) }

// Validate checks the window can be handed to the optimiser.
func (w ForecastWindow) Validate() error {
	if len(w.Demand) < 2 {
		return fmt.Errorf("horizon length %d, need at least 2", len(w.Demand))
	}
	for i, d := range w.Demand {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("demand[%d] is not finite: %v", i, d)
		}
	}
	if len(w.Actual) != 0 && len(w.Actual) != len(w.Demand) {
		return fmt.Errorf("actual length %d does not match horizon %d", len(w.Actual), len(w.Demand))
	}
	if len(w.Price) != 0 && len(w.Price) != len(w.Demand) {
		return fmt.Errorf("price length %d does not match horizon %d", len(w.Price), len(w.Demand))
	}
	return nil
}

// RealizedLoad returns the ground truth load at the window anchor.
func (w ForecastWindow) RealizedLoad() (float64, error) {
	if len(w.Actual) == 0 {
		return 0, ErrMissingActual
	}
	v := w.Actual[0]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: value %v", ErrMissingActual, v)
	}
	return v, nil
}

// Ceiling returns the highest demand value of the window.
func (w ForecastWindow) Ceiling() float64 {
	m := math.Inf(-1)
	for _, d := range w.Demand {
		if d > m {
			m = d
		}
	}
	return m
}
