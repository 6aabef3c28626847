package scenario

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/peakmpc/core/model"
)

// ErrDegenerateTruth is returned when the ground truth cannot define a scale.
var ErrDegenerateTruth = errors.New("ground truth has no range to normalise against")

// Key identifies one scenario.
type Key struct {
	Scale    string `json:"scale"`
	Location string `json:"location"`
	Horizon  int    `json:"horizon"`
	Season   string `json:"season"`
	Model    string `json:"model"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/h%d/%s/%s", k.Scale, k.Location, k.Horizon, k.Season, k.Model)
}

// Input is what the forecast provider hands over for one scenario.
type Input struct {
	Key Key
	// Forecasts holds one series per forecast window, ordered by anchor time.
	Forecasts   []model.Series
	GroundTruth model.Series
}

// Normalizer maps values to [0,1] using the ground truth range.
type Normalizer struct {
	Min, Max float64
}

// NewNormalizer derives the scale from the ground truth.
func NewNormalizer(gt model.Series) (Normalizer, error) {
	if len(gt) == 0 {
		return Normalizer{}, fmt.Errorf("%w: empty series", ErrDegenerateTruth)
	}
	vals := gt.Values()
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Normalizer{}, fmt.Errorf("%w: non-finite value %v", ErrDegenerateTruth, v)
		}
	}
	n := Normalizer{Min: floats.Min(vals), Max: floats.Max(vals)}
	if n.Max == n.Min {
		return Normalizer{}, fmt.Errorf("%w: constant value %v", ErrDegenerateTruth, n.Min)
	}
	return n, nil
}

// Apply scales v.
func (n Normalizer) Apply(v float64) float64 {
	return (v - n.Min) / (n.Max - n.Min)
}

// Mode selects what drives the decisions of an episode.
type Mode int

const (
	// Baseline decides on the ground truth itself.
	Baseline Mode = iota
	// ModelRun decides on the model forecast.
	ModelRun
)

func (m Mode) String() string {
	if m == Baseline {
		return "baseline"
	}
	return "model"
}

// BuildWindows aligns every forecast with the ground truth by timestamp and
// normalises both. Timestamps without ground truth yield NaN, which the
// simulator rejects before solving.
func BuildWindows(in Input, mode Mode) ([]model.ForecastWindow, error) {
	norm, err := NewNormalizer(in.GroundTruth)
	if err != nil {
		return nil, err
	}
	truth := in.GroundTruth.Index()
	windows := make([]model.ForecastWindow, len(in.Forecasts))
	for i, fc := range in.Forecasts {
		if len(fc) == 0 {
			return nil, fmt.Errorf("forecast window %d is empty", i)
		}
		actual := make([]float64, len(fc))
		demand := make([]float64, len(fc))
		for j, pt := range fc {
			if v, ok := truth[pt.Time.UnixNano()]; ok {
				actual[j] = norm.Apply(v)
			} else {
				actual[j] = math.NaN()
			}
			if mode == Baseline {
				demand[j] = actual[j]
			} else {
				demand[j] = norm.Apply(pt.Value)
			}
		}
		windows[i] = model.ForecastWindow{Time: fc[0].Time, Demand: demand, Actual: actual}
	}
	return windows, nil
}
