package scenario

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/peakmpc/core/horizon"
	"github.com/kilianp07/peakmpc/core/metrics"
	"github.com/kilianp07/peakmpc/core/model"
)

var t0 = time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)

func params() model.Params {
	return model.Params{BatSizeKWh: 0.5, BatEfficiency: 0.95, BatMaxPower: 0.25, BatEndSoCWeight: 0.1, PeakCost: 1, PeakInit: 0.5, BatInitialSoC: 0.5}
}

func series(vals []float64) model.Series {
	s := make(model.Series, len(vals))
	for i, v := range vals {
		s[i] = model.Point{Time: t0.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return s
}

// input slices windows of length h from truth and distorts them with f.
func input(key Key, truth []float64, h int, f func(float64) float64) Input {
	gt := series(truth)
	var fcs []model.Series
	for i := 0; i+h <= len(truth); i++ {
		w := make(model.Series, h)
		for j := 0; j < h; j++ {
			w[j] = model.Point{Time: gt[i+j].Time, Value: f(truth[i+j])}
		}
		fcs = append(fcs, w)
	}
	return Input{Key: key, Forecasts: fcs, GroundTruth: gt}
}

var truth = []float64{40, 42, 55, 61, 70, 66, 58, 49, 45, 60, 72, 68}

type memStore struct {
	mu      sync.Mutex
	results []Result
}

func (m *memStore) SaveScenario(_ context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

type memSink struct {
	mu     sync.Mutex
	events []metrics.ScenarioEvent
}

func (m *memSink) RecordScenario(ev metrics.ScenarioEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func TestNormalizer(t *testing.T) {
	n, err := NewNormalizer(series([]float64{10, 20, 30}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, n.Apply(10))
	assert.Equal(t, 1.0, n.Apply(30))
	assert.Equal(t, 0.5, n.Apply(20))

	_, err = NewNormalizer(series([]float64{5, 5}))
	assert.ErrorIs(t, err, ErrDegenerateTruth)
	_, err = NewNormalizer(nil)
	assert.ErrorIs(t, err, ErrDegenerateTruth)
}

func TestBuildWindows(t *testing.T) {
	in := input(Key{}, truth, 4, func(v float64) float64 { return v + 8 })
	base, err := BuildWindows(in, Baseline)
	require.NoError(t, err)
	mdl, err := BuildWindows(in, ModelRun)
	require.NoError(t, err)
	require.Len(t, base, len(truth)-3)
	require.Len(t, mdl, len(truth)-3)

	assert.Equal(t, base[0].Demand, base[0].Actual)
	assert.Equal(t, base[0].Actual, mdl[0].Actual)
	assert.InDelta(t, (48.0-40)/(72-40), mdl[0].Demand[0], 1e-12)
	assert.Equal(t, t0, mdl[0].Time)
}

func TestBuildWindows_MissingTruthIsNaN(t *testing.T) {
	in := input(Key{}, truth, 3, func(v float64) float64 { return v })
	in.GroundTruth = in.GroundTruth[:len(in.GroundTruth)-1]
	ws, err := BuildWindows(in, ModelRun)
	require.NoError(t, err)
	last := ws[len(ws)-1]
	assert.True(t, math.IsNaN(last.Actual[2]))
}

func TestRun_PerfectForecastHasZeroNLE(t *testing.T) {
	store := &memStore{}
	sink := &memSink{}
	o := &Orchestrator{Solver: horizon.NewPlanner(nil), Store: store, Sink: sink, RunID: "run-1"}
	key := Key{Scale: "1_county", Location: "Los_Angeles", Horizon: 4, Season: "Summer", Model: "Perfect"}
	res, err := o.Run(context.Background(), input(key, truth, 4, func(v float64) float64 { return v }), params())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.NLE)
	assert.Len(t, res.Trace, len(truth)-4)
	assert.Equal(t, res.Trace[0].Model, res.Trace[0].Baseline)
	require.Len(t, store.results, 1)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "run-1", sink.events[0].RunID)
	assert.NoError(t, sink.events[0].Err)
}

func TestRun_NLEIsCostDifference(t *testing.T) {
	o := &Orchestrator{Solver: horizon.NewPlanner(nil)}
	key := Key{Horizon: 4, Model: "Biased"}
	res, err := o.Run(context.Background(), input(key, truth, 4, func(v float64) float64 { return 0.8 * v }), params())
	require.NoError(t, err)
	assert.InDelta(t, res.ModelCost.Total-res.BaselineCost.Total, res.NLE, 1e-12)
	for _, row := range res.Trace {
		assert.Equal(t, row.Model.Load, row.Baseline.Load, "both runs realise the same truth")
	}
}

func TestRun_FailureIsReported(t *testing.T) {
	sink := &memSink{}
	o := &Orchestrator{Solver: horizon.NewPlanner(nil), Sink: sink}
	in := input(Key{Model: "Flat"}, []float64{3, 3, 3, 3}, 2, func(v float64) float64 { return v })
	_, err := o.Run(context.Background(), in, params())
	assert.ErrorIs(t, err, ErrDegenerateTruth)
	require.Len(t, sink.events, 1)
	assert.Error(t, sink.events[0].Err)
}

func TestSweep_IsolatesFailures(t *testing.T) {
	boom := errors.New("solver down")
	solver := horizon.SolverFunc(func(w model.ForecastWindow, e, pk float64, p model.Params) (model.StepDecision, error) {
		if w.Len() == 3 {
			return model.StepDecision{}, boom
		}
		return horizon.NewPlanner(nil).Solve(w, e, pk, p)
	})
	o := &Orchestrator{Solver: solver}
	inputs := []Input{
		input(Key{Horizon: 4, Model: "a"}, truth, 4, func(v float64) float64 { return v }),
		input(Key{Horizon: 3, Model: "b"}, truth, 3, func(v float64) float64 { return v }),
		input(Key{Horizon: 5, Model: "c"}, truth, 5, func(v float64) float64 { return 1.1 * v }),
	}
	out := o.Sweep(context.Background(), inputs, params(), 3)
	require.Len(t, out, 3)
	assert.NoError(t, out[0].Err)
	assert.ErrorIs(t, out[1].Err, boom)
	assert.NoError(t, out[2].Err)
	assert.Equal(t, "c", out[2].Key.Model)
	assert.Len(t, Failed(out), 1)
	assert.ErrorIs(t, Join(out), boom)
}

func TestKeyString(t *testing.T) {
	k := Key{Scale: "1_county", Location: "Los_Angeles", Horizon: 24, Season: "Summer", Model: "RandomForest"}
	assert.Equal(t, "1_county/Los_Angeles/h24/Summer/RandomForest", k.String())
}
