package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/peakmpc/config"
	"github.com/kilianp07/peakmpc/core/factory"
	"github.com/kilianp07/peakmpc/core/model"
	"github.com/kilianp07/peakmpc/core/scenario"
	"github.com/kilianp07/peakmpc/infra/results"
)

func testInput() scenario.Input {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	series := func(from int, vals ...float64) model.Series {
		s := make(model.Series, len(vals))
		for i, v := range vals {
			s[i] = model.Point{Time: start.Add(time.Duration(from+i) * time.Hour), Value: v}
		}
		return s
	}
	return scenario.Input{
		Key:         scenario.Key{Scale: "household", Location: "Paris", Horizon: 3, Season: "winter", Model: "lstm"},
		GroundTruth: series(0, 1, 4, 2, 3, 5, 2),
		Forecasts: []model.Series{
			series(1, 4, 2, 3),
			series(2, 2, 3, 5),
			series(3, 3, 5, 2),
		},
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		NLE: model.Params{BatSizeKWh: 1, BatEfficiency: 0.95, BatMaxPower: 0.5, BatEndSoCWeight: 0.1, PeakCost: 10, BatInitialSoC: 0.5},
	}
	cfg.Logging.Level = "error"
	cfg.Results = results.Config{Backend: "sqlite", DSN: filepath.Join(t.TempDir(), "r.db")}
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "nop"}}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServiceRunScenario(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	svc.Start(context.Background())

	res, err := svc.RunScenario(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, svc.RunID, res.RunID)
	assert.Len(t, res.Trace, 2)

	st, ok := svc.store.(*results.SQLStore)
	require.True(t, ok)
	scores, err := st.Scores(context.Background(), svc.RunID)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.InDelta(t, res.NLE, scores[0].NLE, 1e-12)

	require.NoError(t, svc.Close())
}

func TestServiceSweepIsolatesFailures(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	svc.Start(context.Background())
	defer func() { require.NoError(t, svc.Close()) }()

	bad := testInput()
	bad.Key.Model = "broken"
	bad.Forecasts = bad.Forecasts[:1]

	outcomes := svc.Sweep(context.Background(), []scenario.Input{testInput(), bad})
	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0].Err)
	assert.Error(t, outcomes[1].Err)
	assert.Len(t, scenario.Failed(outcomes), 1)
}

func TestNewRejectsUnknownSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "statsd"}}
	_, err := New(cfg)
	assert.Error(t, err)
}
