package scenario

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/peakmpc/core/cost"
	"github.com/kilianp07/peakmpc/core/horizon"
	"github.com/kilianp07/peakmpc/core/logger"
	"github.com/kilianp07/peakmpc/core/metrics"
	"github.com/kilianp07/peakmpc/core/model"
	"github.com/kilianp07/peakmpc/core/monitoring"
	"github.com/kilianp07/peakmpc/core/simulator"
	"github.com/kilianp07/peakmpc/internal/eventbus"
)

// TraceRow joins the model run and the baseline run at one realised step.
type TraceRow struct {
	Step     int
	Time     time.Time
	Model    model.OperationRow
	Baseline model.OperationRow
}

// Result is the outcome of one scenario.
type Result struct {
	Key          Key
	RunID        string
	NLE          float64
	ModelCost    cost.Costs
	BaselineCost cost.Costs
	Normalizer   Normalizer
	Trace        []TraceRow
}

// Store persists scenario results.
type Store interface {
	SaveScenario(ctx context.Context, res Result) error
}

// Orchestrator runs scenarios. All fields except Solver are optional.
type Orchestrator struct {
	Solver  horizon.Solver
	Log     logger.Logger
	Bus     eventbus.EventBus
	Sink    metrics.MetricsSink
	Store   Store
	Monitor monitoring.Monitor
	RunID   string
}

// Run scores one scenario: NLE = cost(model run) − cost(baseline run).
func (o *Orchestrator) Run(ctx context.Context, in Input, p model.Params) (Result, error) {
	start := time.Now()
	res, err := o.run(ctx, in, p)
	o.record(in.Key, res, err, time.Since(start))
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, in Input, p model.Params) (Result, error) {
	log := o.logger()
	res := Result{Key: in.Key, RunID: o.RunID}
	norm, err := NewNormalizer(in.GroundTruth)
	if err != nil {
		return res, fmt.Errorf("%s: %w", in.Key, err)
	}
	res.Normalizer = norm

	log.Infof("running NLE for %s", in.Key)
	baseRec, baseCost, err := o.episode(ctx, in, Baseline, p)
	if err != nil {
		return res, err
	}
	modelRec, modelCost, err := o.episode(ctx, in, ModelRun, p)
	if err != nil {
		return res, err
	}
	res.BaselineCost = baseCost
	res.ModelCost = modelCost
	res.NLE = modelCost.Total - baseCost.Total
	res.Trace = joinTrace(modelRec, baseRec)
	log.Infof("NLE score for %s: %.6f (model %.6f, baseline %.6f)", in.Key, res.NLE, modelCost.Total, baseCost.Total)

	if o.Store != nil {
		if err := o.Store.SaveScenario(ctx, res); err != nil {
			return res, fmt.Errorf("%s: save results: %w", in.Key, err)
		}
	}
	return res, nil
}

func (o *Orchestrator) episode(ctx context.Context, in Input, mode Mode, p model.Params) (model.OperationRecord, cost.Costs, error) {
	name := in.Key.String() + "#" + mode.String()
	windows, err := BuildWindows(in, mode)
	if err != nil {
		return nil, cost.Costs{}, fmt.Errorf("%s: %w", name, err)
	}
	sim := &simulator.Simulator{Solver: o.Solver, Log: o.logger(), Bus: o.Bus, Episode: name}
	rec, err := sim.Run(ctx, windows, p)
	if err != nil {
		return nil, cost.Costs{}, err
	}
	c, err := cost.Evaluate(rec, p)
	if err != nil {
		return nil, cost.Costs{}, fmt.Errorf("%s: %w", name, err)
	}
	return rec, c, nil
}

func (o *Orchestrator) record(k Key, res Result, err error, d time.Duration) {
	if err != nil {
		o.logger().Errorf("scenario %s failed: %v", k, err)
		if o.Monitor != nil {
			o.Monitor.CaptureException(err, map[string]string{
				"scale":    k.Scale,
				"location": k.Location,
				"horizon":  strconv.Itoa(k.Horizon),
				"season":   k.Season,
				"model":    k.Model,
			})
		}
	}
	if o.Sink == nil {
		return
	}
	ev := metrics.ScenarioEvent{
		RunID:        o.RunID,
		Scale:        k.Scale,
		Location:     k.Location,
		Horizon:      k.Horizon,
		Season:       k.Season,
		Model:        k.Model,
		NLE:          res.NLE,
		ModelCost:    res.ModelCost.Total,
		BaselineCost: res.BaselineCost.Total,
		Steps:        len(res.Trace),
		Duration:     d,
		Err:          err,
		Time:         time.Now(),
	}
	if serr := o.Sink.RecordScenario(ev); serr != nil {
		o.logger().Warnf("record scenario %s: %v", k, serr)
	}
}

func (o *Orchestrator) logger() logger.Logger {
	if o.Log == nil {
		return logger.Nop{}
	}
	return o.Log
}

// joinTrace aligns both runs by step. Both runs realise the same windows so
// their lengths match.
func joinTrace(modelRec, baseRec model.OperationRecord) []TraceRow {
	n := min(len(modelRec), len(baseRec))
	out := make([]TraceRow, n)
	for i := 0; i < n; i++ {
		out[i] = TraceRow{Step: modelRec[i].Step, Time: modelRec[i].Time, Model: modelRec[i], Baseline: baseRec[i]}
	}
	return out
}

// Outcome is the per-scenario result of a sweep.
type Outcome struct {
	Key    Key
	Result Result
	Err    error
}

// Sweep runs every input as an independent unit of work on at most workers
// goroutines. A failing scenario never stops its siblings; outcomes are
// returned in input order.
func (o *Orchestrator) Sweep(ctx context.Context, inputs []Input, p model.Params, workers int) []Outcome {
	if workers <= 0 {
		workers = 1
	}
	out := make([]Outcome, len(inputs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, in := range inputs {
		g.Go(func() error {
			res, err := o.Run(ctx, in, p)
			out[i] = Outcome{Key: in.Key, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	if o.Monitor != nil {
		o.Monitor.Flush(2 * time.Second)
	}
	return out
}

// Failed returns the outcomes that carry an error.
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, oc := range outcomes {
		if oc.Err != nil {
			failed = append(failed, oc)
		}
	}
	return failed
}

// Join combines the errors of failed outcomes, or returns nil.
func Join(outcomes []Outcome) error {
	var errs []error
	for _, oc := range Failed(outcomes) {
		errs = append(errs, oc.Err)
	}
	return errors.Join(errs...)
}
