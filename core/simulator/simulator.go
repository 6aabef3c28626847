// Package simulator drives the horizon solver across a sequence of forecast
// windows, deciding on forecasts and realising on ground truth.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/peakmpc/core/events"
	"github.com/kilianp07/peakmpc/core/horizon"
	"github.com/kilianp07/peakmpc/core/logger"
	"github.com/kilianp07/peakmpc/core/model"
	"github.com/kilianp07/peakmpc/internal/eventbus"
)

// ErrInsufficientData is returned when fewer than two windows are given.
var ErrInsufficientData = errors.New("insufficient data: need at least 2 forecast windows")

// StepError locates a failure inside an episode.
type StepError struct {
	Episode string
	Step    int
	Err     error
}

func (e *StepError) Error() string {
	if e.Episode == "" {
		return fmt.Sprintf("step %d: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("episode %s step %d: %v", e.Episode, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Simulator runs one episode at a time. A Simulator holds no episode state
// and may run several episodes concurrently.
type Simulator struct {
	Solver  horizon.Solver
	Log     logger.Logger
	Bus     eventbus.EventBus
	Episode string
}

// New returns a Simulator using solver. A nil logger disables logging.
func New(solver horizon.Solver, log logger.Logger) *Simulator {
	return &Simulator{Solver: solver, Log: log}
}

// WithEpisode returns a copy of s labelled with the episode name.
func (s *Simulator) WithEpisode(name string) *Simulator {
	cp := *s
	cp.Episode = name
	return &cp
}

// Run simulates the windows and returns one row per realised step, i.e.
// len(windows)-1 rows.
func (s *Simulator) Run(ctx context.Context, windows []model.ForecastWindow, p model.Params) (model.OperationRecord, error) {
	start := time.Now()
	rec, err := s.run(ctx, windows, p)
	if s.Bus != nil {
		s.Bus.Publish(events.EpisodeEvent{Episode: s.Episode, Steps: len(rec), Duration: time.Since(start), Err: err})
	}
	return rec, err
}

func (s *Simulator) run(ctx context.Context, windows []model.ForecastWindow, p model.Params) (model.OperationRecord, error) {
	if len(windows) < 2 {
		return nil, ErrInsufficientData
	}
	if s.Solver == nil {
		return nil, errors.New("simulator: nil solver")
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if err := s.check(windows); err != nil {
		return nil, err
	}

	peak := p.PeakInit
	energy := p.InitialEnergy()
	rec := make(model.OperationRecord, 0, len(windows)-1)

	for t := 0; t < len(windows)-1; t++ {
		if err := ctx.Err(); err != nil {
			return rec, s.stepErr(t, err)
		}
		w := windows[t]
		solveStart := time.Now()
		dec, err := s.Solver.Solve(w, energy, peak, p)
		if err != nil {
			return rec, s.stepErr(t, err)
		}
		solveTime := time.Since(solveStart)

		next := windows[t+1]
		load, err := next.RealizedLoad()
		if err != nil {
			return rec, s.stepErr(t+1, err)
		}
		net := load + dec.Charge
		if net > peak {
			// The running peak follows reality but never exceeds the
			// highest demand of the next window.
			if capped := min(net, next.Ceiling()); capped > peak {
				peak = capped
			}
		}
		energy = dec.Energy

		row := model.OperationRow{
			Step:       t + 1,
			Time:       next.Time,
			NetLoad:    dec.NetLoad,
			Charge:     dec.Charge,
			Energy:     dec.Energy,
			Load:       load,
			OprNetLoad: net,
			Peak:       peak,
			Forecast:   w.Demand[0],
		}
		rec = append(rec, row)

		if s.Log != nil {
			s.Log.Debugw("mpc step", map[string]any{
				"episode":      s.Episode,
				"step":         row.Step,
				"bss_p_ch":     row.Charge,
				"bss_en":       row.Energy,
				"opr_net_load": row.OprNetLoad,
				"peak":         row.Peak,
				"solve_ms":     solveTime.Milliseconds(),
			})
		}
		if s.Bus != nil {
			s.Bus.Publish(events.StepEvent{
				Episode:    s.Episode,
				Row:        row,
				SolveTime:  solveTime,
				Iterations: dec.Iterations,
				Objective:  dec.Objective,
			})
		}
	}
	return rec, nil
}

// check rejects malformed windows and missing ground truth before any solve.
func (s *Simulator) check(windows []model.ForecastWindow) error {
	for i, w := range windows {
		if err := w.Validate(); err != nil {
			return s.stepErr(i, fmt.Errorf("%w: %v", horizon.ErrMalformedWindow, err))
		}
		if i == 0 {
			continue
		}
		if _, err := w.RealizedLoad(); err != nil {
			return s.stepErr(i, err)
		}
	}
	return nil
}

func (s *Simulator) stepErr(step int, err error) error {
	return &StepError{Episode: s.Episode, Step: step, Err: err}
}
