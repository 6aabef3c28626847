// Package app wires configuration, sinks, stores and the scenario
// orchestrator together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/peakmpc/config"
	"github.com/kilianp07/peakmpc/core/horizon"
	coremetrics "github.com/kilianp07/peakmpc/core/metrics"
	coremon "github.com/kilianp07/peakmpc/core/monitoring"
	"github.com/kilianp07/peakmpc/core/scenario"
	"github.com/kilianp07/peakmpc/infra/logger"
	"github.com/kilianp07/peakmpc/infra/metrics"
	"github.com/kilianp07/peakmpc/infra/monitoring"
	"github.com/kilianp07/peakmpc/infra/results"
	"github.com/kilianp07/peakmpc/internal/eventbus"
)

// Service runs scenarios with the configured solver, sinks and store.
type Service struct {
	Orchestrator *scenario.Orchestrator
	RunID        string

	cfg       *config.Config
	bus       *eventbus.Bus
	sink      coremetrics.MetricsSink
	store     results.Store
	monitor   coremon.Monitor
	log       logger.Logger
	logCloser io.Closer

	cancel    context.CancelFunc
	collector <-chan struct{}
}

// New creates a Service from the configuration. Logging is set up first so
// every component logs through the configured output.
func New(cfg *config.Config) (*Service, error) {
	logCloser, err := logger.Setup(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logg := logger.New("service")

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	store, err := results.Open(cfg.Results)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("results store: %w", err)
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		logg.Warnf("sentry disabled: %v", err)
		mon = coremon.NopMonitor{}
	}

	runID := uuid.NewString()
	bus := eventbus.New()
	orch := &scenario.Orchestrator{
		Solver:  horizon.NewPlanner(cfg.Solver.Backend()),
		Log:     logger.New("scenario"),
		Bus:     bus,
		Sink:    sink,
		Store:   store,
		Monitor: mon,
		RunID:   runID,
	}
	return &Service{
		Orchestrator: orch,
		RunID:        runID,
		cfg:          cfg,
		bus:          bus,
		sink:         sink,
		store:        store,
		monitor:      mon,
		log:          logg,
		logCloser:    logCloser,
	}, nil
}

// Start launches the step collector and, when configured, the Prometheus
// endpoint. Both stop on Close or when ctx is canceled.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.collector = metrics.StartStepCollector(ctx, s.bus, s.sink, logger.New("collector"))
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	s.log.Infof("run %s started", s.RunID)
}

// RunScenario scores a single scenario.
func (s *Service) RunScenario(ctx context.Context, in scenario.Input) (scenario.Result, error) {
	res, err := s.Orchestrator.Run(ctx, in, s.cfg.NLE)
	s.monitor.Flush(2 * time.Second)
	return res, err
}

// Sweep scores every input concurrently.
func (s *Service) Sweep(ctx context.Context, inputs []scenario.Input) []scenario.Outcome {
	return s.Orchestrator.Sweep(ctx, inputs, s.cfg.NLE, s.cfg.Runner.Workers)
}

// Close drains the collector and releases sinks, store and log file.
func (s *Service) Close() error {
	s.bus.Close()
	if s.collector != nil {
		select {
		case <-s.collector:
		case <-time.After(5 * time.Second):
			s.log.Warnf("collector did not drain in time")
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if dropped := s.bus.Dropped(); dropped > 0 {
		s.log.Warnf("%d events dropped by slow subscribers", dropped)
	}
	var errs []error
	for _, c := range closers(s.sink) {
		errs = append(errs, c.Close())
	}
	errs = append(errs, s.store.Close())
	errs = append(errs, s.logCloser.Close())
	return errors.Join(errs...)
}

func closers(sink coremetrics.MetricsSink) []io.Closer {
	var out []io.Closer
	if m, ok := sink.(*coremetrics.MultiSink); ok {
		for _, s := range m.Sinks {
			out = append(out, closers(s)...)
		}
		return out
	}
	if c, ok := sink.(io.Closer); ok {
		out = append(out, c)
	}
	return out
}
