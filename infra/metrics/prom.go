package metrics

import (
	"errors"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/peakmpc/core/metrics"
)

var scenarioLabels = []string{"scale", "location", "horizon", "season", "model"}

// PromSink exposes scenario scores and solver activity as Prometheus metrics.
type PromSink struct {
	nle       *prometheus.GaugeVec
	cost      *prometheus.GaugeVec
	scenarios *prometheus.CounterVec
	solves    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	failures  prometheus.Counter
	dropped   prometheus.Counter
}

// NewPromSink registers the metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already present on reg are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.nle, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "peakmpc_scenario_nle",
		Help: "Normalised load error of the last run of a scenario",
	}, scenarioLabels)); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "peakmpc_scenario_cost",
		Help: "Operating cost of the last run of a scenario",
	}, append(append([]string{}, scenarioLabels...), "run"))); err != nil {
		return nil, err
	}
	if s.scenarios, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peakmpc_scenarios_total",
		Help: "Scenarios evaluated, by status",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.solves, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peakmpc_solves_total",
		Help: "Horizon problems solved, by run",
	}, []string{"run"})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "peakmpc_solve_duration_seconds",
		Help:    "Time spent solving one horizon problem",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"run"})); err != nil {
		return nil, err
	}
	if s.failures, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peakmpc_episode_failures_total",
		Help: "Episodes aborted by an error",
	})); err != nil {
		return nil, err
	}
	if s.dropped, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peakmpc_bus_dropped_events_total",
		Help: "Events the bus dropped for subscribers that fell behind",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordScenario sets the NLE and cost gauges of the scenario.
func (s *PromSink) RecordScenario(ev coremetrics.ScenarioEvent) error {
	if ev.Err != nil {
		s.scenarios.WithLabelValues("failed").Inc()
		return nil
	}
	s.scenarios.WithLabelValues("ok").Inc()
	labels := []string{ev.Scale, ev.Location, strconv.Itoa(ev.Horizon), ev.Season, ev.Model}
	s.nle.WithLabelValues(labels...).Set(ev.NLE)
	s.cost.WithLabelValues(append(labels, "model")...).Set(ev.ModelCost)
	s.cost.WithLabelValues(append(labels, "baseline")...).Set(ev.BaselineCost)
	return nil
}

// RecordStep counts the solve and observes its latency.
func (s *PromSink) RecordStep(ev coremetrics.StepEvent) error {
	run := runOf(ev.Episode)
	s.solves.WithLabelValues(run).Inc()
	s.latency.WithLabelValues(run).Observe(ev.SolveTime.Seconds())
	return nil
}

// RecordEpisode counts failed episodes.
func (s *PromSink) RecordEpisode(ev coremetrics.EpisodeEvent) error {
	if ev.Failed {
		s.failures.Inc()
	}
	return nil
}

// RecordDropped adds n to the dropped events counter.
func (s *PromSink) RecordDropped(n uint64) error {
	s.dropped.Add(float64(n))
	return nil
}

// runOf extracts the run name from an episode label of the form key#run.
func runOf(episode string) string {
	if i := strings.LastIndexByte(episode, '#'); i >= 0 && i < len(episode)-1 {
		return episode[i+1:]
	}
	return "unknown"
}
