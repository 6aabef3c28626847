package metrics

import (
	"time"

	"github.com/kilianp07/peakmpc/core/model"
)

// ScenarioEvent is the outcome of one scenario: the model run scored against
// the ground truth baseline.
type ScenarioEvent struct {
	RunID        string
	Scale        string
	Location     string
	Horizon      int
	Season       string
	Model        string
	NLE          float64
	ModelCost    float64
	BaselineCost float64
	Steps        int
	Duration     time.Duration
	Err          error
	Time         time.Time
}

// MetricsSink records scenario outcomes.
type MetricsSink interface {
	RecordScenario(ev ScenarioEvent) error
}

// StepEvent is one realised MPC step.
type StepEvent struct {
	Episode    string
	Row        model.OperationRow
	SolveTime  time.Duration
	Iterations int
}

// StepRecorder is implemented by sinks able to record individual steps.
type StepRecorder interface {
	RecordStep(ev StepEvent) error
}

// EpisodeEvent marks the end of a simulated episode.
type EpisodeEvent struct {
	Episode  string
	Steps    int
	Duration time.Duration
	Failed   bool
}

// EpisodeRecorder is implemented by sinks able to record episode ends.
type EpisodeRecorder interface {
	RecordEpisode(ev EpisodeEvent) error
}

// DropRecorder is implemented by sinks able to count events that were
// published but never reached the collector.
type DropRecorder interface {
	RecordDropped(n uint64) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordScenario(ScenarioEvent) error { return nil }
func (NopSink) RecordStep(StepEvent) error         { return nil }
func (NopSink) RecordEpisode(EpisodeEvent) error   { return nil }
func (NopSink) RecordDropped(uint64) error         { return nil }

// MultiSink fans out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordScenario forwards the event to all sinks, returning the first error
// encountered after every sink has been tried.
func (m *MultiSink) RecordScenario(ev ScenarioEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordScenario(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordStep forwards to sinks implementing StepRecorder.
func (m *MultiSink) RecordStep(ev StepEvent) error {
	var first error
	for _, s := range m.Sinks {
		if rec, ok := s.(StepRecorder); ok {
			if err := rec.RecordStep(ev); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// RecordEpisode forwards to sinks implementing EpisodeRecorder.
func (m *MultiSink) RecordEpisode(ev EpisodeEvent) error {
	var first error
	for _, s := range m.Sinks {
		if rec, ok := s.(EpisodeRecorder); ok {
			if err := rec.RecordEpisode(ev); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// RecordDropped forwards to sinks implementing DropRecorder.
func (m *MultiSink) RecordDropped(n uint64) error {
	var first error
	for _, s := range m.Sinks {
		if rec, ok := s.(DropRecorder); ok {
			if err := rec.RecordDropped(n); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
