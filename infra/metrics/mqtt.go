package metrics

import (
	"encoding/json"
	"strconv"
	"time"

	coremetrics "github.com/kilianp07/peakmpc/core/metrics"
)

// publisher is the subset of infra/mqtt.Publisher used by MQTTSink.
type publisher interface {
	Topic(parts ...string) string
	Publish(topic string, payload []byte) error
}

// MQTTSink publishes scenario reports and episode ends as JSON documents.
type MQTTSink struct {
	pub publisher
}

// NewMQTTSink wraps a connected publisher.
func NewMQTTSink(pub publisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

type scenarioReport struct {
	RunID        string    `json:"run_id"`
	Scale        string    `json:"scale"`
	Location     string    `json:"location"`
	Horizon      int       `json:"horizon"`
	Season       string    `json:"season"`
	Model        string    `json:"model"`
	NLE          *float64  `json:"nle,omitempty"`
	ModelCost    *float64  `json:"model_cost,omitempty"`
	BaselineCost *float64  `json:"baseline_cost,omitempty"`
	Steps        int       `json:"steps"`
	DurationMS   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
	Time         time.Time `json:"time"`
}

// RecordScenario publishes to <prefix>/scenario/<scale>/<location>/h<horizon>/<season>/<model>.
func (s *MQTTSink) RecordScenario(ev coremetrics.ScenarioEvent) error {
	rep := scenarioReport{
		RunID:      ev.RunID,
		Scale:      ev.Scale,
		Location:   ev.Location,
		Horizon:    ev.Horizon,
		Season:     ev.Season,
		Model:      ev.Model,
		Steps:      ev.Steps,
		DurationMS: ev.Duration.Milliseconds(),
		Time:       ev.Time,
	}
	if ev.Err != nil {
		rep.Error = ev.Err.Error()
	} else {
		nle, mc, bc := ev.NLE, ev.ModelCost, ev.BaselineCost
		rep.NLE, rep.ModelCost, rep.BaselineCost = &nle, &mc, &bc
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	topic := s.pub.Topic("scenario", ev.Scale, ev.Location, "h"+strconv.Itoa(ev.Horizon), ev.Season, ev.Model)
	return s.pub.Publish(topic, payload)
}

// RecordEpisode publishes to <prefix>/episode.
func (s *MQTTSink) RecordEpisode(ev coremetrics.EpisodeEvent) error {
	payload, err := json.Marshal(struct {
		Episode    string `json:"episode"`
		Steps      int    `json:"steps"`
		DurationMS int64  `json:"duration_ms"`
		Failed     bool   `json:"failed"`
	}{ev.Episode, ev.Steps, ev.Duration.Milliseconds(), ev.Failed})
	if err != nil {
		return err
	}
	return s.pub.Publish(s.pub.Topic("episode"), payload)
}

// Close disconnects the publisher when it supports it.
func (s *MQTTSink) Close() error {
	if d, ok := s.pub.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
	return nil
}
