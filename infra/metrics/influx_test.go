package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/peakmpc/core/metrics"
	"github.com/kilianp07/peakmpc/core/model"
)

type capture struct {
	mu     sync.Mutex
	bodies []string
}

func (c *capture) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, strings.TrimSpace(string(data)))
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInfluxSink_RecordScenario(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Unix(1700000000, 0)
	ev := coremetrics.ScenarioEvent{
		RunID: "r1", Scale: "household", Location: "Paris", Horizon: 24, Season: "winter", Model: "lstm",
		NLE: 0.1234, ModelCost: 12.5, BaselineCost: 11, Steps: 10, Duration: 2 * time.Second, Time: now,
	}
	if err := sink.RecordScenario(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("scenario_score").
		AddTag("run_id", "r1").
		AddTag("scale", "household").
		AddTag("location", "Paris").
		AddTag("horizon", "24").
		AddTag("season", "winter").
		AddTag("model", "lstm").
		AddField("nle", 0.123).
		AddField("model_cost", 12.5).
		AddField("baseline_cost", 11.0).
		AddField("steps", 10).
		AddField("duration_ms", 2000.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(c.bodies) != 1 || c.bodies[0] != expected {
		t.Errorf("unexpected body: %#v\nwant %s", c.bodies, expected)
	}
}

func TestInfluxSink_RecordScenarioFailure(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	err := sink.RecordScenario(coremetrics.ScenarioEvent{
		RunID: "r1", Scale: "household", Location: "Paris", Horizon: 24, Season: "winter", Model: "m",
		Err: errors.New("boom"), Time: time.Now(),
	})
	if err != nil {
		t.Fatalf("record error: %v", err)
	}
	if len(c.bodies) != 1 || !strings.Contains(c.bodies[0], `error="boom"`) || strings.Contains(c.bodies[0], "nle=") {
		t.Errorf("unexpected body: %#v", c.bodies)
	}
}

func TestInfluxSink_RecordStep(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	now := time.Unix(1700000000, 0)
	ev := coremetrics.StepEvent{
		Episode: "a#model",
		Row: model.OperationRow{
			Step: 2, Time: now, NetLoad: 10, Charge: -1.5, Energy: 3, Load: 11, OprNetLoad: 9.5, Peak: 10,
		},
		SolveTime:  1500 * time.Microsecond,
		Iterations: 4,
	}
	if err := sink.RecordStep(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("mpc_step").
		AddTag("episode", "a#model").
		AddField("step", 2).
		AddField("net_load", 10.0).
		AddField("charge", -1.5).
		AddField("energy", 3.0).
		AddField("load", 11.0).
		AddField("opr_net_load", 9.5).
		AddField("peak", 10.0).
		AddField("iterations", 4).
		AddField("solve_ms", 1.5).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(c.bodies) != 1 || c.bodies[0] != expected {
		t.Errorf("unexpected body: %#v\nwant %s", c.bodies, expected)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
