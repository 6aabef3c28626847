package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/peakmpc/core/metrics"
	"github.com/kilianp07/peakmpc/infra/logger"
)

// InfluxSink writes scenario scores and MPC steps to InfluxDB.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordScenario writes one scenario_score point. Failed scenarios carry
// the error text instead of scores.
func (s *InfluxSink) RecordScenario(ev coremetrics.ScenarioEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("scenario_score").
		AddTag("run_id", ev.RunID).
		AddTag("scale", ev.Scale).
		AddTag("location", ev.Location).
		AddTag("horizon", strconv.Itoa(ev.Horizon)).
		AddTag("season", ev.Season).
		AddTag("model", ev.Model)
	if ev.Err != nil {
		p = p.AddField("error", ev.Err.Error())
	} else {
		p = p.AddField("nle", round3(ev.NLE)).
			AddField("model_cost", round3(ev.ModelCost)).
			AddField("baseline_cost", round3(ev.BaselineCost))
	}
	p = p.AddField("steps", ev.Steps).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStep writes one mpc_step point stamped with the step's timestamp.
func (s *InfluxSink) RecordStep(ev coremetrics.StepEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := ev.Row
	p := write.NewPointWithMeasurement("mpc_step").
		AddTag("episode", ev.Episode).
		AddField("step", r.Step).
		AddField("net_load", round3(r.NetLoad)).
		AddField("charge", round3(r.Charge)).
		AddField("energy", round3(r.Energy)).
		AddField("load", round3(r.Load)).
		AddField("opr_net_load", round3(r.OprNetLoad)).
		AddField("peak", round3(r.Peak)).
		AddField("iterations", ev.Iterations).
		AddField("solve_ms", round3(ev.SolveTime.Seconds()*1000)).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordEpisode writes an episode_end point.
func (s *InfluxSink) RecordEpisode(ev coremetrics.EpisodeEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("episode_end").
		AddTag("episode", ev.Episode).
		AddTag("failed", strconv.FormatBool(ev.Failed)).
		AddField("steps", ev.Steps).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
