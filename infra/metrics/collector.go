package metrics

import (
	"context"

	"github.com/kilianp07/peakmpc/core/events"
	coremetrics "github.com/kilianp07/peakmpc/core/metrics"
	"github.com/kilianp07/peakmpc/infra/logger"
	"github.com/kilianp07/peakmpc/internal/eventbus"
)

// CollectorBuffer is the subscription size used by StartStepCollector. A
// sweep publishes one event per solve from every worker.
const CollectorBuffer = 4096

type sizedSubscriber interface {
	SubscribeN(size int) <-chan eventbus.Event
}

type dropCounter interface {
	Dropped() uint64
}

// StartStepCollector subscribes to the event bus and forwards step and
// episode events to sinks implementing StepRecorder or EpisodeRecorder.
// Drops counted by the bus are logged and forwarded to sinks implementing
// DropRecorder; the count covers every subscriber of the bus.
// It stops when the context is canceled or the bus is closed; the returned
// channel is closed once the collector has drained its subscription.
func StartStepCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	steps, _ := sink.(coremetrics.StepRecorder)
	episodes, _ := sink.(coremetrics.EpisodeRecorder)
	drops, _ := sink.(coremetrics.DropRecorder)
	var sub <-chan eventbus.Event
	if sb, ok := bus.(sizedSubscriber); ok {
		sub = sb.SubscribeN(CollectorBuffer)
	} else {
		sub = bus.Subscribe()
	}
	counter, _ := bus.(dropCounter)
	var seen uint64
	reportDrops := func() {
		if counter == nil {
			return
		}
		n := counter.Dropped()
		if n <= seen {
			return
		}
		delta := n - seen
		seen = n
		log.Warnf("event bus dropped %d events", delta)
		if drops != nil {
			if err := drops.RecordDropped(delta); err != nil {
				log.Warnf("record dropped events: %v", err)
			}
		}
	}
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		defer reportDrops()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.StepEvent:
					if steps == nil {
						continue
					}
					if err := steps.RecordStep(coremetrics.StepEvent{
						Episode:    e.Episode,
						Row:        e.Row,
						SolveTime:  e.SolveTime,
						Iterations: e.Iterations,
					}); err != nil {
						log.Warnf("record step %s/%d: %v", e.Episode, e.Row.Step, err)
					}
				case events.EpisodeEvent:
					if episodes == nil {
						continue
					}
					if err := episodes.RecordEpisode(coremetrics.EpisodeEvent{
						Episode:  e.Episode,
						Steps:    e.Steps,
						Duration: e.Duration,
						Failed:   e.Err != nil,
					}); err != nil {
						log.Warnf("record episode %s: %v", e.Episode, err)
					}
				}
				reportDrops()
			}
		}
	}()
	return done
}
