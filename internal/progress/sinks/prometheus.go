package sinks

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ddoubleg123/carrot-discovery/internal/progress"
)

// PrometheusSink mirrors enrichment stage events into Prometheus collectors.
// Collectors are registered against an injected registry so tests can use
// isolated registries.
type PrometheusSink struct {
	runsStarted    prometheus.Counter
	runsCompleted  *prometheus.CounterVec
	runsActive     prometheus.Gauge
	stageTotal     *prometheus.CounterVec
	stageDurations *prometheus.HistogramVec
}

// NewPrometheusSink creates a sink and registers its collectors.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enrich_runs_started_total",
			Help: "Number of enrichment runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrich_runs_completed_total",
			Help: "Number of enrichment runs completed, by outcome.",
		}, []string{"outcome"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "enrich_runs_active",
			Help: "Number of enrichment runs currently in flight.",
		}),
		stageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrich_stage_events_total",
			Help: "Stage events observed, by phase and outcome.",
		}, []string{"phase", "outcome"}),
		stageDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enrich_stage_event_duration_seconds",
			Help:    "Stage durations as reported by progress events.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
	}

	collectors := []prometheus.Collector{
		s.runsStarted, s.runsCompleted, s.runsActive, s.stageTotal, s.stageDurations,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Consume applies each event in the batch to the collectors.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Phase {
	case progress.PhaseRunStart:
		s.runsStarted.Inc()
		s.runsActive.Inc()
	case progress.PhaseRunDone:
		s.runsActive.Dec()
		s.runsCompleted.WithLabelValues(outcomeLabel(evt.OK)).Inc()
	default:
		s.stageTotal.WithLabelValues(string(evt.Phase), outcomeLabel(evt.OK)).Inc()
		s.stageDurations.WithLabelValues(string(evt.Phase)).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func outcomeLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
