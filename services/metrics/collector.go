package metricsvc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/masomo-checker/core/reconcile"
)

const namespace = "masomo_checker"

// Pass outcomes
const (
	OutcomeCommitted = "committed"
	OutcomeDryRun    = "dry_run"
	OutcomeNoop      = "noop"
	OutcomeFailed    = "failed"
)

// Collector exposes pass results as Prometheus metrics.
type Collector struct {
	passes    *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	overdue   prometheus.Counter
	malformed prometheus.Counter
	answers   prometheus.Gauge
	duration  prometheus.Histogram
}

var _ reconcile.Observer = (*Collector)(nil) // interface compliance check

func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		passes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Reconciliation passes by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_dropped_total",
			Help:      "Triggers dropped because a pass was already running",
		}, []string{"trigger"}),
		overdue: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_marked_overdue_total",
			Help:      "Student answers written as overdue",
		}),
		malformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Records skipped because they could not be read",
		}),
		answers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "answers_last_pass",
			Help:      "Student answers seen by the last successful pass",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Reconciliation pass duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
	}
}

func Outcome(res reconcile.Result) string {
	switch {
	case !res.Succeeded():
		return OutcomeFailed
	case res.Committed:
		return OutcomeCommitted
	case res.DryRun && !res.Changes.IsEmpty():
		return OutcomeDryRun
	default:
		return OutcomeNoop
	}
}

func (c *Collector) PassFinished(res reconcile.Result) {
	c.passes.WithLabelValues(string(res.Trigger), Outcome(res)).Inc()
	c.duration.Observe(res.Duration.Seconds())
	c.malformed.Add(float64(res.Malformed))
	if !res.Succeeded() {
		return
	}
	c.answers.Set(float64(res.Answers))
	if res.Committed {
		c.overdue.Add(float64(res.Changes.Len()))
	}
}

func (c *Collector) TriggerDropped(trigger reconcile.Trigger) {
	c.dropped.WithLabelValues(string(trigger)).Inc()
}
