package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's instrumentation.
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	tasksPersisted prometheus.Counter
	eventsCreated  prometheus.Counter
}

// NewMetrics creates and registers the pipeline metrics. A nil registerer
// yields unregistered metrics, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minuted",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "minuted",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Wall time spent per pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		tasksPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minuted",
			Name:      "pipeline_tasks_persisted_total",
			Help:      "Tasks persisted across all runs.",
		}),
		eventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minuted",
			Name:      "pipeline_calendar_events_total",
			Help:      "Calendar events created across all runs.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runsTotal, m.stageDuration, m.tasksPersisted, m.eventsCreated)
	}
	return m
}

func (m *Metrics) observeStage(stage string, start time.Time) {
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) recordRun(outcome string) {
	m.runsTotal.WithLabelValues(outcome).Inc()
}
