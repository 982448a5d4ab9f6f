package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job outcomes recorded by the queue consumers.
const (
	OutcomeSuccess    = "success"
	OutcomeRetry      = "retry"
	OutcomeDeadLetter = "dead_letter"
	OutcomeUnroutable = "unroutable"
)

// Queue holds the job pipeline metrics shared by every queue backend.
// A nil *Queue is valid and records nothing.
type Queue struct {
	JobsPublished   *prometheus.CounterVec
	JobsHandled     *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	OutboxPublished prometheus.Counter
	OutboxBacklog   prometheus.Gauge
}

// New creates and registers the queue metrics.
func New() *Queue {
	return &Queue{
		JobsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "welfare_jobs_published_total",
			Help: "Total number of jobs published to the queue",
		}, []string{"backend", "kind"}),
		JobsHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "welfare_jobs_handled_total",
			Help: "Total number of job deliveries by outcome",
		}, []string{"kind", "outcome"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "welfare_job_duration_seconds",
			Help:    "Duration of job handling",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"kind"}),
		OutboxPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_outbox_published_total",
			Help: "Total number of outbox entries relayed to the queue",
		}),
		OutboxBacklog: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "welfare_outbox_claimed_batch_size",
			Help: "Number of outbox entries claimed by the last relay pass",
		}),
	}
}

func (m *Queue) IncPublished(backend, kind string) {
	if m == nil {
		return
	}
	m.JobsPublished.WithLabelValues(backend, kind).Inc()
}

// ObserveHandled records one delivery. Call with time.Now() at the start of
// handling.
func (m *Queue) ObserveHandled(kind, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.JobsHandled.WithLabelValues(kind, outcome).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (m *Queue) ObserveRelayPass(claimed, published int) {
	if m == nil {
		return
	}
	m.OutboxBacklog.Set(float64(claimed))
	m.OutboxPublished.Add(float64(published))
}
