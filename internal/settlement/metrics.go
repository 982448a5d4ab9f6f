package settlement

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const outcomeError = "error"

// Metrics records settlement outcomes. A nil *Metrics records nothing.
type Metrics struct {
	Settlements *prometheus.CounterVec
	Duration    prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		Settlements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "welfare_settlements_total",
			Help: "Total number of settlement attempts by outcome",
		}, []string{"outcome"}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "welfare_settlement_duration_seconds",
			Help:    "Duration of settlement attempts",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveSettlement(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(outcome).Inc()
	m.Duration.Observe(time.Since(start).Seconds())
}
