package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for notification delivery.
type Metrics struct {
	Sent                prometheus.Counter
	Failed              prometheus.Counter
	Dropped             prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Sent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_notifications_sent_total",
			Help: "Total number of notifications delivered to the channel",
		}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_notifications_failed_total",
			Help: "Total number of failed notification deliveries (before retry)",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_notifications_dropped_total",
			Help: "Total number of malformed notification jobs dropped",
		}),
		CircuitBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "welfare_notification_circuit_breaker_state",
			Help: "Current channel circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) IncSent() {
	if m != nil {
		m.Sent.Inc()
	}
}

func (m *Metrics) IncFailed() {
	if m != nil {
		m.Failed.Inc()
	}
}

func (m *Metrics) IncDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

// SetCircuitBreakerState matches channel.WithStateHook.
func (m *Metrics) SetCircuitBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
