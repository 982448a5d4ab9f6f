package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for scheme scans. A nil *Metrics records
// nothing.
type Metrics struct {
	Scans            prometheus.Counter
	Scanned          prometheus.Counter
	MatchesCreated   prometheus.Counter
	AlreadyMatched   prometheus.Counter
	EvaluationErrors prometheus.Counter
	WriteErrors      prometheus.Counter
	ScanDuration     prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		Scans: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_scheme_scans_total",
			Help: "Total number of scheme scans run",
		}),
		Scanned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_scan_candidates_total",
			Help: "Total number of candidates evaluated",
		}),
		MatchesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_matches_created_total",
			Help: "Total number of new match records",
		}),
		AlreadyMatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_matches_existing_total",
			Help: "Total number of eligible candidates that already had a match record",
		}),
		EvaluationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_scan_evaluation_errors_total",
			Help: "Total number of candidates whose evaluation failed closed",
		}),
		WriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "welfare_scan_write_errors_total",
			Help: "Total number of matches that could not be recorded",
		}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "welfare_scan_duration_seconds",
			Help:    "Duration of scheme scans",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
	}
}

func (m *Metrics) ObserveScan(s Summary) {
	if m == nil {
		return
	}
	m.Scans.Inc()
	m.Scanned.Add(float64(s.Scanned))
	m.MatchesCreated.Add(float64(s.Created))
	m.AlreadyMatched.Add(float64(s.AlreadyMatched))
	m.EvaluationErrors.Add(float64(s.EvaluationErrors))
	m.WriteErrors.Add(float64(s.WriteErrors))
	m.ScanDuration.Observe(s.Duration.Seconds())
}
