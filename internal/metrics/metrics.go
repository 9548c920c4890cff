package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidahmann/ledgerproof/internal/ledger"
)

const (
	// Subsystem is shared by all metrics exposed by this package.
	Subsystem = "receipt"

	OutcomeVerified = "verified"
)

// Metrics records verification outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	Verifications *prometheus.CounterVec
	Duration      prometheus.Histogram
}

// New builds Metrics and registers them with reg.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: Subsystem,
			Name:      "verifications_total",
			Help:      "Receipt verifications by outcome (verified or failure kind).",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: Subsystem,
			Name:      "verification_duration_seconds",
			Help:      "Time spent verifying a single receipt.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
	for _, c := range []prometheus.Collector{m.Verifications, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one result.
func (m *Metrics) Observe(res ledger.Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(Outcome(res)).Inc()
	m.Duration.Observe(elapsed.Seconds())
}

// Outcome is the label value recorded for res.
func Outcome(res ledger.Result) string {
	if res.Verified() {
		return OutcomeVerified
	}
	if res.Failure != nil {
		return string(res.Failure.Kind)
	}
	return "unknown"
}
