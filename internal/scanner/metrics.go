package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
)

// skip reasons, used as the "reason" label
const (
	SkipFetch         = "fetch"
	SkipInvalidPrice  = "invalid_price"
	SkipNoBase        = "no_base_token"
	SkipUnprofitable  = "unprofitable"
	SkipInsignificant = "insignificant"
)

type Metrics struct {
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	failedPools   prometheus.Counter
	skips         *prometheus.CounterVec
	opportunities prometheus.Counter
	executions    *prometheus.CounterVec
}

// NewMetrics creates the scanner metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arb",
			Subsystem: "scanner",
			Name:      "cycles_total",
			Help:      "Detection cycles run.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arb",
			Subsystem: "scanner",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one detection cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		failedPools: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arb",
			Subsystem: "scanner",
			Name:      "failed_pools_total",
			Help:      "Pools whose reserves could not be read.",
		}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arb",
			Subsystem: "scanner",
			Name:      "skipped_paths_total",
			Help:      "Paths skipped in a cycle, by reason.",
		}, []string{"reason"}),
		opportunities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arb",
			Subsystem: "scanner",
			Name:      "opportunities_total",
			Help:      "Significant opportunities found.",
		}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arb",
			Subsystem: "scanner",
			Name:      "executions_total",
			Help:      "Flash loans submitted, by outcome.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.cycles, m.cycleDuration, m.failedPools, m.skips, m.opportunities, m.executions)
	return m
}
