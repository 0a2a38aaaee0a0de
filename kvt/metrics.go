package kvt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	commits          prometheus.Counter
	rollbacks        prometheus.Counter
	conflicts        *prometheus.CounterVec
	scans            prometheus.Counter
	liveTransactions prometheus.Gauge
}

// newMetrics builds the engine's metrics. With a nil registerer the
// metrics still exist but are not registered anywhere.
func newMetrics(registerer prometheus.Registerer) *metrics {
	factory := promauto.With(registerer)

	return &metrics{
		commits: factory.NewCounter(prometheus.CounterOpts{
			Name: "kvt_commits_total",
			Help: "Total number of committed transactions",
		}),
		rollbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "kvt_rollbacks_total",
			Help: "Total number of rolled back transactions",
		}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kvt_conflicts_total",
			Help: "Total number of concurrency conflicts surfaced to callers",
		}, []string{"cause"}),
		scans: factory.NewCounter(prometheus.CounterOpts{
			Name: "kvt_scans_total",
			Help: "Total number of range scans",
		}),
		liveTransactions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kvt_transactions_live",
			Help: "Number of live transactions",
		}),
	}
}

const (
	conflictLocked = "locked"
	conflictStale  = "stale"
)
