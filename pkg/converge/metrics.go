package converge

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Action results used as metric labels.
const (
	resultApplied = "applied"
	resultFailed  = "failed"
	resultSkipped = "skipped"
	resultNoop    = "noop"
)

// ActionCount counts convergence actions by outcome.
var ActionCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "restodb",
	Subsystem: "converge",
	Name:      "actions_total",
	Help:      "Convergence actions by collection, kind and result",
}, []string{"collection", "kind", "result"})

// RunCount counts runs by outcome: ok, partial or aborted.
var RunCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "restodb",
	Subsystem: "converge",
	Name:      "runs_total",
	Help:      "Convergence runs by outcome",
}, []string{"outcome"})

// RunDuration observes the wall time of each run.
var RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "restodb",
	Subsystem: "converge",
	Name:      "run_duration_seconds",
	Help:      "Duration of convergence runs",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
})

// Register adds the convergence metrics to reg. Registering twice is not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{ActionCount, RunCount, RunDuration} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
