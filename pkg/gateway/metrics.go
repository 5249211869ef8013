package gateway

import (
	"errors"
	"time"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// CallCount counts store calls by operation and result.
var CallCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "restodb",
	Subsystem: "gateway",
	Name:      "calls_total",
	Help:      "Store calls by operation and result",
}, []string{"op", "result"})

// RetryCount counts retried attempts by operation.
var RetryCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "restodb",
	Subsystem: "gateway",
	Name:      "retries_total",
	Help:      "Retried store calls by operation",
}, []string{"op"})

// CallDuration observes the latency of each attempt.
var CallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "restodb",
	Subsystem: "gateway",
	Name:      "call_duration_seconds",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
}, []string{"op"})

func observeCall(op string, err error, elapsed time.Duration) {
	CallDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	CallCount.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrConnection):
		return "connection"
	case errors.Is(err, domain.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrIndexConflict):
		return "index_conflict"
	case errors.Is(err, domain.ErrInvalidSpec):
		return "invalid_spec"
	case errors.Is(err, domain.ErrPlanUnavailable):
		return "plan_unavailable"
	}
	return "error"
}

// Register adds the gateway metrics to reg. Registering twice is not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{CallCount, RetryCount, CallDuration} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
