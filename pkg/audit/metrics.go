package audit

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditCount counts audits by collection and verdict.
var AuditCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "restodb",
	Subsystem: "audit",
	Name:      "queries_total",
	Help:      "Audited queries by verdict",
}, []string{"collection", "verdict"})

// Selectivity holds the last selectivity measured per query.
var Selectivity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "restodb",
	Subsystem: "audit",
	Name:      "selectivity",
	Help:      "Returned over examined documents of the last audit of a query",
}, []string{"query"})

// Register adds the audit metrics to reg. Registering twice is not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{AuditCount, Selectivity} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
