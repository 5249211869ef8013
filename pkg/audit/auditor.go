// Package audit explains representative queries against a store and reports
// whether the declared index is chosen and effective.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adfharrison1/restodb/pkg/domain"
)

// DefaultIneffectiveRatio flags a plan that examines more than this many
// documents per document returned.
const DefaultIneffectiveRatio = 20

// Auditor runs explain for query shapes. It holds no store state.
type Auditor struct {
	logger *slog.Logger
	ratio  float64
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithLogger sets the logger for audit events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auditor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithIneffectiveRatio changes the examined/returned ratio above which a plan
// is reported as ineffective.
func WithIneffectiveRatio(ratio float64) Option {
	return func(a *Auditor) {
		if ratio > 0 {
			a.ratio = ratio
		}
	}
}

// New returns an Auditor with the default ineffective ratio.
func New(opts ...Option) *Auditor {
	a := &Auditor{logger: slog.Default(), ratio: DefaultIneffectiveRatio}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Audit explains q once with a free planner choice and, when q declares a
// hint, once more forcing it. Failures degrade the affected run to index
// "none" with the reason recorded; Audit never returns an error.
func (a *Auditor) Audit(ctx context.Context, gw domain.Gateway, q domain.QuerySpec) domain.QueryPlanReport {
	report := domain.QueryPlanReport{
		Query:      q.Name,
		Shape:      q.Shape(),
		Collection: q.Collection,
		Hint:       q.Hint,
	}

	report.Free = a.run(ctx, gw, q.WithoutHint())
	primary := report.Free
	if q.Hint != "" {
		hinted := a.run(ctx, gw, q)
		report.Hinted = &hinted
		primary = hinted
		report.PlannerChoice = report.Free.IndexUsed == q.Hint
	}

	report.IndexUsed = primary.IndexUsed
	report.DocsExamined = primary.DocsExamined
	report.DocsReturned = primary.DocsReturned
	report.KeysExamined = primary.KeysExamined
	report.ElapsedMillis = primary.ElapsedMillis
	report.Selectivity = primary.Selectivity()
	report.Ineffective = primary.Error == "" && a.ineffective(primary)

	verdict := "ok"
	switch {
	case report.Degraded():
		verdict = "degraded"
	case report.Ineffective:
		verdict = "ineffective"
	}
	AuditCount.WithLabelValues(q.Collection, verdict).Inc()
	Selectivity.WithLabelValues(q.Name).Set(report.Selectivity)

	a.logger.Info("audit.query",
		"query", q.Name,
		"index", report.IndexUsed,
		"examined", report.DocsExamined,
		"returned", report.DocsReturned,
		"selectivity", report.Selectivity,
		"verdict", verdict,
	)
	return report
}

// AuditAll audits queries in order.
func (a *Auditor) AuditAll(ctx context.Context, gw domain.Gateway, queries []domain.QuerySpec) []domain.QueryPlanReport {
	out := make([]domain.QueryPlanReport, 0, len(queries))
	for _, q := range queries {
		out = append(out, a.Audit(ctx, gw, q))
	}
	return out
}

func (a *Auditor) ineffective(p domain.PlanStats) bool {
	returned := p.DocsReturned
	if returned < 1 {
		returned = 1
	}
	return float64(p.DocsExamined) > a.ratio*float64(returned)
}

// run explains q. A panic in the gateway or the parser is reported like any
// other plan failure.
func (a *Auditor) run(ctx context.Context, gw domain.Gateway, q domain.QuerySpec) (stats domain.PlanStats) {
	defer func() {
		if r := recover(); r != nil {
			stats = a.degraded(q, fmt.Errorf("%w: explain panicked: %v", domain.ErrPlanUnavailable, r))
		}
	}()

	payload, err := gw.Explain(ctx, q)
	if err != nil {
		return a.degraded(q, err)
	}
	stats, err = ParseExplain(payload)
	if err != nil {
		return a.degraded(q, err)
	}
	return stats
}

func (a *Auditor) degraded(q domain.QuerySpec, err error) domain.PlanStats {
	a.logger.Warn("audit.plan.unavailable", "query", q.Name, "hint", q.Hint, "err", err)
	return domain.PlanStats{IndexUsed: domain.NoIndex, Error: err.Error()}
}
