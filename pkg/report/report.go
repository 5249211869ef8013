// Package report renders convergence and audit outcomes for people (coloured
// text) and machines (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adfharrison1/restodb/internal/ui"
	"github.com/adfharrison1/restodb/pkg/domain"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Summary is everything one CLI invocation produced. Nil parts are omitted.
type Summary struct {
	Database string                    `json:"database,omitempty"`
	Plan     *domain.ConvergencePlan   `json:"plan,omitempty"`
	Result   *domain.ConvergenceResult `json:"convergence,omitempty"`
	Audits   []domain.QueryPlanReport  `json:"audits,omitempty"`
}

// Write renders s in the given format.
func Write(w io.Writer, s Summary, format string) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, s)
	case FormatText, "":
		WriteText(w, s)
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}

// WriteJSON renders s as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// WriteText lists every action taken, every failure with its reason, every
// skipped action and every audit verdict.
func WriteText(w io.Writer, s Summary) {
	if s.Plan != nil {
		writePlan(w, *s.Plan)
	}
	if s.Result != nil {
		writeResult(w, s.Result)
	}
	if len(s.Audits) > 0 {
		writeAudits(w, s.Audits)
	}
}

func writePlan(w io.Writer, plan domain.ConvergencePlan) {
	ui.Header(w, "Plan")
	if plan.Empty() {
		ui.Successf(w, "store matches the declaration")
	}
	for _, a := range plan.Actions {
		fmt.Fprintf(w, "  %s %s\n", a, reason(a.Reason))
	}
	writeUnmanaged(w, plan.Unmanaged)
	fmt.Fprintln(w)
}

func writeResult(w io.Writer, r *domain.ConvergenceResult) {
	ui.Header(w, "Convergence")
	for _, a := range r.Applied {
		ui.Successf(w, "%s %s", a, reason(a.Reason))
	}
	for _, f := range r.Failures {
		ui.Errorf(w, "%s: %s", f.Action, f.Reason)
	}
	for _, a := range r.Skipped {
		ui.Warningf(w, "skipped %s %s", a, reason(a.Reason))
	}
	writeUnmanaged(w, r.Unmanaged)

	fmt.Fprintf(w, "%s %s applied, %s failed, %s skipped in %s\n",
		ui.Label("Total:"),
		ui.CountText(len(r.Applied)),
		ui.CountText(len(r.Failures)),
		ui.CountText(len(r.Skipped)),
		r.Duration.Round(time.Millisecond),
	)
	fmt.Fprintln(w)
}

func writeUnmanaged(w io.Writer, unmanaged []domain.UnmanagedIndex) {
	for _, u := range unmanaged {
		ui.Infof(w, "unmanaged index %s.%s %s", u.Collection, u.Index.Name, ui.DimText(u.Index.Spec().KeySignature()))
	}
}

func writeAudits(w io.Writer, audits []domain.QueryPlanReport) {
	ui.Header(w, "Query plans")
	for _, r := range audits {
		line := fmt.Sprintf("%s %s index=%s examined=%d returned=%d keys=%d %dms selectivity=%.3f",
			r.Query, ui.DimText(r.Shape), r.IndexUsed, r.DocsExamined, r.DocsReturned, r.KeysExamined,
			r.ElapsedMillis, r.Selectivity)
		switch {
		case r.Degraded():
			ui.Warningf(w, "%s (%s)", line, degradedReason(r))
		case r.Ineffective:
			ui.Warningf(w, "%s ineffective", line)
		case r.Hint != "" && !r.PlannerChoice:
			ui.Infof(w, "%s planner chose %s over %s", line, r.Free.IndexUsed, r.Hint)
		default:
			ui.Successf(w, "%s", line)
		}
	}
}

func degradedReason(r domain.QueryPlanReport) string {
	var parts []string
	if r.Free.Error != "" {
		parts = append(parts, "free: "+r.Free.Error)
	}
	if r.Hinted != nil && r.Hinted.Error != "" {
		parts = append(parts, "hinted: "+r.Hinted.Error)
	}
	return strings.Join(parts, "; ")
}

func reason(r string) string {
	if r == "" {
		return ""
	}
	return ui.DimText("(" + r + ")")
}
