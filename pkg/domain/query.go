package domain

import (
	"fmt"
	"sort"
	"strings"
)

// NoIndex is reported when a plan uses no index.
const NoIndex = "none"

// SortField is one component of a sort order.
type SortField struct {
	Field string `json:"field" yaml:"field"`
	Desc  bool   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// QuerySpec is a representative query shape for an entity.
type QuerySpec struct {
	Name       string      `json:"name" yaml:"name"`
	Collection string      `json:"collection" yaml:"collection"`
	Filter     Document    `json:"filter,omitempty" yaml:"filter,omitempty"`
	Sort       []SortField `json:"sort,omitempty" yaml:"sort,omitempty"`
	Hint       string      `json:"hint,omitempty" yaml:"hint,omitempty"`
	Limit      int64       `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// WithoutHint returns a copy of q that lets the planner choose freely.
func (q QuerySpec) WithoutHint() QuerySpec {
	q.Hint = ""
	return q
}

// Shape renders the query without its literal values, e.g.
// "ordenes{estado,restauranteId} sort(fechaCreacion:-1)".
func (q QuerySpec) Shape() string {
	fields := make([]string, 0, len(q.Filter))
	for k := range q.Filter {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var b strings.Builder
	fmt.Fprintf(&b, "%s{%s}", q.Collection, strings.Join(fields, ","))
	if len(q.Sort) > 0 {
		parts := make([]string, len(q.Sort))
		for i, s := range q.Sort {
			dir := 1
			if s.Desc {
				dir = -1
			}
			parts[i] = fmt.Sprintf("%s:%d", s.Field, dir)
		}
		fmt.Fprintf(&b, " sort(%s)", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " limit(%d)", q.Limit)
	}
	return b.String()
}

// PlanStats is what one explain run reports.
type PlanStats struct {
	Stage         string `json:"stage"`
	InputStage    string `json:"input_stage,omitempty"`
	IndexUsed     string `json:"index_used"`
	DocsExamined  int64  `json:"docs_examined"`
	DocsReturned  int64  `json:"docs_returned"`
	KeysExamined  int64  `json:"keys_examined"`
	ElapsedMillis int64  `json:"elapsed_millis"`
	Error         string `json:"error,omitempty"`
}

// Selectivity is returned / max(examined, 1).
func (p PlanStats) Selectivity() float64 {
	examined := p.DocsExamined
	if examined < 1 {
		examined = 1
	}
	return float64(p.DocsReturned) / float64(examined)
}

// QueryPlanReport is one audit result. The top-level figures come from the
// hinted run when a hint was declared and from the free run otherwise.
type QueryPlanReport struct {
	Query         string     `json:"query"`
	Shape         string     `json:"shape"`
	Collection    string     `json:"collection"`
	Hint          string     `json:"hint,omitempty"`
	IndexUsed     string     `json:"index_used"`
	DocsExamined  int64      `json:"docs_examined"`
	DocsReturned  int64      `json:"docs_returned"`
	KeysExamined  int64      `json:"keys_examined"`
	ElapsedMillis int64      `json:"elapsed_millis"`
	Selectivity   float64    `json:"selectivity"`
	Ineffective   bool       `json:"ineffective"`
	PlannerChoice bool       `json:"planner_chose_hint"`
	Free          PlanStats  `json:"free"`
	Hinted        *PlanStats `json:"hinted,omitempty"`
}

// Degraded reports whether either run could not produce a plan.
func (r QueryPlanReport) Degraded() bool {
	return r.Free.Error != "" || (r.Hinted != nil && r.Hinted.Error != "")
}
