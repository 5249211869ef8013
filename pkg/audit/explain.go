package audit

import (
	"fmt"

	"github.com/adfharrison1/restodb/pkg/domain"
)

// ParseExplain reads an executionStats explain payload. Classic plans keep
// the stage tree under queryPlanner.winningPlan; the slot-based engine nests
// it one level deeper under winningPlan.queryPlan.
func ParseExplain(payload domain.Document) (domain.PlanStats, error) {
	stats := domain.PlanStats{IndexUsed: domain.NoIndex}

	planner, ok := asMap(payload["queryPlanner"])
	if !ok {
		return stats, fmt.Errorf("%w: explain payload has no queryPlanner", domain.ErrPlanUnavailable)
	}
	winning, ok := asMap(planner["winningPlan"])
	if !ok {
		return stats, fmt.Errorf("%w: explain payload has no winningPlan", domain.ErrPlanUnavailable)
	}
	if nested, ok := asMap(winning["queryPlan"]); ok {
		winning = nested
	}
	execution, ok := asMap(payload["executionStats"])
	if !ok {
		return stats, fmt.Errorf("%w: explain payload has no executionStats", domain.ErrPlanUnavailable)
	}

	stats.Stage, _ = winning["stage"].(string)
	if stats.Stage == "" {
		return stats, fmt.Errorf("%w: winning plan has no stage", domain.ErrPlanUnavailable)
	}
	if input, ok := asMap(winning["inputStage"]); ok {
		stats.InputStage, _ = input["stage"].(string)
	}
	if name := indexName(winning); name != "" {
		stats.IndexUsed = name
	}

	stats.DocsReturned = toInt64(execution["nReturned"])
	stats.DocsExamined = toInt64(execution["totalDocsExamined"])
	stats.KeysExamined = toInt64(execution["totalKeysExamined"])
	stats.ElapsedMillis = toInt64(execution["executionTimeMillis"])
	return stats, nil
}

// indexName returns the first index named in the stage tree, depth first.
func indexName(stage map[string]interface{}) string {
	if name, ok := stage["indexName"].(string); ok && name != "" {
		return name
	}
	if s, _ := stage["stage"].(string); s == "IDHACK" {
		return domain.IDIndexName
	}
	if input, ok := asMap(stage["inputStage"]); ok {
		if name := indexName(input); name != "" {
			return name
		}
	}
	if inputs, ok := stage["inputStages"].([]interface{}); ok {
		for _, in := range inputs {
			if m, ok := asMap(in); ok {
				if name := indexName(m); name != "" {
					return name
				}
			}
		}
	}
	return ""
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case domain.Document:
		return m, true
	}
	return nil, false
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	}
	return 0
}
