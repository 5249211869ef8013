package converge

import (
	"github.com/adfharrison1/restodb/pkg/domain"
)

// Action reasons shown in plans and summaries.
const (
	ReasonMissing    = "missing"
	ReasonChanged    = "keys or options changed"
	ReasonReplaces   = "replaces changed definition"
	ReasonUndeclared = "undeclared"
	ReasonDropFailed = "not attempted: drop of the existing index failed"
	ReasonCancelled  = "not attempted: run cancelled"
)

// Diff computes the convergence plan from the declaration and the live state.
// existing lists the live collections; live holds the indexes of each
// existing collection. Collection creations come first, then per collection
// (in declaration order) its drops followed by its creates.
func Diff(declared []domain.CollectionSpec, existing []string, live map[string][]domain.LiveIndexState, prune bool) domain.ConvergencePlan {
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	plan := domain.ConvergencePlan{Actions: []domain.Action{}}
	for _, c := range declared {
		if !present[c.Name] {
			plan.Actions = append(plan.Actions, domain.Action{
				Kind:       domain.ActionCreateCollection,
				Collection: c.Name,
				Reason:     ReasonMissing,
			})
		}
	}
	for _, c := range declared {
		cp := diffCollection(c, live[c.Name], prune)
		plan.Actions = append(plan.Actions, cp.drops...)
		plan.Actions = append(plan.Actions, cp.creates...)
		plan.Unmanaged = append(plan.Unmanaged, cp.unmanaged...)
	}
	return plan
}

// collectionPlan is the index work of one collection.
type collectionPlan struct {
	drops     []domain.Action
	creates   []domain.Action
	unmanaged []domain.UnmanagedIndex
	// replaced maps an index name to its drop, so a failed drop can
	// suppress the paired create.
	replaced map[string]bool
}

func diffCollection(c domain.CollectionSpec, live []domain.LiveIndexState, prune bool) collectionPlan {
	cp := collectionPlan{replaced: make(map[string]bool)}

	byName := make(map[string]domain.LiveIndexState, len(live))
	for _, l := range live {
		byName[l.Name] = l
	}
	declared := make(map[string]bool, len(c.Indexes))

	for _, spec := range c.Indexes {
		declared[spec.Name] = true
		spec := spec.Clone()
		current, exists := byName[spec.Name]
		switch {
		case !exists:
			cp.creates = append(cp.creates, createAction(c.Name, spec, ReasonMissing))
		case current.Matches(spec):
			// converged
		default:
			cp.drops = append(cp.drops, domain.Action{
				Kind:       domain.ActionDropIndex,
				Collection: c.Name,
				IndexName:  spec.Name,
				Reason:     ReasonChanged,
			})
			cp.creates = append(cp.creates, createAction(c.Name, spec, ReasonReplaces))
			cp.replaced[spec.Name] = true
		}
	}

	for _, l := range live {
		if l.Name == domain.IDIndexName || declared[l.Name] {
			continue
		}
		cp.unmanaged = append(cp.unmanaged, domain.UnmanagedIndex{Collection: c.Name, Index: l})
		if prune {
			cp.drops = append(cp.drops, domain.Action{
				Kind:       domain.ActionDropIndex,
				Collection: c.Name,
				IndexName:  l.Name,
				Reason:     ReasonUndeclared,
			})
		}
	}
	return cp
}

func createAction(coll string, spec domain.IndexSpec, reason string) domain.Action {
	return domain.Action{
		Kind:       domain.ActionCreateIndex,
		Collection: coll,
		IndexName:  spec.Name,
		Index:      &spec,
		Reason:     reason,
	}
}
