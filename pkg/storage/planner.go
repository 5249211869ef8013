package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/adfharrison1/restodb/pkg/indexing"
)

// Stage names follow the MongoDB explain vocabulary.
const (
	StageCollScan  = "COLLSCAN"
	StageIxScan    = "IXSCAN"
	StageFetch     = "FETCH"
	StageSort      = "SORT"
	StageLimit     = "LIMIT"
	StageTextMatch = "TEXT_MATCH"
)

// queryPlan is the access path chosen for one query.
type queryPlan struct {
	index      *indexing.Index // nil for a collection scan
	prefix     []interface{}
	reverse    bool
	sortCovers bool
	search     string // non-empty for $text queries
}

// execution is the outcome of running a plan.
type execution struct {
	docs         []domain.Document
	keysExamined int
	docsExamined int
	elapsed      time.Duration
}

// choosePlan picks the access path. A hint forces the named index; otherwise
// the index pinning the longest equality prefix of the filter wins, ties
// going to the one that also provides the sort, then to creation order.
func (se *StorageEngine) choosePlan(q domain.QuerySpec) (*queryPlan, error) {
	if err := ValidateFilter(q.Filter); err != nil {
		return nil, err
	}
	search, _ := textSearch(q.Filter)
	indexes := se.indexEngine.GetIndexes(q.Collection)

	if q.Hint != "" {
		index, ok := se.indexEngine.GetIndex(q.Collection, q.Hint)
		if !ok {
			return nil, fmt.Errorf("%w: hint provided does not correspond to an existing index: %s",
				domain.ErrPlanUnavailable, q.Hint)
		}
		if index.Spec.HasText() != (search != "") {
			return nil, fmt.Errorf("%w: index %s cannot answer this query", domain.ErrPlanUnavailable, q.Hint)
		}
		return planFor(index, q, search), nil
	}

	if search != "" {
		for _, index := range indexes {
			if index.Spec.HasText() {
				return planFor(index, q, search), nil
			}
		}
		return nil, fmt.Errorf("%w: text index required for $text query", domain.ErrPlanUnavailable)
	}

	var best *queryPlan
	for _, index := range indexes {
		if index.Spec.HasText() || hasGeoKey(index.Spec) {
			continue
		}
		candidate := planFor(index, q, "")
		if len(candidate.prefix) == 0 && !candidate.sortCovers {
			continue
		}
		if best == nil || len(candidate.prefix) > len(best.prefix) ||
			(len(candidate.prefix) == len(best.prefix) && candidate.sortCovers && !best.sortCovers) {
			best = candidate
		}
	}
	if best == nil {
		return &queryPlan{}, nil
	}
	return best, nil
}

func planFor(index *indexing.Index, q domain.QuerySpec, search string) *queryPlan {
	p := &queryPlan{index: index, search: search}
	if search != "" {
		return p
	}
	p.prefix = index.EqualityPrefix(q.Filter)
	if len(q.Sort) > 0 {
		p.sortCovers, p.reverse = index.ProvidesSort(len(p.prefix), q.Sort)
	}
	return p
}

func hasGeoKey(spec domain.IndexSpec) bool {
	for _, k := range spec.Keys {
		if k.Kind == domain.Geo2DSphere {
			return true
		}
	}
	return false
}

// execute runs the plan against a collection. Candidate documents are
// fetched in index (or id) order; when the index provides the sort the scan
// stops as soon as the limit is reached.
func (p *queryPlan) execute(collection *domain.Collection, q domain.QuerySpec) execution {
	start := time.Now()
	var ex execution

	var ids []string
	switch {
	case p.index == nil:
		ids = make([]string, 0, len(collection.Documents))
		for id := range collection.Documents {
			ids = append(ids, id)
		}
		sortIDs(ids)
	case p.search != "":
		ids, ex.keysExamined = p.index.SearchText(p.search)
	default:
		ids, ex.keysExamined = p.index.Scan(p.prefix, p.reverse)
	}

	needsSort := len(q.Sort) > 0 && !p.sortCovers
	for _, id := range ids {
		doc, ok := collection.Documents[id]
		if !ok {
			continue
		}
		ex.docsExamined++
		if !MatchesFilter(doc, q.Filter) {
			continue
		}
		ex.docs = append(ex.docs, doc.Clone())
		if !needsSort && q.Limit > 0 && int64(len(ex.docs)) >= q.Limit {
			break
		}
	}

	if needsSort {
		sortDocuments(ex.docs, q.Sort)
	}
	if q.Limit > 0 && int64(len(ex.docs)) > q.Limit {
		ex.docs = ex.docs[:q.Limit]
	}
	ex.elapsed = time.Since(start)
	return ex
}

func sortDocuments(docs []domain.Document, order []domain.SortField) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, s := range order {
			a, _ := indexing.LookupField(docs[i], s.Field)
			b, _ := indexing.LookupField(docs[j], s.Field)
			c := indexing.CompareValues(a, b)
			if s.Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// winningPlan renders the plan as a MongoDB-style stage tree.
func (p *queryPlan) winningPlan(q domain.QuerySpec) map[string]interface{} {
	var stage map[string]interface{}
	switch {
	case p.index == nil:
		stage = map[string]interface{}{"stage": StageCollScan, "direction": "forward", "filter": map[string]interface{}(q.Filter)}
	default:
		direction := "forward"
		if p.reverse {
			direction = "backward"
		}
		keyPattern := make(map[string]interface{}, len(p.index.Spec.Keys))
		for _, k := range p.index.Spec.Keys {
			keyPattern[k.Field] = k.Kind.Value()
		}
		scan := map[string]interface{}{
			"stage":      StageIxScan,
			"indexName":  p.index.Spec.Name,
			"keyPattern": keyPattern,
			"isUnique":   p.index.Spec.Unique,
			"direction":  direction,
		}
		stage = map[string]interface{}{"stage": StageFetch, "inputStage": scan}
		if p.search != "" {
			stage = map[string]interface{}{"stage": StageTextMatch, "inputStage": stage}
		}
	}
	if len(q.Sort) > 0 && !p.sortCovers {
		sortPattern := make(map[string]interface{}, len(q.Sort))
		for _, s := range q.Sort {
			dir := int32(1)
			if s.Desc {
				dir = -1
			}
			sortPattern[s.Field] = dir
		}
		stage = map[string]interface{}{"stage": StageSort, "sortPattern": sortPattern, "inputStage": stage}
	}
	if q.Limit > 0 {
		stage = map[string]interface{}{"stage": StageLimit, "limitAmount": q.Limit, "inputStage": stage}
	}
	return stage
}

// Find runs a query and returns the matching documents.
func (se *StorageEngine) Find(ctx context.Context, q domain.QuerySpec) ([]domain.Document, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	se.mu.RLock()
	defer se.mu.RUnlock()

	collection, exists := se.collections[q.Collection]
	if !exists {
		return []domain.Document{}, nil
	}
	p, err := se.choosePlan(q)
	if err != nil {
		return nil, &domain.OpError{Op: "find", Collection: q.Collection, Err: err}
	}
	ex := p.execute(collection, q)
	if ex.docs == nil {
		ex.docs = []domain.Document{}
	}
	return ex.docs, nil
}

// Explain runs a query and returns an executionStats explain payload.
func (se *StorageEngine) Explain(ctx context.Context, q domain.QuerySpec) (domain.Document, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	se.mu.RLock()
	defer se.mu.RUnlock()

	collection, exists := se.collections[q.Collection]
	if !exists {
		collection = domain.NewCollection(q.Collection)
	}
	p, err := se.choosePlan(q)
	if err != nil {
		return nil, &domain.OpError{Op: "explain", Collection: q.Collection, Err: err}
	}
	ex := p.execute(collection, q)
	plan := p.winningPlan(q)

	return domain.Document{
		"queryPlanner": map[string]interface{}{
			"namespace":      se.database + "." + q.Collection,
			"indexFilterSet": false,
			"winningPlan":    plan,
			"rejectedPlans":  []interface{}{},
		},
		"executionStats": map[string]interface{}{
			"executionSuccess":    true,
			"nReturned":           int64(len(ex.docs)),
			"executionTimeMillis": ex.elapsed.Milliseconds(),
			"totalKeysExamined":   int64(ex.keysExamined),
			"totalDocsExamined":   int64(ex.docsExamined),
			"executionStages":     plan,
		},
		"ok": float64(1),
	}, nil
}
