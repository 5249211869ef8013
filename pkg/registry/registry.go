// Package registry holds the declared schema: the collections, their named
// indexes and the representative queries audited against them.
package registry

import (
	"github.com/adfharrison1/restodb/pkg/domain"
)

// Registry is the validated, immutable declaration. It is safe for
// concurrent reads; every accessor returns copies.
type Registry struct {
	collections  []domain.CollectionSpec
	queries      []domain.QuerySpec
	capabilities domain.Capabilities
}

// Option configures a Registry.
type Option func(*Registry)

// WithCapabilities restricts the index kinds the target store can build.
// Declaring a kind outside the set is a schema error.
func WithCapabilities(c domain.Capabilities) Option {
	return func(r *Registry) {
		r.capabilities = c
	}
}

// WithQueries declares the representative queries to audit.
func WithQueries(queries ...domain.QuerySpec) Option {
	return func(r *Registry) {
		r.queries = append([]domain.QuerySpec(nil), queries...)
	}
}

// New validates collections and returns a registry. All problems are
// reported at once as a joined error of *domain.SchemaError values.
func New(collections []domain.CollectionSpec, opts ...Option) (*Registry, error) {
	r := &Registry{capabilities: domain.AllCapabilities}
	for _, opt := range opts {
		opt(r)
	}
	r.collections = make([]domain.CollectionSpec, len(collections))
	for i, c := range collections {
		r.collections[i] = c.Clone()
	}
	r.queries = cloneQueries(r.queries)

	if err := validate(r.collections, r.queries, r.capabilities); err != nil {
		return nil, err
	}
	return r, nil
}

// DeclaredCollections returns a deep copy of the declaration, in declaration order.
func (r *Registry) DeclaredCollections() []domain.CollectionSpec {
	out := make([]domain.CollectionSpec, len(r.collections))
	for i, c := range r.collections {
		out[i] = c.Clone()
	}
	return out
}

// Collection returns one declared collection.
func (r *Registry) Collection(name string) (domain.CollectionSpec, bool) {
	for _, c := range r.collections {
		if c.Name == name {
			return c.Clone(), true
		}
	}
	return domain.CollectionSpec{}, false
}

// Queries returns the declared audit queries, in declaration order.
func (r *Registry) Queries() []domain.QuerySpec {
	return cloneQueries(r.queries)
}

// Query returns one declared query by name.
func (r *Registry) Query(name string) (domain.QuerySpec, bool) {
	for _, q := range r.queries {
		if q.Name == name {
			return cloneQueries([]domain.QuerySpec{q})[0], true
		}
	}
	return domain.QuerySpec{}, false
}

// Capabilities returns the capability set the declaration was checked against.
func (r *Registry) Capabilities() domain.Capabilities {
	return r.capabilities
}

// IndexCount returns the number of declared indexes.
func (r *Registry) IndexCount() int {
	n := 0
	for _, c := range r.collections {
		n += len(c.Indexes)
	}
	return n
}

func cloneQueries(queries []domain.QuerySpec) []domain.QuerySpec {
	out := make([]domain.QuerySpec, len(queries))
	for i, q := range queries {
		out[i] = q
		out[i].Filter = cloneValue(q.Filter).(domain.Document)
		out[i].Sort = append([]domain.SortField(nil), q.Sort...)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case domain.Document:
		if t == nil {
			return domain.Document(nil)
		}
		out := make(domain.Document, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	}
	return v
}
