package registry

import (
	"errors"
	"fmt"

	"github.com/adfharrison1/restodb/pkg/domain"
)

func validate(collections []domain.CollectionSpec, queries []domain.QuerySpec, caps domain.Capabilities) error {
	var errs []error
	fail := func(coll, index, format string, args ...interface{}) {
		errs = append(errs, &domain.SchemaError{Collection: coll, Index: index, Reason: fmt.Sprintf(format, args...)})
	}

	seenCollections := make(map[string]bool, len(collections))
	for _, c := range collections {
		if c.Name == "" {
			fail("", "", "collection name cannot be empty")
			continue
		}
		if seenCollections[c.Name] {
			fail(c.Name, "", "duplicate collection name")
			continue
		}
		seenCollections[c.Name] = true

		names := make(map[string]bool, len(c.Indexes))
		signatures := make(map[string]string, len(c.Indexes))
		textIndex := ""
		for _, idx := range c.Indexes {
			switch {
			case idx.Name == "":
				fail(c.Name, "", "index name cannot be empty")
				continue
			case idx.Name == domain.IDIndexName:
				fail(c.Name, idx.Name, "the _id_ index is builtin and cannot be declared")
				continue
			case names[idx.Name]:
				fail(c.Name, idx.Name, "duplicate index name")
				continue
			}
			names[idx.Name] = true

			if len(idx.Keys) == 0 {
				if idx.Unique {
					fail(c.Name, idx.Name, "unique index has no keys")
				} else {
					fail(c.Name, idx.Name, "index has no keys")
				}
				continue
			}
			if !validKeys(c.Name, idx, fail) {
				continue
			}
			for _, k := range idx.Keys {
				if !caps.Supports(k.Kind) {
					fail(c.Name, idx.Name, "%s keys are not supported by the target store (strict API mode)", k.Kind)
				}
			}

			sig := idx.KeySignature()
			if other, dup := signatures[sig]; dup {
				fail(c.Name, idx.Name, "same key sequence as index %s", other)
			} else {
				signatures[sig] = idx.Name
			}
			if idx.HasText() {
				if textIndex != "" {
					fail(c.Name, idx.Name, "collection already declares text index %s", textIndex)
				} else {
					textIndex = idx.Name
				}
			}
		}
	}

	errs = append(errs, validateQueries(collections, queries)...)
	return errors.Join(errs...)
}

func validKeys(coll string, idx domain.IndexSpec, fail func(string, string, string, ...interface{})) bool {
	ok := true
	fields := make(map[string]bool, len(idx.Keys))
	for _, k := range idx.Keys {
		if k.Field == "" {
			fail(coll, idx.Name, "key field cannot be empty")
			ok = false
			continue
		}
		if !k.Kind.Valid() {
			fail(coll, idx.Name, "unknown key kind %q for field %s", k.Kind, k.Field)
			ok = false
		}
		if fields[k.Field] {
			fail(coll, idx.Name, "field %s appears twice in the key", k.Field)
			ok = false
		}
		fields[k.Field] = true
	}
	for w := range idx.Options.Weights {
		if !fields[w] {
			fail(coll, idx.Name, "weight declared for %s which is not a key field", w)
			ok = false
		}
	}
	return ok
}

func validateQueries(collections []domain.CollectionSpec, queries []domain.QuerySpec) []error {
	var errs []error
	declared := make(map[string]map[string]bool, len(collections))
	for _, c := range collections {
		names := map[string]bool{domain.IDIndexName: true}
		for _, idx := range c.Indexes {
			names[idx.Name] = true
		}
		declared[c.Name] = names
	}

	seen := make(map[string]bool, len(queries))
	for _, q := range queries {
		reason := ""
		indexes, ok := declared[q.Collection]
		switch {
		case q.Name == "":
			reason = "query name cannot be empty"
		case seen[q.Name]:
			reason = fmt.Sprintf("duplicate query name %s", q.Name)
		case !ok:
			reason = fmt.Sprintf("query %s references undeclared collection", q.Name)
		case q.Hint != "" && !indexes[q.Hint]:
			reason = fmt.Sprintf("query %s hints undeclared index %s", q.Name, q.Hint)
		case q.Limit < 0:
			reason = fmt.Sprintf("query %s has a negative limit", q.Name)
		}
		seen[q.Name] = true
		if reason != "" {
			errs = append(errs, &domain.SchemaError{Collection: q.Collection, Reason: reason})
		}
	}
	return errs
}
