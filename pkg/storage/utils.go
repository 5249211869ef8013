package storage

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/adfharrison1/restodb/pkg/indexing"
)

// textOperator is the filter key of a full-text search.
const textOperator = "$text"

// MatchesFilter checks if a document matches the given filter criteria.
// Top-level $text is resolved by the planner and ignored here.
func MatchesFilter(doc domain.Document, filter map[string]interface{}) bool {
	for field, expected := range filter {
		if field == textOperator {
			continue
		}
		actual, exists := indexing.LookupField(doc, field)
		if indexing.IsOperatorDoc(expected) {
			ok, err := matchOperators(actual, exists, toMap(expected))
			if err != nil || !ok {
				return false
			}
			continue
		}
		if !exists || !ValuesMatch(actual, expected) {
			return false
		}
	}
	return true // All filter criteria match
}

// ValidateFilter reports unsupported operators before a query runs.
func ValidateFilter(filter map[string]interface{}) error {
	for field, expected := range filter {
		if field == textOperator {
			if _, err := textSearch(filter); err != nil {
				return err
			}
			continue
		}
		if !indexing.IsOperatorDoc(expected) {
			continue
		}
		for op := range toMap(expected) {
			switch op {
			case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte", "$in", "$nin", "$exists":
			default:
				return fmt.Errorf("%w: unknown operator %s on field %s", domain.ErrInvalidSpec, op, field)
			}
		}
	}
	return nil
}

// textSearch extracts {$text: {$search: "..."}} from a filter.
func textSearch(filter map[string]interface{}) (string, error) {
	raw, ok := filter[textOperator]
	if !ok {
		return "", nil
	}
	search, ok := toMap(raw)["$search"].(string)
	if !ok {
		return "", fmt.Errorf("%w: $text requires a $search string", domain.ErrInvalidSpec)
	}
	return search, nil
}

func matchOperators(actual interface{}, exists bool, ops map[string]interface{}) (bool, error) {
	for op, operand := range ops {
		var ok bool
		switch op {
		case "$eq":
			ok = exists && ValuesMatch(actual, operand)
		case "$ne":
			ok = !exists || !ValuesMatch(actual, operand)
		case "$gt":
			ok = exists && sameClass(actual, operand) && indexing.CompareValues(actual, operand) > 0
		case "$gte":
			ok = exists && sameClass(actual, operand) && indexing.CompareValues(actual, operand) >= 0
		case "$lt":
			ok = exists && sameClass(actual, operand) && indexing.CompareValues(actual, operand) < 0
		case "$lte":
			ok = exists && sameClass(actual, operand) && indexing.CompareValues(actual, operand) <= 0
		case "$in":
			ok = exists && inList(actual, operand)
		case "$nin":
			ok = !exists || !inList(actual, operand)
		case "$exists":
			want, _ := operand.(bool)
			ok = exists == want
		default:
			return false, fmt.Errorf("%w: unknown operator %s", domain.ErrInvalidSpec, op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// sameClass restricts range operators to values of the same type class.
func sameClass(a, b interface{}) bool {
	_, an := indexing.ToFloat64(a)
	_, bn := indexing.ToFloat64(b)
	if an || bn {
		return an && bn
	}
	return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b)
}

func inList(actual, operand interface{}) bool {
	list, ok := operand.([]interface{})
	if !ok {
		return false
	}
	for _, candidate := range list {
		if ValuesMatch(actual, candidate) {
			return true
		}
	}
	return false
}

// ValuesMatch compares two values for equality. An array matches a scalar
// when any element equals it.
func ValuesMatch(actual, expected interface{}) bool {
	if arr, ok := actual.([]interface{}); ok {
		if _, expectedIsArray := expected.([]interface{}); !expectedIsArray {
			for _, elem := range arr {
				if indexing.ValuesEqual(elem, expected) {
					return true
				}
			}
			return false
		}
	}
	return indexing.ValuesEqual(actual, expected)
}

func toMap(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return t
	case domain.Document:
		return t
	}
	return nil
}

// sortIDs orders document ids numerically when both parse as integers.
func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.ParseInt(ids[i], 10, 64)
		b, errB := strconv.ParseInt(ids[j], 10, 64)
		if errA == nil && errB == nil {
			return a < b
		}
		if (errA == nil) != (errB == nil) {
			return errA == nil
		}
		return ids[i] < ids[j]
	})
}
