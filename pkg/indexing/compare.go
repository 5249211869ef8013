package indexing

import (
	"reflect"
	"strings"
	"time"

	"github.com/adfharrison1/restodb/pkg/domain"
)

// type ranks used when comparing values of different types, loosely
// following the BSON comparison order.
const (
	rankNull = iota
	rankNumber
	rankString
	rankObject
	rankArray
	rankBool
	rankTime
	rankOther
)

func typeRank(v interface{}) int {
	if v == nil {
		return rankNull
	}
	if _, ok := ToFloat64(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case string:
		return rankString
	case map[string]interface{}, domain.Document:
		return rankObject
	case []interface{}:
		return rankArray
	case bool:
		return rankBool
	case time.Time:
		return rankTime
	}
	return rankOther
}

// CompareValues orders two values: -1, 0 or 1.
func CompareValues(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankNull:
		return 0
	case rankNumber:
		fa, _ := ToFloat64(a)
		fb, _ := ToFloat64(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case rankTime:
		ta, tb := a.(time.Time), b.(time.Time)
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		}
		return 0
	case rankArray:
		xa, xb := a.([]interface{}), b.([]interface{})
		for i := 0; i < len(xa) && i < len(xb); i++ {
			if c := CompareValues(xa[i], xb[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(xa) < len(xb):
			return -1
		case len(xa) > len(xb):
			return 1
		}
		return 0
	}
	if reflect.DeepEqual(a, b) {
		return 0
	}
	return strings.Compare(reflect.TypeOf(a).String(), reflect.TypeOf(b).String())
}

// ValuesEqual compares two values for equality, treating numeric types alike.
func ValuesEqual(a, b interface{}) bool {
	if typeRank(a) == rankOther || typeRank(b) == rankOther {
		return reflect.DeepEqual(a, b)
	}
	if typeRank(a) == rankObject {
		return reflect.DeepEqual(normalizeObject(a), normalizeObject(b))
	}
	return CompareValues(a, b) == 0
}

func normalizeObject(v interface{}) interface{} {
	if d, ok := v.(domain.Document); ok {
		return map[string]interface{}(d)
	}
	return v
}

// ToFloat64 converts various numeric types to float64 for comparison
func ToFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// LookupField resolves a dotted path ("ubicacion.type") inside a document.
func LookupField(doc domain.Document, path string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(doc)
	for _, part := range strings.Split(path, ".") {
		var m map[string]interface{}
		switch t := current.(type) {
		case map[string]interface{}:
			m = t
		case domain.Document:
			m = t
		default:
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}

// IsOperatorDoc reports whether a filter value is an operator document such
// as {"$gt": 5} rather than a literal to compare with.
func IsOperatorDoc(v interface{}) bool {
	var m map[string]interface{}
	switch t := v.(type) {
	case map[string]interface{}:
		m = t
	case domain.Document:
		m = t
	default:
		return false
	}
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}
