package mongostore

import (
	"fmt"
	"sort"

	"github.com/adfharrison1/restodb/pkg/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Keys a server stores in place of the fields of a text index.
const (
	ftsKey  = "_fts"
	ftsxKey = "_ftsx"
)

// indexModel builds the createIndexes request for spec.
func indexModel(spec domain.IndexSpec) mongo.IndexModel {
	keys := make(bson.D, 0, len(spec.Keys))
	for _, k := range spec.Keys {
		keys = append(keys, bson.E{Key: k.Field, Value: k.Kind.Value()})
	}

	opts := options.Index().SetName(spec.Name)
	if spec.Unique {
		opts.SetUnique(true)
	}
	if spec.Options.Sparse {
		opts.SetSparse(true)
	}
	if spec.Options.DefaultLanguage != "" {
		opts.SetDefaultLanguage(spec.Options.DefaultLanguage)
	}
	if len(spec.Options.Weights) > 0 {
		opts.SetWeights(weightsDoc(spec.Options.Weights))
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

func weightsDoc(weights map[string]int32) bson.D {
	fields := make([]string, 0, len(weights))
	for f := range weights {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	out := make(bson.D, 0, len(fields))
	for _, f := range fields {
		out = append(out, bson.E{Key: f, Value: weights[f]})
	}
	return out
}

// liveIndex converts one listIndexes entry. Text indexes come back keyed by
// _fts/_ftsx; their fields are recovered from the weights document.
func liveIndex(raw bson.D) (domain.LiveIndexState, error) {
	doc := plain(raw).(map[string]interface{})
	out := domain.LiveIndexState{}
	out.Name, _ = doc["name"].(string)
	out.Unique, _ = doc["unique"].(bool)
	out.Options.Sparse, _ = doc["sparse"].(bool)

	if w, ok := doc["weights"].(map[string]interface{}); ok {
		out.Options.Weights = make(map[string]int32, len(w))
		for field, v := range w {
			n, err := toInt32(v)
			if err != nil {
				return out, fmt.Errorf("index %s: weight %s: %w", out.Name, field, err)
			}
			out.Options.Weights[field] = n
		}
	}
	if lang, ok := doc["default_language"].(string); ok {
		out.Options.DefaultLanguage = lang
	}

	var keyDoc bson.D
	for _, e := range raw {
		if e.Key == "key" {
			keyDoc, _ = e.Value.(bson.D)
		}
	}
	if keyDoc == nil {
		return out, fmt.Errorf("index %s: missing key document", out.Name)
	}
	for _, e := range keyDoc {
		switch e.Key {
		case ftsxKey:
			continue
		case ftsKey:
			fields := make([]string, 0, len(out.Options.Weights))
			for f := range out.Options.Weights {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			for _, f := range fields {
				out.Keys = append(out.Keys, domain.IndexKey{Field: f, Kind: domain.Text})
			}
			continue
		}
		kind, err := domain.ParseKeyKind(e.Value)
		if err != nil {
			return out, fmt.Errorf("index %s: key %s: %w", out.Name, e.Key, err)
		}
		out.Keys = append(out.Keys, domain.IndexKey{Field: e.Key, Kind: kind})
	}
	return out, nil
}

func toInt32(v interface{}) (int32, error) {
	switch n := v.(type) {
	case int32:
		return n, nil
	case int64:
		return int32(n), nil
	case int:
		return int32(n), nil
	case float64:
		return int32(n), nil
	}
	return 0, fmt.Errorf("unexpected %T", v)
}

func sortDoc(fields []domain.SortField) bson.D {
	out := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := int32(1)
		if f.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: f.Field, Value: dir})
	}
	return out
}

func filterDoc(filter domain.Document) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}

// findCommand is the find command an explain wraps.
func findCommand(collection string, q domain.QuerySpec) bson.D {
	cmd := bson.D{{Key: "find", Value: collection}, {Key: "filter", Value: filterDoc(q.Filter)}}
	if len(q.Sort) > 0 {
		cmd = append(cmd, bson.E{Key: "sort", Value: sortDoc(q.Sort)})
	}
	if q.Hint != "" {
		cmd = append(cmd, bson.E{Key: "hint", Value: q.Hint})
	}
	if q.Limit > 0 {
		cmd = append(cmd, bson.E{Key: "limit", Value: q.Limit})
	}
	return cmd
}

// plain turns decoded BSON into maps, slices and scalars.
func plain(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case bson.ObjectID:
		return t.Hex()
	}
	return v
}

func toDocument(raw bson.D) domain.Document {
	return domain.Document(plain(raw).(map[string]interface{}))
}
