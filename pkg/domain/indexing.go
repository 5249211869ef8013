package domain

import (
	"fmt"
	"sort"
	"strings"
)

// IDIndexName is the builtin index every collection carries.
const IDIndexName = "_id_"

// defaultTextLanguage is what stores assume when a text index declares none.
const defaultTextLanguage = "english"

// KeyKind is the direction or kind of one index key.
type KeyKind string

const (
	Ascending   KeyKind = "asc"
	Descending  KeyKind = "desc"
	Text        KeyKind = "text"
	Geo2DSphere KeyKind = "2dsphere"
)

// Value returns the key value as written in a MongoDB key document.
func (k KeyKind) Value() interface{} {
	switch k {
	case Ascending:
		return int32(1)
	case Descending:
		return int32(-1)
	default:
		return string(k)
	}
}

// Valid reports whether k is one of the known kinds.
func (k KeyKind) Valid() bool {
	switch k {
	case Ascending, Descending, Text, Geo2DSphere:
		return true
	}
	return false
}

// ParseKeyKind converts a key document value (1, -1, "text", "asc", ...) into a KeyKind.
func ParseKeyKind(v interface{}) (KeyKind, error) {
	switch t := v.(type) {
	case KeyKind:
		if t.Valid() {
			return t, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "asc", "ascending", "1":
			return Ascending, nil
		case "desc", "descending", "-1":
			return Descending, nil
		case "text":
			return Text, nil
		case "2dsphere":
			return Geo2DSphere, nil
		}
	case int:
		return directionKind(float64(t))
	case int32:
		return directionKind(float64(t))
	case int64:
		return directionKind(float64(t))
	case float64:
		return directionKind(t)
	}
	return "", fmt.Errorf("%w: unsupported index key kind %v", ErrInvalidSpec, v)
}

func directionKind(f float64) (KeyKind, error) {
	switch {
	case f > 0:
		return Ascending, nil
	case f < 0:
		return Descending, nil
	}
	return "", fmt.Errorf("%w: index key direction cannot be 0", ErrInvalidSpec)
}

// IndexKey is one (field, kind) pair of an index key sequence.
type IndexKey struct {
	Field string  `json:"field" yaml:"field"`
	Kind  KeyKind `json:"kind" yaml:"kind"`
}

// IndexOptions holds the tuning parameters the engine recognises.
type IndexOptions struct {
	DefaultLanguage string           `json:"default_language,omitempty" yaml:"default_language,omitempty"`
	Weights         map[string]int32 `json:"weights,omitempty" yaml:"weights,omitempty"`
	Sparse          bool             `json:"sparse,omitempty" yaml:"sparse,omitempty"`
}

// IndexSpec is a declared index.
type IndexSpec struct {
	Name    string       `json:"name" yaml:"name"`
	Keys    []IndexKey   `json:"keys" yaml:"keys"`
	Unique  bool         `json:"unique,omitempty" yaml:"unique,omitempty"`
	Options IndexOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

// LiveIndexState is an index as reported by the store. It is only ever
// compared against declarations and is re-read instead of being mutated.
type LiveIndexState struct {
	Name    string       `json:"name"`
	Keys    []IndexKey   `json:"keys"`
	Unique  bool         `json:"unique,omitempty"`
	Options IndexOptions `json:"options,omitempty"`
}

// Spec returns the live index expressed as an IndexSpec.
func (l LiveIndexState) Spec() IndexSpec {
	return IndexSpec{Name: l.Name, Keys: l.Keys, Unique: l.Unique, Options: l.Options}
}

// CollectionSpec declares a collection and its required indexes.
type CollectionSpec struct {
	Name    string      `json:"name" yaml:"name"`
	Indexes []IndexSpec `json:"indexes" yaml:"indexes"`
}

// Capabilities lists the index kinds a target store can build.
type Capabilities struct {
	TextIndexes bool `json:"text_indexes"`
	GeoIndexes  bool `json:"geo_indexes"`
}

// AllCapabilities is a store that builds every kind.
var AllCapabilities = Capabilities{TextIndexes: true, GeoIndexes: true}

// Supports reports whether kind can be built.
func (c Capabilities) Supports(kind KeyKind) bool {
	switch kind {
	case Text:
		return c.TextIndexes
	case Geo2DSphere:
		return c.GeoIndexes
	}
	return true
}

// HasText reports whether the index contains a text key.
func (s IndexSpec) HasText() bool {
	for _, k := range s.Keys {
		if k.Kind == Text {
			return true
		}
	}
	return false
}

// KeySignature renders the key sequence, e.g. "restauranteId:1,estado:1,fechaCreacion:-1".
// Text keys are sorted so two declarations of the same text index collide.
func (s IndexSpec) KeySignature() string {
	keys := s.canonicalKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%v", k.Field, k.Kind.Value())
	}
	return strings.Join(parts, ",")
}

// Clone returns a deep copy.
func (s IndexSpec) Clone() IndexSpec {
	out := s
	out.Keys = append([]IndexKey(nil), s.Keys...)
	if s.Options.Weights != nil {
		out.Options.Weights = make(map[string]int32, len(s.Options.Weights))
		for k, v := range s.Options.Weights {
			out.Options.Weights[k] = v
		}
	}
	return out
}

// Clone returns a deep copy.
func (c CollectionSpec) Clone() CollectionSpec {
	out := CollectionSpec{Name: c.Name, Indexes: make([]IndexSpec, len(c.Indexes))}
	for i, idx := range c.Indexes {
		out.Indexes[i] = idx.Clone()
	}
	return out
}

// Matches reports whether a live index has the same name and shape as spec.
// Text indexes compare canonically: text fields as a set, a weight of 1
// equals no weight and an empty language equals the store default.
func (l LiveIndexState) Matches(spec IndexSpec) bool {
	return l.Name == spec.Name && SameShape(l.Spec(), spec)
}

// SameShape compares keys, uniqueness and options, ignoring names.
func SameShape(a, b IndexSpec) bool {
	if a.Unique != b.Unique || a.Options.Sparse != b.Options.Sparse {
		return false
	}
	if a.KeySignature() != b.KeySignature() {
		return false
	}
	if !a.HasText() {
		return true
	}
	if a.textLanguage() != b.textLanguage() {
		return false
	}
	wa, wb := a.textWeights(), b.textWeights()
	if len(wa) != len(wb) {
		return false
	}
	for k, v := range wa {
		if wb[k] != v {
			return false
		}
	}
	return true
}

func (s IndexSpec) textLanguage() string {
	if s.Options.DefaultLanguage == "" {
		return defaultTextLanguage
	}
	return strings.ToLower(s.Options.DefaultLanguage)
}

func (s IndexSpec) textWeights() map[string]int32 {
	out := make(map[string]int32)
	for k, v := range s.Options.Weights {
		if v != 1 {
			out[k] = v
		}
	}
	return out
}

// canonicalKeys keeps scalar keys in order and sorts the contiguous text
// fields by name, which is how stores report them back.
func (s IndexSpec) canonicalKeys() []IndexKey {
	keys := append([]IndexKey(nil), s.Keys...)
	start := -1
	for i := 0; i <= len(keys); i++ {
		isText := i < len(keys) && keys[i].Kind == Text
		if isText && start < 0 {
			start = i
		}
		if !isText && start >= 0 {
			run := keys[start:i]
			sort.Slice(run, func(a, b int) bool { return run[a].Field < run[b].Field })
			start = -1
		}
	}
	return keys
}

// String renders the index as name{keys}.
func (s IndexSpec) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString("{")
	b.WriteString(s.KeySignature())
	b.WriteString("}")
	if s.Unique {
		b.WriteString(" unique")
	}
	return b.String()
}
