package registry

import (
	"bytes"
	"fmt"
	"os"

	"github.com/adfharrison1/restodb/pkg/domain"
	"gopkg.in/yaml.v3"
)

// schemaFile is the YAML layout of a declaration. Key kinds accept the
// MongoDB spellings (1, -1, "text", "2dsphere") as well as "asc"/"desc".
type schemaFile struct {
	Collections []fileCollection   `yaml:"collections"`
	Queries     []domain.QuerySpec `yaml:"queries,omitempty"`
}

type fileCollection struct {
	Name    string      `yaml:"name"`
	Indexes []fileIndex `yaml:"indexes,omitempty"`
}

type fileIndex struct {
	Name    string              `yaml:"name"`
	Keys    []fileKey           `yaml:"keys"`
	Unique  bool                `yaml:"unique,omitempty"`
	Options domain.IndexOptions `yaml:"options,omitempty"`
}

type fileKey struct {
	Field string      `yaml:"field"`
	Kind  interface{} `yaml:"kind"`
}

// LoadFile reads and validates a YAML declaration.
func LoadFile(path string, opts ...Option) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data, opts...)
}

// Parse decodes a YAML declaration. Options given here override the
// queries found in the document.
func Parse(data []byte, opts ...Option) (*Registry, error) {
	var file schemaFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, &domain.SchemaError{Reason: fmt.Sprintf("invalid schema file: %v", err)}
	}

	collections := make([]domain.CollectionSpec, 0, len(file.Collections))
	for _, fc := range file.Collections {
		cs := domain.CollectionSpec{Name: fc.Name}
		for _, fi := range fc.Indexes {
			spec := domain.IndexSpec{Name: fi.Name, Unique: fi.Unique, Options: fi.Options}
			for _, fk := range fi.Keys {
				kind, err := domain.ParseKeyKind(fk.Kind)
				if err != nil {
					return nil, &domain.SchemaError{Collection: fc.Name, Index: fi.Name, Reason: err.Error()}
				}
				spec.Keys = append(spec.Keys, domain.IndexKey{Field: fk.Field, Kind: kind})
			}
			cs.Indexes = append(cs.Indexes, spec)
		}
		collections = append(collections, cs)
	}

	opts = append([]Option{WithQueries(file.Queries...)}, opts...)
	return New(collections, opts...)
}

// Marshal renders the registry in the file layout LoadFile reads.
func (r *Registry) Marshal() ([]byte, error) {
	file := schemaFile{Queries: r.Queries()}
	for _, c := range r.collections {
		fc := fileCollection{Name: c.Name}
		for _, idx := range c.Indexes {
			fi := fileIndex{Name: idx.Name, Unique: idx.Unique, Options: idx.Options}
			for _, k := range idx.Keys {
				fi.Keys = append(fi.Keys, fileKey{Field: k.Field, Kind: k.Kind.Value()})
			}
			fc.Indexes = append(fc.Indexes, fi)
		}
		file.Collections = append(file.Collections, fc)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return buf.Bytes(), nil
}
