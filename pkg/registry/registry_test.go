package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	collections := reg.DeclaredCollections()
	names := make([]string, len(collections))
	for i, c := range collections {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"restaurantes", "usuarios", "menu_items", "ordenes", "resenas", "categorias", "promociones"}, names)
	assert.Equal(t, 14, reg.IndexCount())
	assert.Len(t, reg.Queries(), 10)

	ordenes, ok := reg.Collection("ordenes")
	require.True(t, ok)
	assert.Equal(t, "restauranteId:1,estado:1,fechaCreacion:-1", ordenes.Indexes[0].KeySignature())
}

func TestDeclaredCollections_IsDeepCopy(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	first := reg.DeclaredCollections()
	first[2].Indexes[1].Options.Weights["nombre"] = 1
	first[0].Name = "changed"

	again := reg.DeclaredCollections()
	assert.Equal(t, "restaurantes", again[0].Name)
	assert.Equal(t, int32(10), again[2].Indexes[1].Options.Weights["nombre"])

	q := reg.Queries()
	q[0].Filter["nombre"] = "otro"
	assert.Equal(t, "La Trattoria", reg.Queries()[0].Filter["nombre"])
}

func TestNew_SchemaErrors(t *testing.T) {
	key := []domain.IndexKey{{Field: "a", Kind: domain.Ascending}}

	tests := []struct {
		name        string
		collections []domain.CollectionSpec
		queries     []domain.QuerySpec
		caps        *domain.Capabilities
		reason      string
	}{
		{
			name: "duplicate index name",
			collections: []domain.CollectionSpec{{Name: "ordenes", Indexes: []domain.IndexSpec{
				{Name: "x", Keys: key},
				{Name: "x", Keys: []domain.IndexKey{{Field: "b", Kind: domain.Ascending}}},
			}}},
			reason: "duplicate index name",
		},
		{
			name: "same key sequence",
			collections: []domain.CollectionSpec{{Name: "ordenes", Indexes: []domain.IndexSpec{
				{Name: "x", Keys: key},
				{Name: "y", Keys: key},
			}}},
			reason: "same key sequence as index x",
		},
		{
			name:        "unique without keys",
			collections: []domain.CollectionSpec{{Name: "usuarios", Indexes: []domain.IndexSpec{{Name: "email_unique", Unique: true}}}},
			reason:      "unique index has no keys",
		},
		{
			name:        "empty collection name",
			collections: []domain.CollectionSpec{{Name: ""}},
			reason:      "collection name cannot be empty",
		},
		{
			name:        "duplicate collection",
			collections: []domain.CollectionSpec{{Name: "a"}, {Name: "a"}},
			reason:      "duplicate collection name",
		},
		{
			name:        "unknown key kind",
			collections: []domain.CollectionSpec{{Name: "a", Indexes: []domain.IndexSpec{{Name: "h", Keys: []domain.IndexKey{{Field: "a", Kind: "hashed"}}}}}},
			reason:      "unknown key kind",
		},
		{
			name:        "builtin id index",
			collections: []domain.CollectionSpec{{Name: "a", Indexes: []domain.IndexSpec{{Name: "_id_", Keys: key}}}},
			reason:      "builtin",
		},
		{
			name: "two text indexes",
			collections: []domain.CollectionSpec{{Name: "a", Indexes: []domain.IndexSpec{
				{Name: "t1", Keys: []domain.IndexKey{{Field: "a", Kind: domain.Text}}},
				{Name: "t2", Keys: []domain.IndexKey{{Field: "b", Kind: domain.Text}}},
			}}},
			reason: "already declares text index t1",
		},
		{
			name: "weight on non key field",
			collections: []domain.CollectionSpec{{Name: "a", Indexes: []domain.IndexSpec{
				{Name: "t1", Keys: []domain.IndexKey{{Field: "a", Kind: domain.Text}}, Options: domain.IndexOptions{Weights: map[string]int32{"b": 2}}},
			}}},
			reason: "weight declared for b",
		},
		{
			name:        "text under strict api",
			collections: []domain.CollectionSpec{{Name: "a", Indexes: []domain.IndexSpec{{Name: "t1", Keys: []domain.IndexKey{{Field: "a", Kind: domain.Text}}}}}},
			caps:        &domain.Capabilities{GeoIndexes: true},
			reason:      "not supported by the target store",
		},
		{
			name:        "query on undeclared collection",
			collections: []domain.CollectionSpec{{Name: "a"}},
			queries:     []domain.QuerySpec{{Name: "q", Collection: "b"}},
			reason:      "undeclared collection",
		},
		{
			name:        "query hints undeclared index",
			collections: []domain.CollectionSpec{{Name: "a"}},
			queries:     []domain.QuerySpec{{Name: "q", Collection: "a", Hint: "missing"}},
			reason:      "hints undeclared index missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []Option{WithQueries(tt.queries...)}
			if tt.caps != nil {
				opts = append(opts, WithCapabilities(*tt.caps))
			}
			reg, err := New(tt.collections, opts...)
			require.Error(t, err)
			assert.Nil(t, reg)
			assert.True(t, errors.Is(err, domain.ErrSchema))
			assert.Contains(t, err.Error(), tt.reason)

			var schemaErr *domain.SchemaError
			assert.True(t, errors.As(err, &schemaErr))
		})
	}
}

func TestNew_ReportsEveryProblem(t *testing.T) {
	_, err := New([]domain.CollectionSpec{
		{Name: ""},
		{Name: "a", Indexes: []domain.IndexSpec{{Name: "x", Unique: true}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection name cannot be empty")
	assert.Contains(t, err.Error(), "unique index has no keys")
}

func TestDefault_StrictAPIRejectsTextIndexes(t *testing.T) {
	_, err := Default(WithCapabilities(domain.Capabilities{GeoIndexes: true}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSchema))
	assert.Contains(t, err.Error(), "menu_items.menu_text_search")
	assert.Contains(t, err.Error(), "resenas.resenas_text_search")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	content := `
collections:
  - name: ordenes
    indexes:
      - name: ordenes_restaurante_estado
        keys:
          - {field: restauranteId, kind: 1}
          - {field: estado, kind: asc}
          - {field: fechaCreacion, kind: -1}
  - name: menu_items
    indexes:
      - name: menu_text_search
        keys:
          - {field: nombre, kind: text}
          - {field: descripcion, kind: text}
        options:
          default_language: spanish
          weights: {nombre: 10, descripcion: 5}
queries:
  - name: pendientes
    collection: ordenes
    filter: {restauranteId: r1, estado: pendiente}
    sort:
      - {field: fechaCreacion, desc: true}
    hint: ordenes_restaurante_estado
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg, err := LoadFile(path)
	require.NoError(t, err)

	ordenes, ok := reg.Collection("ordenes")
	require.True(t, ok)
	assert.Equal(t, "restauranteId:1,estado:1,fechaCreacion:-1", ordenes.Indexes[0].KeySignature())

	menu, ok := reg.Collection("menu_items")
	require.True(t, ok)
	assert.Equal(t, "spanish", menu.Indexes[0].Options.DefaultLanguage)
	assert.Equal(t, int32(10), menu.Indexes[0].Options.Weights["nombre"])

	q, ok := reg.Query("pendientes")
	require.True(t, ok)
	assert.Equal(t, "pendiente", q.Filter["estado"])
	assert.True(t, q.Sort[0].Desc)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("collections:\n  - name: a\n    indexes:\n      - name: h\n        keys:\n          - {field: a, kind: hashed}\n"), 0o644))
	_, err = LoadFile(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSchema))

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("colections: []\n"), 0o644))
	_, err = LoadFile(unknown)
	assert.True(t, errors.Is(err, domain.ErrSchema))
}

func TestMarshal_LoadsBack(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	data, err := reg.Marshal()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, reg.DeclaredCollections(), again.DeclaredCollections())
	assert.Equal(t, len(reg.Queries()), len(again.Queries()))
}
