package indexing

import (
	"errors"
	"testing"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersCollection() *domain.Collection {
	coll := domain.NewCollection("ordenes")
	coll.Documents["1"] = domain.Document{"_id": "1", "restauranteId": "r1", "estado": "pendiente", "fechaCreacion": 3}
	coll.Documents["2"] = domain.Document{"_id": "2", "restauranteId": "r1", "estado": "pendiente", "fechaCreacion": 5}
	coll.Documents["3"] = domain.Document{"_id": "3", "restauranteId": "r1", "estado": "entregado", "fechaCreacion": 4}
	coll.Documents["4"] = domain.Document{"_id": "4", "restauranteId": "r2", "estado": "pendiente", "fechaCreacion": 1}
	return coll
}

var ordersSpec = domain.IndexSpec{
	Name: "ordenes_restaurante_estado",
	Keys: []domain.IndexKey{
		{Field: "restauranteId", Kind: domain.Ascending},
		{Field: "estado", Kind: domain.Ascending},
		{Field: "fechaCreacion", Kind: domain.Descending},
	},
}

func TestCreateIndex(t *testing.T) {
	engine := NewIndexEngine()
	coll := ordersCollection()

	require.NoError(t, engine.CreateIndex("ordenes", ordersSpec, coll))

	// same name, same shape
	assert.NoError(t, engine.CreateIndex("ordenes", ordersSpec, coll))

	changed := ordersSpec.Clone()
	changed.Unique = true
	err := engine.CreateIndex("ordenes", changed, coll)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIndexConflict))

	renamed := ordersSpec.Clone()
	renamed.Name = "other_name"
	err = engine.CreateIndex("ordenes", renamed, coll)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different name")

	err = engine.CreateIndex("ordenes", domain.IndexSpec{Name: "empty"}, coll)
	assert.True(t, errors.Is(err, domain.ErrInvalidSpec))

	assert.Len(t, engine.GetIndexes("ordenes"), 1)
}

func TestCreateIndex_UniqueViolation(t *testing.T) {
	engine := NewIndexEngine()
	coll := domain.NewCollection("usuarios")
	coll.Documents["1"] = domain.Document{"email": "ana@example.com"}
	coll.Documents["2"] = domain.Document{"email": "ana@example.com"}

	spec := domain.IndexSpec{Name: "email_unique", Unique: true, Keys: []domain.IndexKey{{Field: "email", Kind: domain.Ascending}}}
	err := engine.CreateIndex("usuarios", spec, coll)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIndexConflict))
	assert.Contains(t, err.Error(), "duplicate key")

	_, exists := engine.GetIndex("usuarios", "email_unique")
	assert.False(t, exists)
}

func TestScan_EqualityPrefixAndOrder(t *testing.T) {
	idx := NewIndex(ordersSpec)
	require.NoError(t, idx.BuildIndex(ordersCollection()))

	tests := []struct {
		name     string
		filter   domain.Document
		reverse  bool
		expected []string
	}{
		{name: "full prefix", filter: domain.Document{"restauranteId": "r1", "estado": "pendiente"}, expected: []string{"2", "1"}},
		{name: "full prefix reversed", filter: domain.Document{"restauranteId": "r1", "estado": "pendiente"}, reverse: true, expected: []string{"1", "2"}},
		{name: "leading key only", filter: domain.Document{"restauranteId": "r1"}, expected: []string{"3", "2", "1"}},
		{name: "gap stops prefix", filter: domain.Document{"estado": "pendiente"}, expected: []string{"3", "2", "1", "4"}},
		{name: "operator stops prefix", filter: domain.Document{"restauranteId": map[string]interface{}{"$in": []interface{}{"r1"}}}, expected: []string{"3", "2", "1", "4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix := idx.EqualityPrefix(tt.filter)
			ids, keys := idx.Scan(prefix, tt.reverse)
			assert.Equal(t, tt.expected, ids)
			assert.Equal(t, len(tt.expected), keys)
		})
	}
}

func TestProvidesSort(t *testing.T) {
	idx := NewIndex(ordersSpec)

	ok, reverse := idx.ProvidesSort(2, []domain.SortField{{Field: "fechaCreacion", Desc: true}})
	assert.True(t, ok)
	assert.False(t, reverse)

	ok, reverse = idx.ProvidesSort(2, []domain.SortField{{Field: "fechaCreacion"}})
	assert.True(t, ok)
	assert.True(t, reverse)

	ok, _ = idx.ProvidesSort(1, []domain.SortField{{Field: "fechaCreacion"}})
	assert.False(t, ok)
}

func TestUpdateIndexForDocument(t *testing.T) {
	engine := NewIndexEngine()
	coll := domain.NewCollection("usuarios")
	spec := domain.IndexSpec{Name: "email_unique", Unique: true, Keys: []domain.IndexKey{{Field: "email", Kind: domain.Ascending}}}
	require.NoError(t, engine.CreateIndex("usuarios", spec, coll))

	require.NoError(t, engine.UpdateIndexForDocument("usuarios", "1", nil, domain.Document{"email": "a@x"}))
	err := engine.UpdateIndexForDocument("usuarios", "2", nil, domain.Document{"email": "a@x"})
	assert.True(t, errors.Is(err, domain.ErrIndexConflict))

	// moving the key frees the old value
	require.NoError(t, engine.UpdateIndexForDocument("usuarios", "1", domain.Document{"email": "a@x"}, domain.Document{"email": "b@x"}))
	require.NoError(t, engine.UpdateIndexForDocument("usuarios", "2", nil, domain.Document{"email": "a@x"}))

	idx, _ := engine.GetIndex("usuarios", "email_unique")
	assert.Equal(t, 2, idx.Len())
}

func TestSearchText(t *testing.T) {
	spec := domain.IndexSpec{
		Name: "menu_text_search",
		Keys: []domain.IndexKey{{Field: "nombre", Kind: domain.Text}, {Field: "descripcion", Kind: domain.Text}},
	}
	coll := domain.NewCollection("menu_items")
	coll.Documents["1"] = domain.Document{"nombre": "Pizza Margarita", "descripcion": "Tomate y albahaca"}
	coll.Documents["2"] = domain.Document{"nombre": "Ensalada", "descripcion": "Tomate fresco"}
	coll.Documents["3"] = domain.Document{"nombre": "Tacos", "descripcion": "Carne asada"}

	idx := NewIndex(spec)
	require.NoError(t, idx.BuildIndex(coll))

	ids, examined := idx.SearchText("TOMATE")
	assert.Equal(t, []string{"1", "2"}, ids)
	assert.Equal(t, 2, examined)

	require.NoError(t, idx.UpdateIndex("1", coll.Documents["1"], nil))
	ids, _ = idx.SearchText("tomate")
	assert.Equal(t, []string{"2"}, ids)
}

func TestDropIndex(t *testing.T) {
	engine := NewIndexEngine()
	require.NoError(t, engine.CreateIndex("ordenes", ordersSpec, ordersCollection()))

	err := engine.DropIndex("ordenes", "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, engine.DropIndex("ordenes", ordersSpec.Name))
	assert.Empty(t, engine.GetIndexes("ordenes"))
	assert.Empty(t, engine.ExportIndexes()["ordenes"])
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, 0, CompareValues(int32(3), float64(3)))
	assert.Equal(t, -1, CompareValues(nil, 0))
	assert.Equal(t, -1, CompareValues(10, "a"))
	assert.Equal(t, 1, CompareValues("b", "a"))
	assert.Equal(t, -1, CompareValues("Pizza", "pizza"))
	assert.True(t, ValuesEqual(domain.Document{"a": 1}, map[string]interface{}{"a": 1}))
}
