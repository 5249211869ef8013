package converge

import (
	"testing"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	menuText := domain.IndexSpec{
		Name: "menu_text_search",
		Keys: []domain.IndexKey{{Field: "nombre", Kind: domain.Text}, {Field: "descripcion", Kind: domain.Text}},
		Options: domain.IndexOptions{
			DefaultLanguage: "spanish",
			Weights:         map[string]int32{"nombre": 10, "descripcion": 5},
		},
	}
	byCategory := domain.IndexSpec{
		Name: "restaurante_categoria_precio",
		Keys: []domain.IndexKey{
			{Field: "restauranteId", Kind: domain.Ascending},
			{Field: "categoria", Kind: domain.Ascending},
			{Field: "precio", Kind: domain.Ascending},
		},
	}
	declared := []domain.CollectionSpec{{Name: "menu_items", Indexes: []domain.IndexSpec{byCategory, menuText}}}
	idIndex := domain.LiveIndexState{Name: domain.IDIndexName, Keys: []domain.IndexKey{{Field: "_id", Kind: domain.Ascending}}}

	// how a server reports the text index back
	liveText := domain.LiveIndexState{
		Name: "menu_text_search",
		Keys: []domain.IndexKey{{Field: "descripcion", Kind: domain.Text}, {Field: "nombre", Kind: domain.Text}},
		Options: domain.IndexOptions{
			DefaultLanguage: "spanish",
			Weights:         map[string]int32{"descripcion": 5, "nombre": 10},
		},
	}

	tests := []struct {
		name      string
		existing  []string
		live      []domain.LiveIndexState
		prune     bool
		expected  []string
		unmanaged int
	}{
		{
			name:     "empty store",
			expected: []string{"create-collection menu_items", "create-index menu_items.restaurante_categoria_precio", "create-index menu_items.menu_text_search"},
		},
		{
			name:     "converged with canonical text index",
			existing: []string{"menu_items"},
			live:     []domain.LiveIndexState{idIndex, {Name: byCategory.Name, Keys: byCategory.Keys}, liveText},
			expected: []string{},
		},
		{
			name:     "changed unique flag",
			existing: []string{"menu_items"},
			live:     []domain.LiveIndexState{idIndex, {Name: byCategory.Name, Keys: byCategory.Keys, Unique: true}, liveText},
			expected: []string{"drop-index menu_items.restaurante_categoria_precio", "create-index menu_items.restaurante_categoria_precio"},
		},
		{
			name:      "undeclared kept by default",
			existing:  []string{"menu_items"},
			live:      []domain.LiveIndexState{idIndex, {Name: "old", Keys: []domain.IndexKey{{Field: "x", Kind: domain.Ascending}}}, liveText},
			expected:  []string{"create-index menu_items.restaurante_categoria_precio"},
			unmanaged: 1,
		},
		{
			name:      "undeclared pruned before creates",
			existing:  []string{"menu_items"},
			live:      []domain.LiveIndexState{idIndex, {Name: "old", Keys: byCategory.Keys}, liveText},
			prune:     true,
			expected:  []string{"drop-index menu_items.old", "create-index menu_items.restaurante_categoria_precio"},
			unmanaged: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live := map[string][]domain.LiveIndexState{"menu_items": tt.live}
			plan := Diff(declared, tt.existing, live, tt.prune)

			got := make([]string, 0, len(plan.Actions))
			for _, a := range plan.Actions {
				if a.Kind == domain.ActionCreateCollection {
					got = append(got, string(a.Kind)+" "+a.Collection)
					continue
				}
				got = append(got, string(a.Kind)+" "+a.Collection+"."+a.IndexName)
			}
			assert.Equal(t, tt.expected, got)
			assert.Len(t, plan.Unmanaged, tt.unmanaged)
		})
	}
}

func TestDiff_DoesNotAliasDeclaration(t *testing.T) {
	declared := []domain.CollectionSpec{{
		Name:    "usuarios",
		Indexes: []domain.IndexSpec{{Name: "email_unique", Unique: true, Keys: []domain.IndexKey{{Field: "email", Kind: domain.Ascending}}}},
	}}
	plan := Diff(declared, nil, nil, false)
	require.Len(t, plan.Actions, 2)

	plan.Actions[1].Index.Keys[0].Field = "changed"
	assert.Equal(t, "email", declared[0].Indexes[0].Keys[0].Field)
}
