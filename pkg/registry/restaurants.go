package registry

import "github.com/adfharrison1/restodb/pkg/domain"

func asc(field string) domain.IndexKey {
	return domain.IndexKey{Field: field, Kind: domain.Ascending}
}

func desc(field string) domain.IndexKey {
	return domain.IndexKey{Field: field, Kind: domain.Descending}
}

func text(field string) domain.IndexKey {
	return domain.IndexKey{Field: field, Kind: domain.Text}
}

// DefaultCollections is the restaurant platform schema: seven collections
// and fourteen named indexes.
func DefaultCollections() []domain.CollectionSpec {
	return []domain.CollectionSpec{
		{
			Name: "restaurantes",
			Indexes: []domain.IndexSpec{
				{Name: "geo_index", Keys: []domain.IndexKey{{Field: "ubicacion", Kind: domain.Geo2DSphere}}},
				{Name: "nombre_index", Keys: []domain.IndexKey{asc("nombre")}},
			},
		},
		{
			Name: "usuarios",
			Indexes: []domain.IndexSpec{
				{Name: "email_unique", Keys: []domain.IndexKey{asc("email")}, Unique: true},
				{Name: "tipo_index", Keys: []domain.IndexKey{asc("tipo")}},
			},
		},
		{
			Name: "menu_items",
			Indexes: []domain.IndexSpec{
				{Name: "restaurante_categoria_precio", Keys: []domain.IndexKey{asc("restauranteId"), asc("categoria"), asc("precio")}},
				{
					Name: "menu_text_search",
					Keys: []domain.IndexKey{text("nombre"), text("descripcion")},
					Options: domain.IndexOptions{
						DefaultLanguage: "spanish",
						Weights:         map[string]int32{"nombre": 10, "descripcion": 5},
					},
				},
			},
		},
		{
			Name: "ordenes",
			Indexes: []domain.IndexSpec{
				{Name: "ordenes_restaurante_estado", Keys: []domain.IndexKey{asc("restauranteId"), asc("estado"), desc("fechaCreacion")}},
				{Name: "ordenes_usuario", Keys: []domain.IndexKey{asc("usuarioId"), desc("fechaCreacion")}},
				{Name: "ordenes_repartidor", Keys: []domain.IndexKey{asc("repartidorId"), asc("estado")}},
			},
		},
		{
			Name: "resenas",
			Indexes: []domain.IndexSpec{
				{Name: "resenas_restaurante", Keys: []domain.IndexKey{asc("restauranteId"), desc("calificacion")}},
				{
					Name:    "resenas_text_search",
					Keys:    []domain.IndexKey{text("comentario")},
					Options: domain.IndexOptions{DefaultLanguage: "spanish"},
				},
				{Name: "unique_usuario_restaurante", Keys: []domain.IndexKey{asc("usuarioId"), asc("restauranteId")}, Unique: true},
			},
		},
		{
			Name: "categorias",
		},
		{
			Name: "promociones",
			Indexes: []domain.IndexSpec{
				{Name: "codigo_unique", Keys: []domain.IndexKey{asc("codigo")}, Unique: true},
				{Name: "promociones_restaurante_vigencia", Keys: []domain.IndexKey{asc("restauranteId"), asc("vigencia")}},
			},
		},
	}
}

// DefaultQueries is one representative access pattern per entity.
func DefaultQueries() []domain.QuerySpec {
	return []domain.QuerySpec{
		{
			Name:       "restaurantes_por_nombre",
			Collection: "restaurantes",
			Filter:     domain.Document{"nombre": "La Trattoria"},
			Hint:       "nombre_index",
		},
		{
			Name:       "usuario_por_email",
			Collection: "usuarios",
			Filter:     domain.Document{"email": "juan.perez@email.com"},
			Hint:       "email_unique",
		},
		{
			Name:       "menu_por_categoria",
			Collection: "menu_items",
			Filter:     domain.Document{"restauranteId": "r1", "categoria": "Pizzas"},
			Sort:       []domain.SortField{{Field: "precio"}},
			Hint:       "restaurante_categoria_precio",
		},
		{
			Name:       "menu_busqueda_texto",
			Collection: "menu_items",
			Filter:     domain.Document{"$text": map[string]interface{}{"$search": "pizza"}},
			Hint:       "menu_text_search",
		},
		{
			Name:       "ordenes_pendientes_restaurante",
			Collection: "ordenes",
			Filter:     domain.Document{"restauranteId": "r1", "estado": "pendiente"},
			Sort:       []domain.SortField{{Field: "fechaCreacion", Desc: true}},
			Hint:       "ordenes_restaurante_estado",
		},
		{
			Name:       "ordenes_recientes_usuario",
			Collection: "ordenes",
			Filter:     domain.Document{"usuarioId": "u1"},
			Sort:       []domain.SortField{{Field: "fechaCreacion", Desc: true}},
			Hint:       "ordenes_usuario",
			Limit:      10,
		},
		{
			Name:       "ordenes_repartidor_en_camino",
			Collection: "ordenes",
			Filter:     domain.Document{"repartidorId": "d1", "estado": "en_camino"},
			Hint:       "ordenes_repartidor",
		},
		{
			Name:       "resenas_mejor_calificadas",
			Collection: "resenas",
			Filter:     domain.Document{"restauranteId": "r1"},
			Sort:       []domain.SortField{{Field: "calificacion", Desc: true}},
			Hint:       "resenas_restaurante",
			Limit:      20,
		},
		{
			Name:       "categoria_por_nombre",
			Collection: "categorias",
			Filter:     domain.Document{"nombre": "Italiana"},
		},
		{
			Name:       "promocion_por_codigo",
			Collection: "promociones",
			Filter:     domain.Document{"codigo": "BIENVENIDA10"},
			Hint:       "codigo_unique",
		},
	}
}

// Default returns the restaurant platform registry.
func Default(opts ...Option) (*Registry, error) {
	opts = append([]Option{WithQueries(DefaultQueries()...)}, opts...)
	return New(DefaultCollections(), opts...)
}
