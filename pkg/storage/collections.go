package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/adfharrison1/restodb/pkg/domain"
)

var idIndexSpec = domain.IndexSpec{
	Name: domain.IDIndexName,
	Keys: []domain.IndexKey{{Field: "_id", Kind: domain.Ascending}},
}

// ListCollections returns collection names sorted alphabetically
func (se *StorageEngine) ListCollections(ctx context.Context) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	se.mu.RLock()
	defer se.mu.RUnlock()

	names := make([]string, 0, len(se.collections))
	for name := range se.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CreateCollection creates a new collection with its _id_ index
func (se *StorageEngine) CreateCollection(ctx context.Context, collName string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	se.mu.Lock()
	defer se.mu.Unlock()

	if collName == "" {
		return fmt.Errorf("%w: collection name cannot be empty", domain.ErrInvalidSpec)
	}
	if _, exists := se.collections[collName]; exists {
		return fmt.Errorf("%w: collection %s already exists", domain.ErrAlreadyExists, collName)
	}
	se.createCollectionInternal(collName)
	return nil
}

// createCollectionInternal creates a collection without locking
func (se *StorageEngine) createCollectionInternal(collName string) *domain.Collection {
	collection := domain.NewCollection(collName)
	se.collections[collName] = collection
	// cannot fail on an empty collection
	_ = se.indexEngine.CreateIndex(collName, idIndexSpec, collection)
	se.markDirty()
	return collection
}

// getOrCreateCollection mirrors the implicit collection creation of inserts
// and index builds.
func (se *StorageEngine) getOrCreateCollection(collName string) *domain.Collection {
	if collection, exists := se.collections[collName]; exists {
		return collection
	}
	return se.createCollectionInternal(collName)
}
