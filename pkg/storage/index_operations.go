package storage

import (
	"context"
	"fmt"

	"github.com/adfharrison1/restodb/pkg/domain"
)

// CreateIndex builds a named index, creating the collection when missing
func (se *StorageEngine) CreateIndex(ctx context.Context, collName string, spec domain.IndexSpec) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if spec.Name == domain.IDIndexName {
		return fmt.Errorf("%w: the _id_ index is builtin", domain.ErrInvalidSpec)
	}
	se.mu.Lock()
	defer se.mu.Unlock()

	collection := se.getOrCreateCollection(collName)
	if err := se.indexEngine.CreateIndex(collName, spec, collection); err != nil {
		return &domain.OpError{Op: "createIndex", Collection: collName, Index: spec.Name, Err: err}
	}
	se.markDirty()
	return nil
}

// DropIndex removes a named index from a collection
func (se *StorageEngine) DropIndex(ctx context.Context, collName, name string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	se.mu.Lock()
	defer se.mu.Unlock()

	if _, exists := se.collections[collName]; !exists {
		return &domain.OpError{Op: "dropIndex", Collection: collName, Index: name,
			Err: fmt.Errorf("%w: ns does not exist", domain.ErrNotFound)}
	}
	if err := se.indexEngine.DropIndex(collName, name); err != nil {
		return &domain.OpError{Op: "dropIndex", Collection: collName, Index: name, Err: err}
	}
	se.markDirty()
	return nil
}

// ListIndexes returns the live indexes of a collection in creation order
func (se *StorageEngine) ListIndexes(ctx context.Context, collName string) ([]domain.LiveIndexState, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	se.mu.RLock()
	defer se.mu.RUnlock()

	if _, exists := se.collections[collName]; !exists {
		return nil, fmt.Errorf("%w: collection %s does not exist", domain.ErrNotFound, collName)
	}
	indexes := se.indexEngine.GetIndexes(collName)
	out := make([]domain.LiveIndexState, 0, len(indexes))
	for _, index := range indexes {
		spec := index.Spec.Clone()
		out = append(out, domain.LiveIndexState{
			Name:    spec.Name,
			Keys:    spec.Keys,
			Unique:  spec.Unique,
			Options: spec.Options,
		})
	}
	return out, nil
}
