package domain

import "context"

// Gateway is the document store boundary. Implementations are stateless
// with respect to domain entities: every call goes to the store.
type Gateway interface {
	ListCollections(ctx context.Context) ([]string, error)
	// CreateCollection fails with ErrAlreadyExists when the collection exists.
	CreateCollection(ctx context.Context, name string) error
	ListIndexes(ctx context.Context, collection string) ([]LiveIndexState, error)
	// CreateIndex fails with ErrIndexConflict or ErrInvalidSpec.
	CreateIndex(ctx context.Context, collection string, spec IndexSpec) error
	// DropIndex fails with ErrNotFound when the index is absent.
	DropIndex(ctx context.Context, collection, name string) error
	Find(ctx context.Context, q QuerySpec) ([]Document, error)
	// Explain returns an executionStats explain payload for q.
	Explain(ctx context.Context, q QuerySpec) (Document, error)
	Close(ctx context.Context) error
}
