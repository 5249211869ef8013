package storage

import (
	"fmt"
	"strconv"

	"github.com/adfharrison1/restodb/pkg/domain"
)

// Insert inserts a document into a collection, creating the collection when
// missing, and returns the document id. Documents without an _id get the
// next value of the collection's counter.
func (se *StorageEngine) Insert(collName string, doc domain.Document) (string, error) {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.insertInternal(collName, doc)
}

// InsertMany inserts documents in order and stops at the first failure.
func (se *StorageEngine) InsertMany(collName string, docs []domain.Document) ([]string, error) {
	se.mu.Lock()
	defer se.mu.Unlock()

	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		id, err := se.insertInternal(collName, doc)
		if err != nil {
			return ids, fmt.Errorf("document %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (se *StorageEngine) insertInternal(collName string, doc domain.Document) (string, error) {
	collection := se.getOrCreateCollection(collName)
	doc = doc.Clone()

	var docID string
	if v, ok := doc["_id"]; ok && v != nil {
		docID = fmt.Sprint(v)
		if _, exists := collection.Documents[docID]; exists {
			return "", fmt.Errorf("%w: E11000 duplicate key error index: %s dup key: %s",
				domain.ErrIndexConflict, domain.IDIndexName, docID)
		}
		if n, err := strconv.ParseInt(docID, 10, 64); err == nil && n > se.idCounters[collName] {
			se.idCounters[collName] = n
		}
	} else {
		se.idCounters[collName]++
		docID = strconv.FormatInt(se.idCounters[collName], 10)
		doc["_id"] = docID
	}

	if err := se.indexEngine.UpdateIndexForDocument(collName, docID, nil, doc); err != nil {
		return "", err
	}
	collection.Documents[docID] = doc
	se.markDirty()
	return docID, nil
}
