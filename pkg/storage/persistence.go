package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/adfharrison1/restodb/pkg/indexing"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// SaveToFile writes every collection, index definition and id counter to a
// single lz4-compressed msgpack snapshot. The file is replaced atomically.
func (se *StorageEngine) SaveToFile(filename string) error {
	se.mu.RLock()
	storageData := NewStorageData()
	for collName, collection := range se.collections {
		docs := make(map[string]interface{}, len(collection.Documents))
		for docID, doc := range collection.Documents {
			docs[docID] = map[string]interface{}(doc)
		}
		storageData.Collections[collName] = docs
	}
	// Export indexes for persistence
	storageData.Indexes = se.indexEngine.ExportIndexes()
	for collName, n := range se.idCounters {
		storageData.Counters[collName] = n
	}
	storageData.Metadata["database"] = se.database
	storageData.Metadata["saved_at"] = time.Now().UTC().Format(time.RFC3339)
	msgpackData, err := msgpack.Marshal(storageData)
	se.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	compressedData := make([]byte, lz4.CompressBlockBound(len(msgpackData)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(msgpackData, compressedData, hashTable[:])
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	compressedData = compressedData[:n]

	var buf bytes.Buffer
	if err := WriteHeader(&buf, len(msgpackData)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	buf.Write(compressedData)

	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

// LoadFromFile replaces the store content with a snapshot. A missing file
// leaves the store empty.
func (se *StorageEngine) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	header, err := ReadHeader(file)
	if err != nil {
		return fmt.Errorf("invalid file header: %w", err)
	}
	compressedData, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read compressed data: %w", err)
	}
	decompressedData := make([]byte, header.RawSize)
	n, err := lz4.UncompressBlock(compressedData, decompressedData)
	if err != nil {
		return fmt.Errorf("failed to decompress data: %w", err)
	}
	decompressedData = decompressedData[:n]

	var storageData StorageData
	if err := msgpack.Unmarshal(decompressedData, &storageData); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	collections := make(map[string]*domain.Collection, len(storageData.Collections))
	indexEngine := indexing.NewIndexEngine()
	for collName, docs := range storageData.Collections {
		collection := domain.NewCollection(collName)
		for docID, docData := range docs {
			if doc, ok := docData.(map[string]interface{}); ok {
				collection.Documents[docID] = domain.Document(doc)
			}
		}
		collections[collName] = collection

		specs := storageData.Indexes[collName]
		if len(specs) == 0 || specs[0].Name != domain.IDIndexName {
			specs = append([]domain.IndexSpec{idIndexSpec}, specs...)
		}
		// Rebuild indexes for this collection after loading
		for _, spec := range specs {
			if err := indexEngine.CreateIndex(collName, spec, collection); err != nil {
				return fmt.Errorf("failed to rebuild index %s.%s: %w", collName, spec.Name, err)
			}
		}
	}

	se.mu.Lock()
	defer se.mu.Unlock()
	se.collections = collections
	se.indexEngine = indexEngine
	se.idCounters = make(map[string]int64, len(storageData.Counters))
	for collName, n := range storageData.Counters {
		se.idCounters[collName] = n
	}
	se.dirty = false
	return nil
}
