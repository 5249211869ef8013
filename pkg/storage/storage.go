package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/adfharrison1/restodb/pkg/indexing"
)

// DefaultDatabase is the namespace prefix reported by explain.
const DefaultDatabase = "restodb"

var _ domain.Gateway = (*StorageEngine)(nil)

// StorageEngine is an in-process document store with MongoDB-like index and
// explain semantics. It implements domain.Gateway.
type StorageEngine struct {
	mu          sync.RWMutex
	collections map[string]*domain.Collection
	indexEngine *indexing.IndexEngine
	database    string
	logger      *slog.Logger

	// Per-collection ID counters for generated document ids
	idCounters map[string]int64

	// Configuration
	dataFile       string
	backgroundSave bool
	saveInterval   time.Duration
	dirty          bool

	// Background workers
	backgroundWg sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewStorageEngine creates a new storage engine
func NewStorageEngine(options ...StorageOption) *StorageEngine {
	engine := &StorageEngine{
		collections:  make(map[string]*domain.Collection),
		indexEngine:  indexing.NewIndexEngine(),
		database:     DefaultDatabase,
		logger:       slog.Default(),
		idCounters:   make(map[string]int64),
		saveInterval: 5 * time.Minute,
		stopChan:     make(chan struct{}),
	}

	// Apply options
	for _, option := range options {
		option(engine)
	}

	return engine
}

// Open creates an engine, loads its data file when one is configured and
// present, and starts the background saver if enabled.
func Open(options ...StorageOption) (*StorageEngine, error) {
	engine := NewStorageEngine(options...)
	if engine.dataFile != "" {
		if err := engine.LoadFromFile(engine.dataFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", engine.dataFile, err)
		}
	}
	engine.StartBackgroundWorkers()
	return engine, nil
}

// Close stops background workers and writes the data file if anything changed.
func (se *StorageEngine) Close(ctx context.Context) error {
	se.StopBackgroundWorkers()
	return se.saveIfDirty()
}

// DataFile returns the snapshot path, or "" for a purely in-memory store.
func (se *StorageEngine) DataFile() string {
	return se.dataFile
}

func (se *StorageEngine) markDirty() {
	se.dirty = true
}

func (se *StorageEngine) saveIfDirty() error {
	se.mu.Lock()
	dirty := se.dirty && se.dataFile != ""
	se.dirty = false
	se.mu.Unlock()
	if !dirty {
		return nil
	}
	if err := se.SaveToFile(se.dataFile); err != nil {
		se.mu.Lock()
		se.dirty = true
		se.mu.Unlock()
		return err
	}
	se.logger.Debug("storage.snapshot.saved", "file", se.dataFile)
	return nil
}

// checkContext turns a finished context into a transport error, the way a
// driver reports a call that never reached the server.
func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}
	return nil
}
