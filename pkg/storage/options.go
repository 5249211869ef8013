package storage

import (
	"log/slog"
	"time"
)

// StorageOption configures a StorageEngine.
type StorageOption func(*StorageEngine)

// WithDataFile persists the store to a .godb snapshot.
func WithDataFile(path string) StorageOption {
	return func(engine *StorageEngine) {
		engine.dataFile = path
	}
}

// WithDatabase sets the database name reported in explain namespaces.
func WithDatabase(name string) StorageOption {
	return func(engine *StorageEngine) {
		if name != "" {
			engine.database = name
		}
	}
}

// WithBackgroundSave snapshots a dirty store every interval. Zero disables it.
func WithBackgroundSave(interval time.Duration) StorageOption {
	return func(engine *StorageEngine) {
		engine.backgroundSave = interval > 0
		engine.saveInterval = interval
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) StorageOption {
	return func(engine *StorageEngine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}
