package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/adfharrison1/restodb/pkg/mongostore"
	"github.com/adfharrison1/restodb/pkg/storage"
)

// Options selects and tunes a store.
type Options struct {
	// URI is mongodb://, mongodb+srv:// or mem:// (mem:///path/file.godb persists).
	URI       string
	Database  string
	StrictAPI bool

	Timeout   time.Duration
	Retries   int
	Backoff   time.Duration
	RateLimit float64
	RateBurst int

	// SnapshotInterval enables periodic snapshots of a persistent mem:// store.
	SnapshotInterval time.Duration
	Logger           *slog.Logger
}

// Scheme returns the URI scheme, or "" when the URI has none.
func Scheme(uri string) string {
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok {
		return ""
	}
	return strings.ToLower(scheme)
}

// Open connects to the store named by opts.URI and returns it wrapped in the
// call policy. Connecting is retried like any call; a store that never
// answers yields domain.ErrStoreUnavailable.
func Open(ctx context.Context, opts Options) (*Resilient, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := []Option{
		WithTimeout(opts.Timeout),
		WithRetries(opts.Retries),
		WithBackoff(opts.Backoff),
		WithRateLimit(opts.RateLimit, opts.RateBurst),
		WithLogger(logger),
	}

	var store domain.Gateway
	switch Scheme(opts.URI) {
	case "mongodb", "mongodb+srv":
		dialer := NewResilient(nil, policy...)
		err := dialer.do(ctx, "connect", func(ctx context.Context) error {
			s, err := mongostore.Connect(ctx, mongostore.Config{
				URI:       opts.URI,
				Database:  opts.Database,
				StrictAPI: opts.StrictAPI,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			store = s
			return nil
		})
		if err != nil {
			return nil, err
		}
	case "mem":
		_, path, _ := strings.Cut(opts.URI, "://")
		s, err := storage.Open(
			storage.WithDataFile(path),
			storage.WithDatabase(opts.Database),
			storage.WithBackgroundSave(opts.SnapshotInterval),
			storage.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unsupported store URI %q: expected mongodb://, mongodb+srv:// or mem://", redact(opts.URI))
	}

	logger.Info("gateway.open", "uri", redact(opts.URI), "database", opts.Database)
	return NewResilient(store, policy...), nil
}

// redact hides the password of a connection string.
func redact(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return uri
	}
	userinfo := rest[:at]
	if user, _, hasPassword := strings.Cut(userinfo, ":"); hasPassword {
		userinfo = user + ":xxxxx"
	}
	return scheme + "://" + userinfo + rest[at:]
}

// Redact is exported for log and error output outside the package.
func Redact(uri string) string { return redact(uri) }
