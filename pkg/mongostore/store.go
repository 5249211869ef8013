// Package mongostore is the MongoDB implementation of domain.Gateway.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/adfharrison1/restodb/pkg/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// DefaultDatabase is used when Config.Database is empty.
const DefaultDatabase = "restodb"

// Config describes a MongoDB connection.
type Config struct {
	URI      string
	Database string
	// StrictAPI pins Stable API v1 in strict mode. Text indexes are outside
	// that API and get rejected by the server.
	StrictAPI bool
	Logger    *slog.Logger
}

var _ domain.Gateway = (*Store)(nil)

// Store talks to one database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbName := cfg.Database
	if dbName == "" {
		dbName = DefaultDatabase
	}

	serverAPI := options.ServerAPI(options.ServerAPIVersion1).
		SetStrict(cfg.StrictAPI).
		SetDeprecationErrors(cfg.StrictAPI)
	clientOpts := options.Client().ApplyURI(cfg.URI).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo client: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, &domain.OpError{Op: "ping", Err: classify(err)}
	}

	logger.Info("mongostore.connected", "database", dbName, "strict_api", cfg.StrictAPI)
	return &Store{client: client, db: client.Database(dbName), logger: logger}, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, &domain.OpError{Op: "listCollections", Err: classify(err)}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) CreateCollection(ctx context.Context, name string) error {
	if err := s.db.CreateCollection(ctx, name); err != nil {
		return &domain.OpError{Op: "createCollection", Collection: name, Err: classify(err)}
	}
	return nil
}

func (s *Store) ListIndexes(ctx context.Context, collection string) ([]domain.LiveIndexState, error) {
	cursor, err := s.db.Collection(collection).Indexes().List(ctx)
	if err != nil {
		return nil, &domain.OpError{Op: "listIndexes", Collection: collection, Err: classify(err)}
	}
	var raw []bson.D
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, &domain.OpError{Op: "listIndexes", Collection: collection, Err: classify(err)}
	}

	out := make([]domain.LiveIndexState, 0, len(raw))
	for _, r := range raw {
		idx, err := liveIndex(r)
		if err != nil {
			return nil, &domain.OpError{Op: "listIndexes", Collection: collection, Err: err}
		}
		out = append(out, idx)
	}
	return out, nil
}

func (s *Store) CreateIndex(ctx context.Context, collection string, spec domain.IndexSpec) error {
	if _, err := s.db.Collection(collection).Indexes().CreateOne(ctx, indexModel(spec)); err != nil {
		return &domain.OpError{Op: "createIndex", Collection: collection, Index: spec.Name, Err: classify(err)}
	}
	return nil
}

func (s *Store) DropIndex(ctx context.Context, collection, name string) error {
	if err := s.db.Collection(collection).Indexes().DropOne(ctx, name); err != nil {
		return &domain.OpError{Op: "dropIndex", Collection: collection, Index: name, Err: classify(err)}
	}
	return nil
}

func (s *Store) Find(ctx context.Context, q domain.QuerySpec) ([]domain.Document, error) {
	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(sortDoc(q.Sort))
	}
	if q.Hint != "" {
		opts.SetHint(q.Hint)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cursor, err := s.db.Collection(q.Collection).Find(ctx, filterDoc(q.Filter), opts)
	if err != nil {
		return nil, &domain.OpError{Op: "find", Collection: q.Collection, Err: classifyPlan(err)}
	}
	defer cursor.Close(context.WithoutCancel(ctx))

	var out []domain.Document
	for cursor.Next(ctx) {
		var raw bson.D
		if err := cursor.Decode(&raw); err != nil {
			return nil, &domain.OpError{Op: "find", Collection: q.Collection, Err: err}
		}
		out = append(out, toDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, &domain.OpError{Op: "find", Collection: q.Collection, Err: classifyPlan(err)}
	}
	return out, nil
}

// Explain runs the find command of q under explain with executionStats
// verbosity and returns the server payload as plain maps.
func (s *Store) Explain(ctx context.Context, q domain.QuerySpec) (domain.Document, error) {
	cmd := bson.D{
		{Key: "explain", Value: findCommand(q.Collection, q)},
		{Key: "verbosity", Value: "executionStats"},
	}
	var raw bson.D
	if err := s.db.RunCommand(ctx, cmd).Decode(&raw); err != nil {
		return nil, &domain.OpError{Op: "explain", Collection: q.Collection, Err: classifyPlan(err)}
	}
	return toDocument(raw), nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}
