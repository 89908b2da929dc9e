// Package mongodb implements storage interfaces using MongoDB
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-wssec/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store using MongoDB
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	replay *mongo.Collection
	now    func() time.Time
}

// Config holds MongoDB connection settings
type Config struct {
	URI        string
	Database   string
	Collection string
}

type replayEntry struct {
	Key       string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	SeenAt    time.Time `bson:"seen_at"`
}

// NewStore creates a new MongoDB store
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "wssec"
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "replay_cache"
	}
	db := client.Database(database)
	s := &Store{
		client: client,
		db:     db,
		replay: db.Collection(collection),
		now:    time.Now,
	}
	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}
	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	// The TTL monitor reaps entries once expires_at has passed; _id is
	// unique already.
	_, err := s.replay.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	if err != nil {
		return fmt.Errorf("creating replay cache indexes: %w", err)
	}
	return nil
}

// Add records key until expires. An entry that has expired but not yet
// been reaped is taken over.
func (s *Store) Add(ctx context.Context, key string, expires time.Time) (bool, error) {
	now := s.now().UTC()
	entry := replayEntry{Key: key, ExpiresAt: expires.UTC(), SeenAt: now}

	_, err := s.replay.InsertOne(ctx, entry)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("recording replay cache entry: %w", err)
	}

	res, err := s.replay.UpdateOne(ctx,
		bson.M{"_id": key, "expires_at": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"expires_at": entry.ExpiresAt, "seen_at": now}},
	)
	if err != nil {
		return false, fmt.Errorf("refreshing replay cache entry: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
