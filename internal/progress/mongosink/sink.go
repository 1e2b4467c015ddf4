// Package mongosink appends every progress snapshot to a MongoDB collection, giving each run
// a complete event log next to the latest-state row kept in the relational store.
package mongosink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mrlokans/courseimport/internal/config"
	"github.com/mrlokans/courseimport/internal/progress"
)

// Collection is the subset of *mongo.Collection used by Sink
type Collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

type Sink struct {
	collection Collection
}

func New(collection Collection) *Sink {
	return &Sink{collection: collection}
}

// Connect opens the client and returns the configured collection
func Connect(ctx context.Context, cfg config.Mongo) (*mongo.Client, *mongo.Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, client.Database(cfg.Database).Collection(cfg.Collection), nil
}

func (s *Sink) Report(ctx context.Context, snap progress.Snapshot) error {
	if _, err := s.collection.InsertOne(ctx, snap); err != nil {
		return fmt.Errorf("mongo insert: %w", err)
	}
	return nil
}

var _ progress.Reporter = (*Sink)(nil)
