package output

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"newsarc/internal/types"
)

// MongoSink mirrors accepted records into a MongoDB collection. Useful
// when repeated harvests feed a shared article store; the CSV sink
// remains the canonical per-run output.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	count      int
	logger     *slog.Logger
}

// NewMongoSink connects to MongoDB and prepares the target collection.
func NewMongoSink(uri, database, collection string, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_sink"),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

func (s *MongoSink) Append(rec types.ArticleRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doc := map[string]any{
		"link":     rec.Link,
		"title":    rec.Title,
		"author":   rec.Author,
		"provider": rec.Provider,
		"date":     rec.Date.In(types.Taipei),
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return &types.StorageError{Backend: "mongodb", Err: err}
	}

	s.count++
	s.logger.Debug("record stored in mongodb", "link", rec.Link, "total", s.count)
	return nil
}

func (s *MongoSink) Close() error {
	s.logger.Info("mongodb sink closing", "total_items", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
