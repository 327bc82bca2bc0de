package result

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is a Store backed by a single MongoDB collection, one
// document per task. Writes are whole-document replace-with-upsert, so
// Upsert never leaves a partially-written record behind.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// mongoDoc is the on-the-wire shape of a Record. bson field names are
// snake_case to match the rest of the document store's conventions.
type mongoDoc struct {
	TaskID         string    `bson:"task_id"`
	Title          string    `bson:"title"`
	Status         string    `bson:"status"`
	Payload        []byte    `bson:"payload"`
	CreatedAt      time.Time `bson:"created_at"`
	ReferenceCount int       `bson:"reference_count"`
	CiteRatio      float64   `bson:"cite_ratio"`
}

// NewMongoStore connects to uri, selects database/collection, and
// ensures the indexes the result store relies on: a unique index on
// task_id (so two racing writers converge on one document) and a
// created_at index for recency-ordered listing.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second).
		SetConnectTimeout(5*time.Second).
		SetMaxPoolSize(50).
		SetMinPoolSize(5))
	if err != nil {
		return nil, fmt.Errorf("result: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("result: ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "task_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("result: create indexes: %w", err)
	}

	return &MongoStore{client: client, collection: coll}, nil
}

func (s *MongoStore) Upsert(ctx context.Context, rec Record) error {
	doc := mongoDoc{
		TaskID:         rec.TaskID,
		Title:          rec.Title,
		Status:         rec.Status,
		Payload:        rec.Payload,
		CreatedAt:      rec.CreatedAt,
		ReferenceCount: rec.ReferenceCount,
		CiteRatio:      rec.CiteRatio,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.D{{Key: "task_id", Value: rec.TaskID}}, doc, opts)
	if err != nil {
		return fmt.Errorf("result: upsert %s: %w", rec.TaskID, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, taskID string) (Record, error) {
	var doc mongoDoc
	err := s.collection.FindOne(ctx, bson.D{{Key: "task_id", Value: taskID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("result: get %s: %w", taskID, err)
	}
	return Record{
		TaskID:         doc.TaskID,
		Title:          doc.Title,
		Status:         doc.Status,
		Payload:        doc.Payload,
		CreatedAt:      doc.CreatedAt,
		ReferenceCount: doc.ReferenceCount,
		CiteRatio:      doc.CiteRatio,
	}, nil
}

func (s *MongoStore) Exists(ctx context.Context, taskID string) (bool, error) {
	count, err := s.collection.CountDocuments(ctx, bson.D{{Key: "task_id", Value: taskID}},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("result: exists %s: %w", taskID, err)
	}
	return count > 0, nil
}

func (s *MongoStore) Delete(ctx context.Context, taskID string) error {
	_, err := s.collection.DeleteOne(ctx, bson.D{{Key: "task_id", Value: taskID}})
	if err != nil {
		return fmt.Errorf("result: delete %s: %w", taskID, err)
	}
	return nil
}

// HealthCheck pings the underlying Mongo connection.
func (s *MongoStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("result: health check: %w", err)
	}
	return nil
}
