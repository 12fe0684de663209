// Package mongostore keeps the operation log in a MongoDB collection.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fincore/gateway/pkg/oplog"
)

// DefaultCollection is used when no collection name is configured.
const DefaultCollection = "integration_logs"

// document is the stored form of an entry. created_at_ns orders entries
// finer than BSON's millisecond dates.
type document struct {
	ID              string    `bson:"_id"`
	ConnectorName   string    `bson:"connector_name"`
	Operation       string    `bson:"operation"`
	Status          string    `bson:"status"`
	Details         string    `bson:"details,omitempty"`
	RequestData     any       `bson:"request_data,omitempty"`
	ResponseData    any       `bson:"response_data,omitempty"`
	ErrorMessage    string    `bson:"error_message,omitempty"`
	ExecutionTimeMs int64     `bson:"execution_time_ms"`
	CreatedAt       time.Time `bson:"created_at"`
	CreatedAtNanos  int64     `bson:"created_at_ns"`
}

// Store is an oplog.Store on one collection.
type Store struct {
	coll *mongo.Collection
}

var _ oplog.Store = (*Store)(nil)

// New wraps an existing collection.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// Connect dials uri and returns a store on database.collection together
// with a function that disconnects the client.
func Connect(ctx context.Context, uri, database, collection string) (*Store, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return New(client.Database(database).Collection(collection)), client.Disconnect, nil
}

// EnsureIndexes creates the indexes used by Query.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "connector_name", Value: 1}, {Key: "created_at_ns", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	return err
}

// Append implements oplog.Store.
func (s *Store) Append(ctx context.Context, e oplog.Entry) error {
	_, err := s.coll.InsertOne(ctx, document{
		ID:              e.ID,
		ConnectorName:   e.Connector,
		Operation:       e.Operation,
		Status:          string(e.Status),
		Details:         e.Details,
		RequestData:     e.RequestData,
		ResponseData:    e.ResponseData,
		ErrorMessage:    e.ErrorMessage,
		ExecutionTimeMs: e.ExecutionTimeMs(),
		CreatedAt:       e.CreatedAt,
		CreatedAtNanos:  e.CreatedAt.UnixNano(),
	})
	return err
}

// Query implements oplog.Store.
func (s *Store) Query(ctx context.Context, q oplog.Query) ([]oplog.Entry, error) {
	filter := bson.D{}
	if q.Connector != "" {
		filter = append(filter, bson.E{Key: "connector_name", Value: q.Connector})
	}
	if q.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: string(q.Status)})
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at_ns", Value: -1}}).
		SetLimit(int64(q.EffectiveLimit()))

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	entries := make([]oplog.Entry, len(docs))
	for i, d := range docs {
		entries[i] = oplog.Entry{
			ID:            d.ID,
			Connector:     d.ConnectorName,
			Operation:     d.Operation,
			Status:        oplog.Status(d.Status),
			Details:       d.Details,
			RequestData:   plain(d.RequestData),
			ResponseData:  plain(d.ResponseData),
			ErrorMessage:  d.ErrorMessage,
			ExecutionTime: time.Duration(d.ExecutionTimeMs) * time.Millisecond,
			CreatedAt:     d.CreatedAt.UTC(),
		}
	}
	return entries, nil
}

// plain turns decoded BSON documents and arrays into maps and slices.
func plain(v any) any {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = plain(val)
		}
		return m
	case primitive.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = plain(val)
		}
		return out
	}
	return v
}
