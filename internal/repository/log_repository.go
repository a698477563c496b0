package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"botevents-api/internal/logger"
	"botevents-api/internal/model"
)

// MongoEventLogRepository implements EventLogRepository for MongoDB.
type MongoEventLogRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoEventLogRepository connects to MongoDB and ensures the event log indexes.
func NewMongoEventLogRepository(ctx context.Context, uri, dbName, collectionName string) (*MongoEventLogRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(dbName).Collection(collectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.FromContext(ctx).Warn("[MongoDB] Failed to create event log indexes", "error", err)
	}

	logger.FromContext(ctx).Info("[MongoDB] Connected", "database", dbName, "collection", collectionName)
	return &MongoEventLogRepository{client: client, collection: coll}, nil
}

// InsertEventLog inserts a new log entry.
func (r *MongoEventLogRepository) InsertEventLog(ctx context.Context, entry *model.EventLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, entry)
	return err
}

// GetEventLogs returns logs newest first with pagination.
func (r *MongoEventLogRepository) GetEventLogs(ctx context.Context, limit, offset int) ([]model.EventLog, int64, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var logs []model.EventLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, 0, err
	}
	if logs == nil {
		logs = []model.EventLog{}
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	return logs, count, nil
}

// Close closes the MongoDB connection.
func (r *MongoEventLogRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// MemoryEventLogRepository keeps the most recent event logs in a bounded
// in-process buffer. Used when no MongoDB URI is configured.
type MemoryEventLogRepository struct {
	mu       sync.RWMutex
	entries  []model.EventLog
	capacity int
}

// NewMemoryEventLogRepository creates a buffer holding at most capacity entries.
func NewMemoryEventLogRepository(capacity int) *MemoryEventLogRepository {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryEventLogRepository{capacity: capacity}
}

// InsertEventLog appends an entry, evicting the oldest when full.
func (r *MemoryEventLogRepository) InsertEventLog(_ context.Context, entry *model.EventLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	if over := len(r.entries) - r.capacity; over > 0 {
		r.entries = append(r.entries[:0:0], r.entries[over:]...)
	}
	return nil
}

// GetEventLogs returns logs newest first with pagination.
func (r *MemoryEventLogRepository) GetEventLogs(_ context.Context, limit, offset int) ([]model.EventLog, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	total := len(r.entries)
	logs := make([]model.EventLog, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, r.entries[i])
	}
	return logs, int64(total), nil
}

// Close is a no-op.
func (r *MemoryEventLogRepository) Close() error { return nil }

var (
	_ EventLogRepository = (*MongoEventLogRepository)(nil)
	_ EventLogRepository = (*MemoryEventLogRepository)(nil)
)
