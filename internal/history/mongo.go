package history

import (
	"context"
	"fmt"

	"github.com/cankoe/misuse-recorder/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	RecordsCollection  = "capture_records"
	CountersCollection = "counters"
)

// MongoStore keeps records in capture_records with an integer _id drawn from
// an atomic counter document.
type MongoStore struct {
	client   *mongo.Client
	records  *mongo.Collection
	counters *mongo.Collection
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:   client,
		records:  db.Collection(RecordsCollection),
		counters: db.Collection(CountersCollection),
	}
}

func (s *MongoStore) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": RecordsCollection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate record id: %w", err)
	}
	return counter.Seq, nil
}

func (s *MongoStore) Append(ctx context.Context, rec *models.CaptureRecord) error {
	id, err := s.nextID(ctx)
	if err != nil {
		return err
	}

	doc := *rec
	doc.ID = id
	if _, err := s.records.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert capture record: %w", err)
	}
	rec.ID = id
	return nil
}

func (s *MongoStore) RecentHistory(ctx context.Context, limit int) ([]models.CaptureRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(normalizeLimit(limit)))

	cursor, err := s.records.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capture records: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.CaptureRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode capture records: %w", err)
	}
	return records, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
