package legacy

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Source streams legacy documents. fn is called once per decoded document;
// a non-nil return stops the stream.
type Source interface {
	Institutions(ctx context.Context, fn func(InstitutionDoc) error) error
	Users(ctx context.Context, fn func(UserDoc) error) error
	Reports(ctx context.Context, fn func(ReportDoc) error) error
	Rewards(ctx context.Context, fn func(RewardDoc) error) error
}

// Collection names of the legacy database.
const (
	CollectionInstitutions = "institutions"
	CollectionUsers        = "users"
	CollectionReports      = "reports"
	CollectionRewards      = "user_rewards"
)

// MongoSource reads the legacy collections with mongo-driver in _id order.
// Documents that fail to decode are skipped and reported to the decode
// error handler.
type MongoSource struct {
	client   *mongo.Client
	db       *mongo.Database
	batch    int32
	onDecode func(collection string, err error)
}

// Connect opens a client for uri and selects dbName.
func Connect(ctx context.Context, uri, dbName string) (*MongoSource, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("legacy: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("legacy: ping: %w", err)
	}
	return &MongoSource{client: client, db: client.Database(dbName), batch: 500}, nil
}

// OnDecodeError installs the handler for undecodable documents.
func (s *MongoSource) OnDecodeError(fn func(collection string, err error)) {
	s.onDecode = fn
}

// Close disconnects the client.
func (s *MongoSource) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoSource) Institutions(ctx context.Context, fn func(InstitutionDoc) error) error {
	return stream(ctx, s.db.Collection(CollectionInstitutions), s.batch, s.onDecode, fn)
}

func (s *MongoSource) Users(ctx context.Context, fn func(UserDoc) error) error {
	return stream(ctx, s.db.Collection(CollectionUsers), s.batch, s.onDecode, fn)
}

func (s *MongoSource) Reports(ctx context.Context, fn func(ReportDoc) error) error {
	return stream(ctx, s.db.Collection(CollectionReports), s.batch, s.onDecode, fn)
}

func (s *MongoSource) Rewards(ctx context.Context, fn func(RewardDoc) error) error {
	return stream(ctx, s.db.Collection(CollectionRewards), s.batch, s.onDecode, fn)
}

func stream[T any](ctx context.Context, col *mongo.Collection, batch int32, onDecode func(string, error), fn func(T) error) error {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetBatchSize(batch)

	cur, err := col.Find(ctx, bson.D{}, opts)
	if err != nil {
		return fmt.Errorf("legacy: find %s: %w", col.Name(), err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			if onDecode != nil {
				onDecode(col.Name(), err)
			}
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return cur.Err()
}
