package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"moviescout/internal/domain"
)

const DefaultCollection = "metrics"

// Field names follow the document layout of the original metrics collection.
type trendingDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	SearchTerm string             `bson:"searchTerm"`
	Count      int64              `bson:"count"`
	MovieID    int                `bson:"movie_id"`
	PosterURL  string             `bson:"poster_url"`
	CreatedAt  int64              `bson:"createdAt"`
	UpdatedAt  int64              `bson:"updatedAt"`
}

type TrendingRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewTrendingRepository(client *mongo.Client, dbName, collectionName string) *TrendingRepository {
	if collectionName == "" {
		collectionName = DefaultCollection
	}
	return &TrendingRepository{
		collection: client.Database(dbName).Collection(collectionName),
		now:        time.Now,
	}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Collection exposes the backing collection for change-stream watchers.
func (r *TrendingRepository) Collection() *mongo.Collection {
	return r.collection
}

func (r *TrendingRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "searchTerm", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "count", Value: -1}, {Key: "updatedAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// IncrementHit upserts the record for seed.SearchTerm with $inc. Creation
// fields are written with $setOnInsert so an existing record keeps its movie.
// Two concurrent first inserts can race on the unique index; the loser is
// retried once and then matches the winner's document.
func (r *TrendingRepository) IncrementHit(ctx context.Context, seed domain.TrendingSeed) (domain.TrendingRecord, error) {
	if seed.SearchTerm == "" {
		return domain.TrendingRecord{}, domain.ErrEmptyTerm
	}
	record, err := r.incrementHit(ctx, seed)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		record, err = r.incrementHit(ctx, seed)
	}
	return record, err
}

func (r *TrendingRepository) incrementHit(ctx context.Context, seed domain.TrendingSeed) (domain.TrendingRecord, error) {
	now := r.now().UTC().UnixMilli()
	var doc trendingDoc
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"searchTerm": seed.SearchTerm},
		incrementUpdate(seed, now),
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return domain.TrendingRecord{}, err
	}
	return docToRecord(doc), nil
}

func incrementUpdate(seed domain.TrendingSeed, now int64) bson.M {
	return bson.M{
		"$inc": bson.M{"count": 1},
		"$set": bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{
			"movie_id":   seed.MovieID,
			"poster_url": seed.PosterURL,
			"createdAt":  now,
		},
	}
}

func (r *TrendingRepository) Top(ctx context.Context, limit int) ([]domain.TrendingRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "count", Value: -1}, {Key: "updatedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []trendingDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	records := make([]domain.TrendingRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, docToRecord(doc))
	}
	return records, nil
}

func (r *TrendingRepository) Get(ctx context.Context, term string) (domain.TrendingRecord, error) {
	var doc trendingDoc
	err := r.collection.FindOne(ctx, bson.M{"searchTerm": term}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.TrendingRecord{}, domain.ErrNotFound
		}
		return domain.TrendingRecord{}, err
	}
	return docToRecord(doc), nil
}

func (r *TrendingRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, readpref.Primary())
}

func docToRecord(doc trendingDoc) domain.TrendingRecord {
	record := domain.TrendingRecord{
		SearchTerm: doc.SearchTerm,
		Count:      doc.Count,
		MovieID:    doc.MovieID,
		PosterURL:  doc.PosterURL,
	}
	if !doc.ID.IsZero() {
		record.ID = doc.ID.Hex()
	}
	if doc.CreatedAt > 0 {
		record.CreatedAt = time.UnixMilli(doc.CreatedAt).UTC()
	}
	if doc.UpdatedAt > 0 {
		record.UpdatedAt = time.UnixMilli(doc.UpdatedAt).UTC()
	}
	return record
}
