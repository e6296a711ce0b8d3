package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"memeatlas/models"
)

// MongoLocationRepository implements the LocationRepository interface for MongoDB
type MongoLocationRepository struct {
	client     *mongo.Client
	database   string
	collection string
}

// NewMongoLocationRepository creates a new MongoLocationRepository
func NewMongoLocationRepository(client *mongo.Client, database, collection string) *MongoLocationRepository {
	return &MongoLocationRepository{
		client:     client,
		database:   database,
		collection: collection,
	}
}

// Close is a no-op; the client is shared and disconnected by its owner
func (r *MongoLocationRepository) Close() error {
	return nil
}

func (r *MongoLocationRepository) coll() *mongo.Collection {
	return r.client.Database(r.database).Collection(r.collection)
}

// FindByLabel finds a location by its exact label
func (r *MongoLocationRepository) FindByLabel(ctx context.Context, label string) (*models.LocationRecord, error) {
	var loc models.LocationRecord
	err := r.coll().FindOne(ctx, bson.M{"label": label}).Decode(&loc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding location: %w", err)
	}

	return &loc, nil
}

// FindAll returns all locations sorted by label
func (r *MongoLocationRepository) FindAll(ctx context.Context) ([]*models.LocationRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "label", Value: 1}})
	cursor, err := r.coll().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding locations: %w", err)
	}
	defer cursor.Close(ctx)

	var locations []*models.LocationRecord
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, fmt.Errorf("error decoding locations: %w", err)
	}

	return locations, nil
}

// Upsert sets the geo fields on the document with the same label, inserting it if absent
func (r *MongoLocationRepository) Upsert(ctx context.Context, location *models.LocationRecord) (*models.LocationRecord, error) {
	if err := location.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	filter := bson.M{"label": location.Label}
	update := bson.M{
		"$set": bson.M{
			"city":       location.City,
			"region":     location.Region,
			"country":    location.Country,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID().Hex(),
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.LocationRecord
	if err := r.coll().FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return nil, fmt.Errorf("error upserting location: %w", err)
	}

	return &stored, nil
}

// MongoMemeRepository implements the MemeRepository interface for MongoDB
type MongoMemeRepository struct {
	client     *mongo.Client
	database   string
	collection string
}

// NewMongoMemeRepository creates a new MongoMemeRepository
func NewMongoMemeRepository(client *mongo.Client, database, collection string) *MongoMemeRepository {
	return &MongoMemeRepository{
		client:     client,
		database:   database,
		collection: collection,
	}
}

// Close is a no-op; the client is shared and disconnected by its owner
func (r *MongoMemeRepository) Close() error {
	return nil
}

func (r *MongoMemeRepository) coll() *mongo.Collection {
	return r.client.Database(r.database).Collection(r.collection)
}

// Create inserts a new meme
func (r *MongoMemeRepository) Create(ctx context.Context, meme *models.MemeRecord) (*models.MemeRecord, error) {
	if err := meme.Validate(); err != nil {
		return nil, err
	}

	if meme.ID == "" {
		meme.ID = primitive.NewObjectID().Hex()
	}
	if meme.Timestamp.IsZero() {
		meme.Timestamp = time.Now()
	}
	meme.Timestamp = meme.Timestamp.UTC()

	if _, err := r.coll().InsertOne(ctx, meme); err != nil {
		return nil, fmt.Errorf("error creating meme: %w", err)
	}

	return meme, nil
}

// FindRecent returns up to limit memes, newest first
func (r *MongoMemeRepository) FindRecent(ctx context.Context, limit int) ([]*models.MemeRecord, error) {
	if limit <= 0 {
		return []*models.MemeRecord{}, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.coll().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding memes: %w", err)
	}
	defer cursor.Close(ctx)

	memes := []*models.MemeRecord{}
	if err := cursor.All(ctx, &memes); err != nil {
		return nil, fmt.Errorf("error decoding memes: %w", err)
	}

	return memes, nil
}
