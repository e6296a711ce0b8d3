package db

import (
	"context"
	"database/sql"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"memeatlas/models"
)

var (
	ErrNotFound = errors.New("record not found")
)

const (
	LocationsCollection = "locations"
	MemesCollection     = "memes"
)

// Repository defines a common interface for all repositories
type Repository interface {
	Close() error
}

// LocationRepository stores location records keyed by their label.
type LocationRepository interface {
	Repository
	FindByLabel(ctx context.Context, label string) (*models.LocationRecord, error)
	// FindAll returns every location ordered by label.
	FindAll(ctx context.Context) ([]*models.LocationRecord, error)
	// Upsert overwrites the geo fields of the record with the same label, or
	// creates it. The stored record is returned.
	Upsert(ctx context.Context, location *models.LocationRecord) (*models.LocationRecord, error)
}

// MemeRepository stores generated memes. Records are append-only.
type MemeRepository interface {
	Repository
	Create(ctx context.Context, meme *models.MemeRecord) (*models.MemeRecord, error)
	// FindRecent returns at most limit memes, newest first.
	FindRecent(ctx context.Context, limit int) ([]*models.MemeRecord, error)
}

// RepositoryFactory creates repositories based on the database type
type RepositoryFactory struct {
	SQLiteDB        *sql.DB
	MongoClient     *mongo.Client
	FirestoreClient *firestore.Client
	DBName          string
}

// NewRepositoryFactory creates a new repository factory. Exactly one client is
// expected to be non-nil; SQLite wins, then MongoDB, then Firestore.
func NewRepositoryFactory(sqliteDB *sql.DB, mongoClient *mongo.Client, firestoreClient *firestore.Client, dbName string) *RepositoryFactory {
	return &RepositoryFactory{
		SQLiteDB:        sqliteDB,
		MongoClient:     mongoClient,
		FirestoreClient: firestoreClient,
		DBName:          dbName,
	}
}

// NewLocationRepository creates a new location repository
func (f *RepositoryFactory) NewLocationRepository() LocationRepository {
	switch {
	case f.SQLiteDB != nil:
		return NewSQLiteLocationRepository(f.SQLiteDB)
	case f.MongoClient != nil:
		return NewMongoLocationRepository(f.MongoClient, f.DBName, LocationsCollection)
	default:
		return NewFirestoreLocationRepository(f.FirestoreClient, LocationsCollection)
	}
}

// NewMemeRepository creates a new meme repository
func (f *RepositoryFactory) NewMemeRepository() MemeRepository {
	switch {
	case f.SQLiteDB != nil:
		return NewSQLiteMemeRepository(f.SQLiteDB)
	case f.MongoClient != nil:
		return NewMongoMemeRepository(f.MongoClient, f.DBName, MemesCollection)
	default:
		return NewFirestoreMemeRepository(f.FirestoreClient, MemesCollection)
	}
}

// GenerateID generates a unique ID for a record
func GenerateID() string {
	return uuid.New().String()
}
