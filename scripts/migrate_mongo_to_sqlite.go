package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"memeatlas/db"
	"memeatlas/internal/config"
	"memeatlas/internal/logger"
	"memeatlas/models"
)

// Copies locations and memes from MongoDB into the SQLite backend. Meme IDs and
// timestamps are kept; locations are upserted by label.
func main() {
	log := logger.Setup()
	ctx := context.Background()

	cfg, err := config.LoadDatabaseConfig()
	if err != nil {
		log.Error("config_load_failed", "err", err)
		os.Exit(1)
	}

	if cfg.MongoURI == "" {
		log.Error("mongodb_uri_missing")
		os.Exit(1)
	}

	mongoClient, err := db.ConnectToMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.Error("mongo_connect_failed", "err", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())

	sqliteDB, err := db.ConnectToSQLite(cfg.SQLitePath)
	if err != nil {
		log.Error("sqlite_connect_failed", "err", err)
		os.Exit(1)
	}
	defer sqliteDB.Close()

	if err := db.InitializeSchema(sqliteDB); err != nil {
		log.Error("sqlite_schema_failed", "err", err)
		os.Exit(1)
	}

	target := db.NewRepositoryFactory(sqliteDB, nil, nil, cfg.DatabaseName)
	source := mongoClient.Database(cfg.DatabaseName)

	locations, err := migrateLocations(ctx, log, source.Collection(db.LocationsCollection), target.NewLocationRepository())
	if err != nil {
		log.Error("migrate_locations_failed", "err", err)
		os.Exit(1)
	}

	memes, err := migrateMemes(ctx, log, source.Collection(db.MemesCollection), target.NewMemeRepository())
	if err != nil {
		log.Error("migrate_memes_failed", "err", err)
		os.Exit(1)
	}

	log.Info("migration_completed", "locations", locations, "memes", memes, "sqlite", cfg.SQLitePath)
}

func migrateLocations(ctx context.Context, log *slog.Logger, coll *mongo.Collection, repo db.LocationRepository) (int, error) {
	cursor, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	count := 0
	for cursor.Next(ctx) {
		var loc models.LocationRecord
		if err := cursor.Decode(&loc); err != nil {
			log.Warn("location_decode_failed", "err", err)
			continue
		}
		if _, err := repo.Upsert(ctx, &loc); err != nil {
			log.Warn("location_migrate_failed", "label", loc.Label, "err", err)
			continue
		}
		count++
	}
	return count, cursor.Err()
}

func migrateMemes(ctx context.Context, log *slog.Logger, coll *mongo.Collection, repo db.MemeRepository) (int, error) {
	cursor, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	count := 0
	for cursor.Next(ctx) {
		var meme models.MemeRecord
		if err := cursor.Decode(&meme); err != nil {
			log.Warn("meme_decode_failed", "err", err)
			continue
		}
		if _, err := repo.Create(ctx, &meme); err != nil {
			if errors.Is(err, models.ErrMemeURLRequired) || errors.Is(err, models.ErrThoughtRequired) || errors.Is(err, models.ErrLocationRequired) {
				log.Warn("meme_skipped_invalid", "id", meme.ID, "err", err)
			} else {
				log.Warn("meme_migrate_failed", "id", meme.ID, "err", err)
			}
			continue
		}
		count++
	}
	return count, cursor.Err()
}
