package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"go.mongodb.org/mongo-driver/mongo"

	"memeatlas/db"
	"memeatlas/internal/config"
	"memeatlas/internal/gallery"
	"memeatlas/internal/geocache"
	"memeatlas/internal/geolocation"
	"memeatlas/internal/location"
	"memeatlas/internal/logger"
	"memeatlas/internal/meme"
	"memeatlas/internal/memegen"
	"memeatlas/internal/web"
	"memeatlas/middleware"
)

func main() {
	log := logger.Setup()
	log.Info("memeatlas_starting", "pid", os.Getpid(), "go", runtime.Version(), "os", runtime.GOOS, "arch", runtime.GOARCH)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("config_load_failed", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	factory, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("store_open_failed", "type", cfg.DatabaseType, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	locationRepo := factory.NewLocationRepository()
	memeRepo := factory.NewMemeRepository()

	// Create database manager for concurrent access control
	dbManager := db.NewDBManager()
	defer dbManager.Stop()

	provider, closeProvider, err := openProvider(cfg)
	if err != nil {
		log.Error("geo_provider_open_failed", "provider", cfg.GeoProvider, "err", err)
		os.Exit(1)
	}
	defer closeProvider()

	var resolverOpts []geolocation.ResolverOption
	if rc := geolocation.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); rc != nil {
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Warn("redis_unreachable", "addr", cfg.RedisAddr, "err", err)
		}
		resolverOpts = append(resolverOpts, geolocation.WithSharedCache(geolocation.NewRedisCache(rc, cfg.GeoCacheTTL)))
		log.Info("geo_shared_cache_enabled", "addr", cfg.RedisAddr)
	}
	resolver := geolocation.NewResolver(geocache.New(cfg.GeoCacheSize, cfg.GeoCacheTTL), provider, resolverOpts...)

	registry := location.NewRegistry(locationRepo, dbManager)
	generator := memegen.NewGenerator(
		memegen.NewChatClient(cfg.OpenAIURL, cfg.OpenAIKey, cfg.OpenAIModel),
		memegen.NewImgflipClient(cfg.ImgflipURL, cfg.ImgflipUsername, cfg.ImgflipPassword, nil),
	)
	memeService := meme.NewService(resolver, registry, generator, memeRepo, dbManager)
	galleryService := gallery.NewService(memeRepo)

	webHandler, err := web.NewWebHandler(memeService, galleryService, registry, resolver, cfg.SessionSecret)
	if err != nil {
		log.Error("web_handler_init_failed", "err", err)
		os.Exit(1)
	}
	router := webHandler.SetupRoutes()
	handler := middleware.LoggingMiddleware(log)(middleware.SetupCORS()(router))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server_listening", "port", cfg.Port, "database", cfg.DatabaseType, "geo_provider", provider.Name())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server_listen_failed", "err", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(server)
}

// openStore connects the configured backend and returns a factory plus a
// function that releases the connection.
func openStore(ctx context.Context, cfg *config.Config) (*db.RepositoryFactory, func(), error) {
	switch cfg.DatabaseType {
	case config.SQLite:
		sqliteDB, err := db.ConnectToSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.InitializeSchema(sqliteDB); err != nil {
			sqliteDB.Close()
			return nil, nil, err
		}
		return db.NewRepositoryFactory(sqliteDB, nil, nil, cfg.DatabaseName), func() { sqliteDB.Close() }, nil

	case config.MongoDB:
		client, err := db.ConnectToMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureMongoIndexes(ctx, client, cfg.DatabaseName); err != nil {
			logger.L().Warn("mongo_indexes_failed", "err", err)
		}
		return db.NewRepositoryFactory(nil, client, nil, cfg.DatabaseName), disconnectMongo(client), nil

	case config.Firestore:
		client, err := db.ConnectToFirestore(ctx, cfg.FirestoreProjectID, cfg.FirebaseCredentials)
		if err != nil {
			return nil, nil, err
		}
		return db.NewRepositoryFactory(nil, nil, client, cfg.DatabaseName), closeFirestore(client), nil
	}
	return nil, nil, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
}

func disconnectMongo(client *mongo.Client) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			logger.L().Warn("mongo_disconnect_failed", "err", err)
		}
	}
}

func closeFirestore(client *firestore.Client) func() {
	return func() {
		if err := client.Close(); err != nil {
			logger.L().Warn("firestore_close_failed", "err", err)
		}
	}
}

func openProvider(cfg *config.Config) (geolocation.Provider, func(), error) {
	switch cfg.GeoProvider {
	case config.GeoProviderMaxMind:
		p, err := geolocation.OpenMaxMindProvider(cfg.GeoIPDBPath)
		if err != nil {
			return nil, nil, err
		}
		return p, closeQuietly(p), nil
	default:
		return geolocation.NewHTTPProvider(cfg.GeoAPIURL, nil), func() {}, nil
	}
}

func closeQuietly(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.L().Warn("close_failed", "err", err)
		}
	}
}

func waitForShutdown(server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	sig := <-stop
	logger.L().Info("shutdown_signal", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Error("server_shutdown_failed", "err", err)
		return
	}
	logger.L().Info("server_stopped")
}
