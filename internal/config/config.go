package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type DatabaseType string

const (
	SQLite    DatabaseType = "sqlite"
	MongoDB   DatabaseType = "mongodb"
	Firestore DatabaseType = "firestore"
)

type GeoProvider string

const (
	GeoProviderHTTP    GeoProvider = "http"
	GeoProviderMaxMind GeoProvider = "maxmind"
)

type Config struct {
	Port         string
	DatabaseType DatabaseType
	DatabaseName string
	// SQLite config
	SQLitePath string
	// MongoDB config
	MongoURI string
	// Firestore config
	FirestoreProjectID  string
	FirebaseCredentials string
	// Language model
	OpenAIKey   string
	OpenAIModel string
	OpenAIURL   string
	// Imgflip
	ImgflipUsername string
	ImgflipPassword string
	ImgflipURL      string
	// Geolocation
	GeoProvider  GeoProvider
	GeoAPIURL    string
	GeoIPDBPath  string
	GeoCacheSize int
	GeoCacheTTL  time.Duration
	// Optional shared geolocation tier
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionSecret string
}

// LoadDatabaseConfig reads only the storage settings, for tools that touch the
// database without serving requests.
func LoadDatabaseConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}
	return loadDatabase()
}

func loadDatabase() (*Config, error) {
	databaseName := envOr("DATABASE_NAME", "memeatlas")

	config := &Config{
		DatabaseType:        DatabaseType(envOr("DATABASE_TYPE", string(SQLite))),
		DatabaseName:        databaseName,
		SQLitePath:          envOr("SQLITE_PATH", filepath.Join("data", fmt.Sprintf("%s.db", databaseName))),
		MongoURI:            os.Getenv("MONGODB_URI"),
		FirestoreProjectID:  os.Getenv("FIRESTORE_PROJECT_ID"),
		FirebaseCredentials: os.Getenv("FIREBASE_CREDENTIALS"),
	}

	switch config.DatabaseType {
	case SQLite:
	case MongoDB:
		if config.MongoURI == "" {
			return nil, errors.New("MONGODB_URI is not set")
		}
	case Firestore:
		if config.FirestoreProjectID == "" {
			return nil, errors.New("FIRESTORE_PROJECT_ID is not set")
		}
	default:
		return nil, fmt.Errorf("unsupported DATABASE_TYPE: %s", config.DatabaseType)
	}

	return config, nil
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	config, err := loadDatabase()
	if err != nil {
		return nil, err
	}

	cacheSize, err := strconv.Atoi(envOr("GEO_CACHE_SIZE", "1000"))
	if err != nil || cacheSize <= 0 {
		return nil, fmt.Errorf("GEO_CACHE_SIZE must be a positive integer")
	}

	cacheTTL, err := time.ParseDuration(envOr("GEO_CACHE_TTL", "1h"))
	if err != nil || cacheTTL <= 0 {
		return nil, fmt.Errorf("GEO_CACHE_TTL must be a positive duration")
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			redisDB = n
		}
	}

	config.Port = envOr("PORT", "8080")
	config.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	config.OpenAIModel = envOr("OPENAI_MODEL", "gpt-3.5-turbo")
	config.OpenAIURL = envOr("OPENAI_URL", "https://api.openai.com/v1/chat/completions")
	config.ImgflipUsername = os.Getenv("IMGFLIP_USERNAME")
	config.ImgflipPassword = os.Getenv("IMGFLIP_PASSWORD")
	config.ImgflipURL = envOr("IMGFLIP_URL", "https://api.imgflip.com")
	config.GeoProvider = GeoProvider(envOr("GEO_PROVIDER", string(GeoProviderHTTP)))
	config.GeoAPIURL = envOr("GEO_API_URL", "http://ip-api.com/json/")
	config.GeoIPDBPath = os.Getenv("GEOIP_DB_PATH")
	config.GeoCacheSize = cacheSize
	config.GeoCacheTTL = cacheTTL
	config.RedisAddr = os.Getenv("REDIS_ADDR")
	config.RedisPassword = os.Getenv("REDIS_PASSWORD")
	config.RedisDB = redisDB
	config.SessionSecret = os.Getenv("SESSION_SECRET")

	if config.OpenAIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	if config.ImgflipUsername == "" || config.ImgflipPassword == "" {
		return nil, errors.New("IMGFLIP_USERNAME or IMGFLIP_PASSWORD is not set")
	}
	if config.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is not set")
	}

	switch config.GeoProvider {
	case GeoProviderHTTP:
	case GeoProviderMaxMind:
		if config.GeoIPDBPath == "" {
			return nil, errors.New("GEOIP_DB_PATH is not set")
		}
	default:
		return nil, fmt.Errorf("unsupported GEO_PROVIDER: %s", config.GeoProvider)
	}

	return config, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
