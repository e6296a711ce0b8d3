package testutils

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"memeatlas/db"
	"memeatlas/internal/config"
)

// SetupTestDatabase opens a schema-initialized SQLite database in a temp dir.
// It is closed when the test ends.
func SetupTestDatabase(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	testDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=10000&_foreign_keys=on")
	require.NoError(t, err)

	require.NoError(t, db.InitializeSchema(testDB))

	t.Cleanup(func() { testDB.Close() })
	return testDB
}

func SetupTestRepositoryFactory(t *testing.T) *db.RepositoryFactory {
	t.Helper()
	return db.NewRepositoryFactory(SetupTestDatabase(t), nil, nil, "memeatlas_test")
}

func GetTestConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		DatabaseType:    config.SQLite,
		SQLitePath:      ":memory:",
		DatabaseName:    "memeatlas_test",
		OpenAIKey:       "test-openai-key",
		OpenAIModel:     "gpt-test",
		ImgflipUsername: "test_user",
		ImgflipPassword: "test_password",
		GeoProvider:     config.GeoProviderHTTP,
		GeoCacheSize:    16,
		GeoCacheTTL:     time.Hour,
		SessionSecret:   "test_session_secret_for_testing_only",
	}
}
