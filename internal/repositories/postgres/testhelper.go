package postgres

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/asakaida/permcondition/internal/infrastructure/config"
	"github.com/asakaida/permcondition/internal/infrastructure/database"
	_ "github.com/lib/pq"
)

// SetupTestDB creates a test database connection and runs migrations.
// The test is skipped unless INTEGRATION is set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("INTEGRATION") == "" {
		t.Skip("Skipping integration test. Set INTEGRATION=1 to run")
	}

	// Initialize test config
	if err := config.InitConfig("test"); err != nil {
		t.Fatalf("Failed to init config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	pg, err := database.NewPostgres(context.Background(), &cfg.Database)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := pg.RunMigrations("../../../"+database.MigrationsDir, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return pg.DB
}

// CleanupTestDB closes the database connection and cleans up test data
func CleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()

	// Built-in roles are seeded by migrations and kept
	statements := []string{
		"DELETE FROM conditions",
		"DELETE FROM user_roles",
		"DELETE FROM role_permissions",
		"DELETE FROM roles WHERE id NOT IN ('anonymous', 'authenticated')",
		"DELETE FROM permissions",
		"DELETE FROM modules",
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Logf("Warning: Failed to clean up (%s): %v", stmt, err)
		}
	}

	if err := db.Close(); err != nil {
		t.Logf("Warning: Failed to close database: %v", err)
	}
}
