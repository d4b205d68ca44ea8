package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/clubtrack/attendance-backend-go/internal/pkg/database"
)

// TestDatabaseSetup holds the integration test database
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and applies the schema.
// Tests are skipped when the variable is unset.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolConfig{MaxConns: 4})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	setup := &TestDatabaseSetup{DB: db}
	if err := setup.TruncateAllTables(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to truncate test database: %v", err)
	}
	t.Cleanup(setup.Close)
	return setup
}

// TruncateAllTables removes every row from the attendance tables
func (s *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"attendance_sessions",
		"day_status",
		"clubs",
	}

	for _, table := range tables {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// InsertClub creates a club and returns its ID. Nil coordinates leave the boundary unset.
func (s *TestDatabaseSetup) InsertClub(ctx context.Context, lat, lng, radius *float64) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO clubs (name, boundary_lat, boundary_lng, boundary_radius)
		VALUES ('Test Club', $1, $2, $3)
		RETURNING id
	`, lat, lng, radius).Scan(&id)
	return id, err
}

func (s *TestDatabaseSetup) Close() {
	s.DB.Close()
}
