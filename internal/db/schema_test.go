package db

import (
	"errors"
	"os"
	"testing"

	"github.com/EmpoweredVote/lots-backend/internal/config"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMigrate_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	boom := errors.New("boom")

	err := Migrate(nil,
		func(*gorm.DB) error { calls = append(calls, "owners"); return nil },
		func(*gorm.DB) error { calls = append(calls, "lots"); return boom },
		func(*gorm.DB) error { calls = append(calls, "parcels"); return nil },
	)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"owners", "lots"}, calls)
}

func TestConnect_RequiresDatabaseURL(t *testing.T) {
	_, err := Connect(config.Config{}, logger.NewNop())
	require.ErrorIs(t, err, config.ErrMissingDatabaseURL)
}

func TestWithSearchPath(t *testing.T) {
	assert.Equal(t, "postgres://u:p@localhost:5432/lots", WithSearchPath("postgres://u:p@localhost:5432/lots", ""))
	assert.Equal(t,
		"postgres://u:p@localhost:5432/lots?search_path=%22lots%22%2Cpublic&sslmode=disable",
		WithSearchPath("postgres://u:p@localhost:5432/lots?sslmode=disable", "lots"))
	assert.Equal(t,
		`host=localhost dbname=lots search_path='"lots",public'`,
		WithSearchPath("host=localhost dbname=lots ", "lots"))
}

// Requires a live Postgres; skipped when DATABASE_URL is not set.
func TestConnect_CreatesSchema(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	d, err := Connect(config.Config{DatabaseURL: dsn, DBSchema: "lots_test"}, logger.NewNop())
	require.NoError(t, err)

	var exists bool
	require.NoError(t, d.Raw(`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = ?)`, "lots_test").Scan(&exists).Error)
	assert.True(t, exists)
}
