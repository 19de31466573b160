package migrations

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunMigrations_Embedded(t *testing.T) {
	db := openDB(t)
	require.NoError(t, RunMigrations(db, "", zerolog.Nop()))
	// second run is a no-op
	require.NoError(t, RunMigrations(db, "", zerolog.Nop()))

	for _, table := range []string{"memories", "model_configs", "exchanges"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestRunMigrations_Directory(t *testing.T) {
	db := openDB(t)
	require.NoError(t, RunMigrations(db, ".", zerolog.Nop()))
}

func TestRunMigrations_MissingDirectory(t *testing.T) {
	db := openDB(t)
	assert.Error(t, RunMigrations(db, "/nonexistent/migrations", zerolog.Nop()))
}
