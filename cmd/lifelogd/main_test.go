package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aschepis/backscratcher/lifelog/config"
	"github.com/aschepis/backscratcher/lifelog/memory"

	_ "github.com/mattn/go-sqlite3"
)

func TestListen_TCP(t *testing.T) {
	l, cleanup, err := listen("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()
	defer l.Close()
	assert.Equal(t, "tcp", l.Addr().Network())
}

func TestListen_UnixSocketIsRemoved(t *testing.T) {
	dir, err := os.MkdirTemp("", "lld")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "d.sock")

	// a stale file from a previous run must not block startup
	require.NoError(t, os.WriteFile(socket, nil, 0o600))

	l, cleanup, err := listen("unix://"+socket, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "unix", l.Addr().Network())
	_ = l.Close()
	cleanup()

	_, err = os.Stat(socket)
	assert.True(t, os.IsNotExist(err))
}

func TestNewBlobStore_DefaultsToSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	cfg := config.DefaultServerConfig()
	blobs, err := newBlobStore(context.Background(), &cfg, db, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &memory.SQLBlobStore{}, blobs)
}

func TestOpenDatabase_RunsMigrations(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	cfg := config.DefaultServerConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "nested", "lifelog.db")
	cfg.Database.Migrations = filepath.Join(cwd, "..", "..", "migrations")

	db, err := openDatabase(&cfg, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	store := memory.NewStore(db, nil, zerolog.Nop())
	mems, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mems)
}
