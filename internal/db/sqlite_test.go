package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("/tmp/runs.sqlite")

	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_synchronous=NORMAL")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.True(t, strings.HasPrefix(dsn, "/tmp/runs.sqlite?"))
}

func TestOpenSQLite_CreatesDirectoryAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "runs.sqlite")
	db, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", strings.ToLower(journalMode))

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'prepare_runs'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "prepare_runs", name)

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestOpenSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.sqlite")
	db, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO prepare_runs (id, dataset, path, sample_size, status, started_at)
		VALUES ('r1', 'kuka', '/data', 10, 'RUNNING', '2026-01-01T00:00:00Z')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM prepare_runs").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestOpenTestSQLite(t *testing.T) {
	db := OpenTestSQLite(t)
	_, err := db.Exec(`INSERT INTO prepare_runs (id, dataset, path, sample_size, status, started_at)
		VALUES ('r1', 'kuka', '/data', 10, 'UNKNOWN', '2026-01-01T00:00:00Z')`)
	assert.Error(t, err, "status is constrained")
}
