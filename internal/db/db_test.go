package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSqliteDB_Memory(t *testing.T) {
	conn, err := NewSqliteDB()
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT);")
	require.NoError(t, err)

	// pinned to one connection, so the table stays visible
	var n int
	require.NoError(t, conn.Get(&n, "SELECT COUNT(*) FROM t"))
	assert.Equal(t, 0, n)
}

func TestNewSqliteDB_FileCreatesParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	conn, err := NewSqliteDB(WithPath(path))
	require.NoError(t, err)
	defer conn.Close()

	assert.FileExists(t, path)
}

func TestNewSqliteDB_Migrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "schema.db")
	v1 := "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT);"
	v2 := "ALTER TABLE kv ADD COLUMN updated_at TEXT;"

	conn, err := NewSqliteDB(WithPath(path), WithMaxOpenConns(1), WithMigrations(v1))
	require.NoError(t, err)
	version, err := SchemaVersion(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	_, err = conn.Exec("INSERT INTO kv (k, v) VALUES ('a', 'b')")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// reopening applies only the new step and keeps the data
	conn, err = NewSqliteDB(WithPath(path), WithMigrations(v1, v2))
	require.NoError(t, err)
	defer conn.Close()

	version, err = SchemaVersion(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	var v string
	require.NoError(t, conn.Get(&v, "SELECT v FROM kv WHERE k = 'a' AND updated_at IS NULL"))
	assert.Equal(t, "b", v)
}

func TestNewSqliteDB_BadMigration(t *testing.T) {
	_, err := NewSqliteDB(WithMigrations("CREATE TABLE ("))
	assert.ErrorContains(t, err, "migration 1")
}

func TestNewSqliteDB_CustomPragmas(t *testing.T) {
	conn, err := NewSqliteDB(WithPragmas("PRAGMA foreign_keys=OFF;"))
	require.NoError(t, err)
	defer conn.Close()

	var fk int
	require.NoError(t, conn.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 0, fk)
}
