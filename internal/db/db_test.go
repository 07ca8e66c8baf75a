package db

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		body, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(e.Name(), ".sql"), e.Name())
		require.Contains(t, string(body), "-- +goose Up", e.Name())
		require.Contains(t, string(body), "-- +goose Down", e.Name())
	}
}

func TestDialect(t *testing.T) {
	require.Equal(t, "sqlite3", dialect("sqlite"))
	require.Equal(t, "postgres", dialect("pgx"))
	require.Equal(t, "mysql", dialect("mysql"))
}

func TestEnsureDataDir(t *testing.T) {
	root := t.TempDir()
	conn := filepath.Join(root, "nested", "thrive.db") + "?_pragma=foreign_keys(1)"

	require.NoError(t, ensureDataDir(conn))

	info, err := os.Stat(filepath.Join(root, "nested"))
	require.NoError(t, err)
	require.True(t, info.IsDir())

	require.NoError(t, ensureDataDir(":memory:"))
}
