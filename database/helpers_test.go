package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestDB открывает временную файловую базу
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// newLegacyDB база со схемой живого хранилища (players без составного ключа)
func newLegacyDB(t *testing.T) *DB {
	t.Helper()
	db := newTestDB(t)
	require.NoError(t, InitSchema(context.Background(), db, true))
	return db
}

func objectNames(t *testing.T, db *DB, table string) []string {
	t.Helper()
	objects, err := DependentObjects(context.Background(), db, table)
	require.NoError(t, err)
	names := make([]string, len(objects))
	for i, obj := range objects {
		names[i] = obj.Type + ":" + obj.Name
	}
	return names
}

func countRows(t *testing.T, db *DB, table string) int64 {
	t.Helper()
	n, err := CountRows(context.Background(), db, table)
	require.NoError(t, err)
	return n
}
