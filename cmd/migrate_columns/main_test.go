package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fantasydb/database"
	"fantasydb/runner"
)

func legacyPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fantasy.db")
	db, err := database.NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.InitSchema(context.Background(), db, true))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&runner.App{Logger: zap.NewNop()})
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDefaultMigrationsAreIdempotent(t *testing.T) {
	path := legacyPath(t)

	out, err := run(t, "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "standings: таблицы нет")
	assert.Contains(t, out, "✓ Таблица создана: standings")
	assert.Contains(t, out, "✓ Колонка добавлена: players.active")
	assert.Contains(t, out, "добавлено колонок 5, создано таблиц 1")

	out, err = run(t, "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "- Колонка уже существует: players.active")
	assert.Contains(t, out, "добавлено колонок 0, создано таблиц 0")
}

func TestSingleColumnMigration(t *testing.T) {
	path := legacyPath(t)

	out, err := run(t, "--db", path, "--table", "players", "--column", "nickname", "--definition", "TEXT", "--index")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Колонка добавлена: players.nickname")

	db, err := database.OpenExisting(path, database.DBConfig{})
	require.NoError(t, err)
	defer db.Close()

	ok, err := database.ColumnExists(context.Background(), db, "players", "nickname")
	require.NoError(t, err)
	assert.True(t, ok)

	cols, err := database.IndexColumns(context.Background(), db, "idx_players_nickname")
	require.NoError(t, err)
	assert.Equal(t, []string{"nickname"}, cols)
}

func TestPartialFlagsRejected(t *testing.T) {
	path := legacyPath(t)
	_, err := run(t, "--db", path, "--table", "players", "--column", "nickname")
	assert.Error(t, err)
}

func TestMissingTableFails(t *testing.T) {
	path := legacyPath(t)
	_, err := run(t, "--db", path, "--table", "umpires", "--column", "crew", "--definition", "TEXT")
	assert.ErrorIs(t, err, database.ErrTableNotFound)
}
