package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fantasydb/database"
	"fantasydb/diagnostics"
	"fantasydb/runner"
)

func seededPath(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fantasy.db")
	db, err := database.NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.InitSchema(ctx, db, true))
	_, err = database.SeedPlayers(ctx, db, database.SeedOptions{Players: 2, Seasons: []int{2024}, Duplicates: 1})
	require.NoError(t, err)
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

func TestDiagnoseText(t *testing.T) {
	path := seededPath(t)

	out, err := run(t, "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ДИАГНОСТИКА БАЗЫ: "+path)
	assert.Contains(t, out, "Дублирующихся ключей: 1")
	assert.Contains(t, out, "2024: 3 строк, 2 игроков")
}

func TestDiagnoseJSON(t *testing.T) {
	path := seededPath(t)

	out, err := run(t, "--db", path, "--json")
	require.NoError(t, err)

	var report diagnostics.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.NotNil(t, report.Players)
	assert.EqualValues(t, 1, report.Players.Duplicates.Groups)
	assert.NotEmpty(t, report.Tables)
}

func TestDiagnoseMissingDatabase(t *testing.T) {
	_, err := run(t, "--db", filepath.Join(t.TempDir(), "missing.db"))
	assert.ErrorIs(t, err, database.ErrDatabaseNotFound)
}
