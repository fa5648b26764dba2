package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioSpec() TableSpec {
	return TableSpec{
		Name: "scenario",
		Columns: []ColumnSpec{
			{Name: "id", Type: "INTEGER", NotNull: true},
			{Name: "season", Type: "INTEGER", NotNull: true},
			{Name: "name", Type: "TEXT"},
			{Name: "updated_at", Type: "TIMESTAMP", Default: "CURRENT_TIMESTAMP"},
		},
		LogicalKey: []string{"id", "season"},
		Indexes:    []IndexSpec{{Name: "idx_scenario_season", Columns: []string{"season"}}},
		Triggers:   []TriggerSpec{UpdatedAtTrigger("update_scenario_timestamp")},
	}
}

func newScenarioDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db := newTestDB(t)
	spec := scenarioSpec()

	_, err := db.ExecContext(ctx, spec.CreateSQL(spec.Name, false))
	require.NoError(t, err)
	for _, stmt := range append(spec.IndexSQL(spec.Name), spec.TriggerSQL(spec.Name)...) {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	_, err = db.ExecContext(ctx, `INSERT INTO scenario (id, season, name) VALUES
		(1, 2021, 'A'), (1, 2021, 'A-dup'), (2, 2021, 'B')`)
	require.NoError(t, err)
	return db
}

func TestRebuildConcreteScenario(t *testing.T) {
	ctx := context.Background()
	db := newScenarioDB(t)

	report, err := NewTableRebuilder(db, nil).Rebuild(ctx, scenarioSpec())
	require.NoError(t, err)

	assert.EqualValues(t, 3, report.RowsBefore)
	assert.EqualValues(t, 2, report.RowsCopied)
	assert.EqualValues(t, 2, report.RowsAfter)
	assert.EqualValues(t, 1, report.Duplicates.Groups)
	assert.EqualValues(t, 1, report.Duplicates.ExtraRows)
	require.Len(t, report.Duplicates.Sample, 1)
	assert.EqualValues(t, 2, report.Duplicates.Sample[0].Count)
	assert.Equal(t, "(1, 2021)", report.Duplicates.Sample[0].String())

	assert.EqualValues(t, 2, countRows(t, db, "scenario"))

	pk, err := PrimaryKeyColumns(ctx, db, "scenario")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "season"}, pk)

	// Остается строка с наименьшим rowid
	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM scenario WHERE id = 1 AND season = 2021").Scan(&name))
	assert.Equal(t, "A", name)
}

func TestRebuildPlayersDeduplicates(t *testing.T) {
	ctx := context.Background()
	db := newLegacyDB(t)

	inserted, err := SeedPlayers(ctx, db, SeedOptions{Players: 8, Seasons: []int{2023, 2024}, Duplicates: 5})
	require.NoError(t, err)
	require.EqualValues(t, 21, inserted)

	distinct, err := CountDistinctKeys(ctx, db, PlayersTable, []string{"player_id", "season"})
	require.NoError(t, err)
	require.EqualValues(t, 16, distinct)

	report, err := NewTableRebuilder(db, nil).Rebuild(ctx, PlayersSpec())
	require.NoError(t, err)

	assert.EqualValues(t, 21, report.RowsBefore)
	assert.EqualValues(t, 5, report.Duplicates.Groups)
	assert.EqualValues(t, 16, report.RowsAfter)
	assert.EqualValues(t, 16, countRows(t, db, PlayersTable))

	pk, err := PrimaryKeyColumns(ctx, db, PlayersTable)
	require.NoError(t, err)
	assert.Equal(t, []string{"player_id", "season"}, pk)

	var dups int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM players WHERE full_name LIKE '%(dup)'").Scan(&dups))
	assert.Zero(t, dups)

	// Уникальность теперь обеспечивается схемой
	_, err = db.Exec("INSERT INTO players (player_id, season, full_name) VALUES (660000, 2023, 'again')")
	assert.Error(t, err)
}

func TestRebuildKeepsIndexesAndTrigger(t *testing.T) {
	ctx := context.Background()
	db := newLegacyDB(t)
	_, err := SeedPlayers(ctx, db, SeedOptions{Duplicates: 2})
	require.NoError(t, err)

	before := objectNames(t, db, PlayersTable)
	beforeColumns := map[string][]string{}
	for _, idx := range PlayersSpec().Indexes {
		cols, err := IndexColumns(ctx, db, idx.Name)
		require.NoError(t, err)
		beforeColumns[idx.Name] = cols
	}

	_, err = NewTableRebuilder(db, nil).Rebuild(ctx, PlayersSpec())
	require.NoError(t, err)

	assert.Equal(t, before, objectNames(t, db, PlayersTable))
	for name, cols := range beforeColumns {
		after, err := IndexColumns(ctx, db, name)
		require.NoError(t, err)
		assert.Equal(t, cols, after, "index %s", name)
	}

	var tblName string
	require.NoError(t, db.QueryRow(
		"SELECT tbl_name FROM sqlite_master WHERE type='trigger' AND name='update_players_timestamp'").Scan(&tblName))
	assert.Equal(t, PlayersTable, tblName)

	// Триггер перезаписывает updated_at после любого UPDATE
	_, err = db.Exec(`UPDATE players SET team_name = 'Moved', updated_at = '2000-01-01 00:00:00'
		WHERE player_id = 660000 AND season = 2023`)
	require.NoError(t, err)
	var refreshed int
	require.NoError(t, db.QueryRow(
		"SELECT updated_at > '2000-01-02' FROM players WHERE player_id = 660000 AND season = 2023").Scan(&refreshed))
	assert.Equal(t, 1, refreshed)
}

func TestRebuildRollsBackOnInjectedFailure(t *testing.T) {
	for _, step := range []RebuildStep{StepDetect, StepCreate, StepCopy, StepSwap, StepRecreate} {
		t.Run(string(step), func(t *testing.T) {
			ctx := context.Background()
			db := newLegacyDB(t)
			_, err := SeedPlayers(ctx, db, SeedOptions{Duplicates: 3})
			require.NoError(t, err)

			tablesBefore, err := ListTables(ctx, db)
			require.NoError(t, err)
			infoBefore, err := TableInfo(ctx, db, PlayersTable)
			require.NoError(t, err)
			objectsBefore := objectNames(t, db, PlayersTable)
			rowsBefore := countRows(t, db, PlayersTable)

			injected := errors.New("injected failure")
			rebuilder := NewTableRebuilder(db, nil, WithStepHook(func(_ context.Context, s RebuildStep) error {
				if s == step {
					return injected
				}
				return nil
			}))

			_, err = rebuilder.Rebuild(ctx, PlayersSpec())
			require.Error(t, err)
			assert.ErrorIs(t, err, injected)
			var stepErr *StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, step, stepErr.Step)

			tablesAfter, err := ListTables(ctx, db)
			require.NoError(t, err)
			assert.Equal(t, tablesBefore, tablesAfter)

			infoAfter, err := TableInfo(ctx, db, PlayersTable)
			require.NoError(t, err)
			assert.Equal(t, infoBefore, infoAfter)
			assert.Equal(t, objectsBefore, objectNames(t, db, PlayersTable))
			assert.Equal(t, rowsBefore, countRows(t, db, PlayersTable))

			pk, err := PrimaryKeyColumns(ctx, db, PlayersTable)
			require.NoError(t, err)
			assert.Empty(t, pk)
		})
	}
}

func TestRebuildRejectsNullKeys(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, err := db.Exec(`CREATE TABLE scenario (id INTEGER, season INTEGER, name TEXT, updated_at TIMESTAMP)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO scenario (id, season, name) VALUES (1, 2021, 'A'), (2, NULL, 'B')`)
	require.NoError(t, err)

	_, err = NewTableRebuilder(db, nil).Rebuild(ctx, scenarioSpec())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNullKey)
	assert.EqualValues(t, 2, countRows(t, db, "scenario"))
}

func TestRebuildRejectsSchemaDrift(t *testing.T) {
	ctx := context.Background()
	db := newLegacyDB(t)
	_, err := db.Exec("ALTER TABLE players ADD COLUMN nickname TEXT")
	require.NoError(t, err)

	_, err = NewTableRebuilder(db, nil).Rebuild(ctx, PlayersSpec())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaDrift)
	assert.Contains(t, err.Error(), "nickname")

	exists, err := ColumnExists(ctx, db, PlayersTable, "nickname")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRebuildMissingTable(t *testing.T) {
	db := newTestDB(t)

	_, err := NewTableRebuilder(db, nil).Rebuild(context.Background(), PlayersSpec())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestRebuildReplaysUndeclaredObjects(t *testing.T) {
	ctx := context.Background()
	db := newLegacyDB(t)
	_, err := SeedPlayers(ctx, db, SeedOptions{Duplicates: 1})
	require.NoError(t, err)
	_, err = db.Exec("CREATE INDEX idx_players_last_name ON players(last_name)")
	require.NoError(t, err)

	report, err := NewTableRebuilder(db, nil).Rebuild(ctx, PlayersSpec())
	require.NoError(t, err)

	assert.Equal(t, []string{"idx_players_last_name"}, report.ReplayedObjects)
	assert.Contains(t, report.Indexes, "idx_players_last_name")
	cols, err := IndexColumns(ctx, db, "idx_players_last_name")
	require.NoError(t, err)
	assert.Equal(t, []string{"last_name"}, cols)
}

func TestRebuildFillsMigratedColumnDefaults(t *testing.T) {
	ctx := context.Background()
	db := newLegacyDB(t)
	_, err := SeedPlayers(ctx, db, SeedOptions{Players: 2, Seasons: []int{2024}})
	require.NoError(t, err)

	_, err = NewTableRebuilder(db, nil).Rebuild(ctx, PlayersSpec())
	require.NoError(t, err)

	var active int
	require.NoError(t, db.QueryRow("SELECT MIN(active) FROM players").Scan(&active))
	assert.Equal(t, 1, active)
}

func TestRebuildTwiceIsStable(t *testing.T) {
	ctx := context.Background()
	db := newLegacyDB(t)
	_, err := SeedPlayers(ctx, db, SeedOptions{Duplicates: 4})
	require.NoError(t, err)

	first, err := NewTableRebuilder(db, nil).Rebuild(ctx, PlayersSpec())
	require.NoError(t, err)
	second, err := NewTableRebuilder(db, nil).Rebuild(ctx, PlayersSpec())
	require.NoError(t, err)

	assert.False(t, second.Duplicates.HasDuplicates())
	assert.Equal(t, first.RowsAfter, second.RowsAfter)
	assert.Equal(t, second.RowsBefore, second.RowsAfter)
}

func TestRebuildRestoresForeignKeys(t *testing.T) {
	ctx := context.Background()
	db := newLegacyDB(t)
	_, err := db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	_, err = SeedPlayers(ctx, db, SeedOptions{Duplicates: 1})
	require.NoError(t, err)

	report, err := NewTableRebuilder(db, nil).Rebuild(ctx, PlayersSpec())
	require.NoError(t, err)
	assert.Zero(t, report.ForeignKeyViolations)

	enabled, err := ForeignKeysEnabled(ctx, db)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestRebuildStagingNameUsesRunID(t *testing.T) {
	ctx := context.Background()
	db := newScenarioDB(t)

	report, err := NewTableRebuilder(db, nil, WithRunID("ABCDEF12-3456")).Rebuild(ctx, scenarioSpec())
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF12-3456", report.RunID)
	assert.Equal(t, "scenario_rebuild_abcdef12", report.StagingTable)

	tables, err := ListTables(ctx, db)
	require.NoError(t, err)
	for _, name := range tables {
		assert.False(t, strings.Contains(name, "_rebuild_"), "staging table %s left behind", name)
	}
}

func TestSpecFromLive(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, err := db.Exec(`CREATE TABLE box_scores (game_pk INTEGER, team_id INTEGER, runs INTEGER DEFAULT 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE INDEX idx_box_scores_team ON box_scores(team_id)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO box_scores VALUES (1, 10, 3), (1, 10, 4), (1, 20, 2)`)
	require.NoError(t, err)

	spec, err := SpecFromLive(ctx, db, "box_scores", []string{"game_pk", "team_id"})
	require.NoError(t, err)
	col, ok := spec.Column("game_pk")
	require.True(t, ok)
	assert.True(t, col.NotNull)

	report, err := NewTableRebuilder(db, nil).Rebuild(ctx, spec)
	require.NoError(t, err)
	assert.EqualValues(t, 2, report.RowsAfter)
	assert.Equal(t, []string{"idx_box_scores_team"}, report.ReplayedObjects)

	pk, err := PrimaryKeyColumns(ctx, db, "box_scores")
	require.NoError(t, err)
	assert.Equal(t, []string{"game_pk", "team_id"}, pk)
}
