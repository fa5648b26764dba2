package database

import (
	"context"
	"fmt"
)

const (
	// PlayersTable таблица сезонных записей игроков
	PlayersTable = "players"
)

func timestampColumns() []ColumnSpec {
	return []ColumnSpec{
		{Name: "created_at", Type: "TIMESTAMP", Default: "CURRENT_TIMESTAMP"},
		{Name: "updated_at", Type: "TIMESTAMP", Default: "CURRENT_TIMESTAMP"},
	}
}

func withTimestamps(columns ...ColumnSpec) []ColumnSpec {
	return append(columns, timestampColumns()...)
}

// PlayersSpec описание таблицы players (PlayerSeasonRecord).
// Логический ключ (player_id, season) в живых базах не объявлен PRIMARY KEY.
func PlayersSpec() TableSpec {
	return TableSpec{
		Name: PlayersTable,
		Columns: withTimestamps(
			ColumnSpec{Name: "player_id", Type: "INTEGER", NotNull: true},
			ColumnSpec{Name: "season", Type: "INTEGER", NotNull: true},
			ColumnSpec{Name: "full_name", Type: "TEXT", NotNull: true},
			ColumnSpec{Name: "first_name", Type: "TEXT"},
			ColumnSpec{Name: "last_name", Type: "TEXT"},
			ColumnSpec{Name: "birth_date", Type: "TEXT"},
			ColumnSpec{Name: "birth_city", Type: "TEXT"},
			ColumnSpec{Name: "birth_country", Type: "TEXT"},
			ColumnSpec{Name: "height", Type: "TEXT"},
			ColumnSpec{Name: "weight", Type: "INTEGER"},
			ColumnSpec{Name: "team_id", Type: "INTEGER"},
			ColumnSpec{Name: "team_name", Type: "TEXT"},
			ColumnSpec{Name: "primary_position", Type: "TEXT"},
			ColumnSpec{Name: "position_type", Type: "TEXT"},
			ColumnSpec{Name: "bat_side", Type: "TEXT"},
			ColumnSpec{Name: "pitch_hand", Type: "TEXT"},
			ColumnSpec{Name: "active", Type: "INTEGER", Default: "1", Migrated: true},
		),
		LogicalKey: []string{"player_id", "season"},
		Indexes: []IndexSpec{
			{Name: "idx_players_season", Columns: []string{"season"}},
			{Name: "idx_players_team_id", Columns: []string{"team_id"}},
			{Name: "idx_players_full_name", Columns: []string{"full_name"}},
		},
		Triggers: []TriggerSpec{UpdatedAtTrigger("update_players_timestamp")},
	}
}

// Tables все таблицы базы статистики в порядке создания
func Tables() []TableSpec {
	return []TableSpec{
		PlayersSpec(),
		{
			Name: "mlb_teams",
			Columns: withTimestamps(
				ColumnSpec{Name: "team_id", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "name", Type: "TEXT", NotNull: true},
				ColumnSpec{Name: "abbreviation", Type: "TEXT"},
				ColumnSpec{Name: "league", Type: "TEXT"},
				ColumnSpec{Name: "division", Type: "TEXT"},
				ColumnSpec{Name: "venue", Type: "TEXT"},
			),
			LogicalKey: []string{"team_id"},
			Indexes: []IndexSpec{
				{Name: "idx_mlb_teams_abbreviation", Columns: []string{"abbreviation"}},
			},
			Triggers: []TriggerSpec{UpdatedAtTrigger("update_mlb_teams_timestamp")},
		},
		{
			Name: "rosters",
			Columns: withTimestamps(
				ColumnSpec{Name: "fantasy_team_id", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "player_id", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "roster_slot", Type: "TEXT", Default: "'BN'"},
				ColumnSpec{Name: "acquired_at", Type: "TIMESTAMP"},
				ColumnSpec{Name: "season", Type: "INTEGER", Migrated: true},
			),
			LogicalKey: []string{"fantasy_team_id", "player_id"},
			Indexes: []IndexSpec{
				{Name: "idx_rosters_player_id", Columns: []string{"player_id"}},
				{Name: "idx_rosters_season", Columns: []string{"season"}},
			},
			Triggers: []TriggerSpec{UpdatedAtTrigger("update_rosters_timestamp")},
		},
		{
			Name: "mlb_games",
			Columns: withTimestamps(
				ColumnSpec{Name: "game_pk", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "season", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "game_date", Type: "TEXT"},
				ColumnSpec{Name: "home_team_id", Type: "INTEGER"},
				ColumnSpec{Name: "away_team_id", Type: "INTEGER"},
				ColumnSpec{Name: "home_score", Type: "INTEGER"},
				ColumnSpec{Name: "away_score", Type: "INTEGER"},
				ColumnSpec{Name: "status", Type: "TEXT"},
				ColumnSpec{Name: "game_type", Type: "TEXT", Default: "'R'", Migrated: true},
			),
			LogicalKey: []string{"game_pk"},
			Indexes: []IndexSpec{
				{Name: "idx_mlb_games_season", Columns: []string{"season"}},
				{Name: "idx_mlb_games_game_date", Columns: []string{"game_date"}},
				{Name: "idx_mlb_games_game_type", Columns: []string{"game_type"}},
			},
			Triggers: []TriggerSpec{UpdatedAtTrigger("update_mlb_games_timestamp")},
		},
		{
			Name: "standings",
			Columns: withTimestamps(
				ColumnSpec{Name: "season", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "team_id", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "wins", Type: "INTEGER", Default: "0"},
				ColumnSpec{Name: "losses", Type: "INTEGER", Default: "0"},
				ColumnSpec{Name: "games_back", Type: "REAL", Default: "0.0"},
				ColumnSpec{Name: "division_rank", Type: "INTEGER"},
			),
			LogicalKey: []string{"season", "team_id"},
			Indexes: []IndexSpec{
				{Name: "idx_standings_team_id", Columns: []string{"team_id"}},
			},
			Triggers: []TriggerSpec{UpdatedAtTrigger("update_standings_timestamp")},
			Migrated: true,
		},
		{
			Name: "season_stats",
			Columns: withTimestamps(
				ColumnSpec{Name: "player_id", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "season", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "games_played", Type: "INTEGER", Default: "0"},
				ColumnSpec{Name: "fantasy_points", Type: "REAL", Default: "0.0"},
			),
			LogicalKey: []string{"player_id", "season"},
			Indexes: []IndexSpec{
				{Name: "idx_season_stats_season", Columns: []string{"season"}},
			},
			Triggers: []TriggerSpec{UpdatedAtTrigger("update_season_stats_timestamp")},
		},
		{
			Name: "hitting_stats",
			Columns: withTimestamps(
				ColumnSpec{Name: "player_id", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "season", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "at_bats", Type: "INTEGER", Default: "0"},
				ColumnSpec{Name: "hits", Type: "INTEGER", Default: "0"},
				ColumnSpec{Name: "home_runs", Type: "INTEGER", Default: "0"},
				ColumnSpec{Name: "rbi", Type: "INTEGER", Default: "0"},
				ColumnSpec{Name: "stolen_bases", Type: "INTEGER", Default: "0"},
				ColumnSpec{Name: "batting_avg", Type: "REAL"},
				ColumnSpec{Name: "obp", Type: "REAL"},
				ColumnSpec{Name: "slg", Type: "REAL"},
				ColumnSpec{Name: "ops", Type: "REAL", Migrated: true},
			),
			LogicalKey: []string{"player_id", "season"},
			Indexes: []IndexSpec{
				{Name: "idx_hitting_stats_season", Columns: []string{"season"}},
			},
			Triggers: []TriggerSpec{UpdatedAtTrigger("update_hitting_stats_timestamp")},
		},
		{
			Name: "pitching_stats",
			Columns: withTimestamps(
				ColumnSpec{Name: "player_id", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "season", Type: "INTEGER", NotNull: true},
				ColumnSpec{Name: "innings_pitched", Type: "REAL", Default: "0.0"},
				ColumnSpec{Name: "wins", Type: "INTEGER", Default: "0"},
				ColumnSpec{Name: "losses", Type: "INTEGER", Default: "0"},
				ColumnSpec{Name: "saves", Type: "INTEGER", Default: "0"},
				ColumnSpec{Name: "strikeouts", Type: "INTEGER", Default: "0"},
				ColumnSpec{Name: "era", Type: "REAL"},
				ColumnSpec{Name: "whip", Type: "REAL", Migrated: true},
			),
			LogicalKey: []string{"player_id", "season"},
			Indexes: []IndexSpec{
				{Name: "idx_pitching_stats_season", Columns: []string{"season"}},
			},
			Triggers: []TriggerSpec{UpdatedAtTrigger("update_pitching_stats_timestamp")},
		},
	}
}

// LookupTable ищет описание таблицы по имени
func LookupTable(name string) (TableSpec, bool) {
	for _, spec := range Tables() {
		if spec.Name == name {
			return spec, true
		}
	}
	return TableSpec{}, false
}

// InitSchema создает все таблицы, индексы и триггеры (IF NOT EXISTS).
// В legacy-режиме воспроизводится схема живой базы: players без составного
// ключа, без таблиц и колонок, которые добавляются миграциями.
func InitSchema(ctx context.Context, q Queryer, legacy bool) error {
	for _, spec := range Tables() {
		if legacy && spec.Migrated {
			continue
		}

		enforceKey := !(legacy && spec.Name == PlayersTable)
		if _, err := q.ExecContext(ctx, spec.createSQL(spec.Name, enforceKey, true, legacy)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", spec.Name, err)
		}

		for _, idx := range spec.Indexes {
			if legacy && indexUsesMigratedColumn(spec, idx) {
				continue
			}
			if _, err := q.ExecContext(ctx, idx.SQL(spec.Name)); err != nil {
				return fmt.Errorf("failed to create index %s: %w", idx.Name, err)
			}
		}

		for _, stmt := range spec.TriggerSQL(spec.Name) {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create trigger on %s: %w", spec.Name, err)
			}
		}
	}
	return nil
}

func indexUsesMigratedColumn(spec TableSpec, idx IndexSpec) bool {
	for _, name := range idx.Columns {
		if col, ok := spec.Column(name); ok && col.Migrated {
			return true
		}
	}
	return false
}
