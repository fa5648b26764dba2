// Package diagnostics строит отчет о состоянии базы статистики.
// Все запросы только читают данные; PRAGMA foreign_keys читается, но не меняется.
package diagnostics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fantasydb/database"
)

// TableReport сведения об одной таблице
type TableReport struct {
	Name       string   `json:"name"`
	RowCount   int64    `json:"row_count"`
	PrimaryKey []string `json:"primary_key"`
	Indexes    []string `json:"indexes"`
	Triggers   []string `json:"triggers"`
}

// HasPrimaryKey объявлен ли у таблицы PRIMARY KEY
func (t TableReport) HasPrimaryKey() bool {
	return len(t.PrimaryKey) > 0
}

// SeasonCount распределение строк players по сезону
type SeasonCount struct {
	Season  int64 `json:"season"`
	Rows    int64 `json:"rows"`
	Players int64 `json:"players"`
}

// PlayerDiagnostics проверки таблицы players
type PlayerDiagnostics struct {
	Duplicates         database.DuplicateSummary `json:"duplicates"`
	DistinctKeys       int64                     `json:"distinct_keys"`
	NullKeyRows        int64                     `json:"null_key_rows"`
	SeasonDistribution []SeasonCount             `json:"season_distribution"`
}

// Report полный диагностический отчет
type Report struct {
	DatabasePath       string             `json:"database_path"`
	GeneratedAt        time.Time          `json:"generated_at"`
	ForeignKeysEnabled bool               `json:"foreign_keys_enabled"`
	Tables             []TableReport      `json:"tables"`
	Players            *PlayerDiagnostics `json:"players,omitempty"`
}

// Reporter собирает диагностический отчет
type Reporter struct {
	db          *database.DB
	logger      *zap.Logger
	sampleLimit int
}

// NewReporter создает построитель отчета
func NewReporter(db *database.DB, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{db: db, logger: logger, sampleLimit: database.DefaultSampleLimit}
}

// Build собирает отчет по всем таблицам
func (r *Reporter) Build(ctx context.Context) (*Report, error) {
	report := &Report{
		DatabasePath: r.db.Path(),
		GeneratedAt:  time.Now(),
	}

	fk, err := database.ForeignKeysEnabled(ctx, r.db)
	if err != nil {
		return nil, err
	}
	report.ForeignKeysEnabled = fk

	tables, err := database.ListTables(ctx, r.db)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Найдены таблицы", zap.Int("count", len(tables)))

	hasPlayers := false
	for _, name := range tables {
		tr, err := r.tableReport(ctx, name)
		if err != nil {
			return nil, err
		}
		report.Tables = append(report.Tables, tr)
		if name == database.PlayersTable {
			hasPlayers = true
		}
	}

	if hasPlayers {
		players, err := r.playerDiagnostics(ctx)
		if err != nil {
			return nil, err
		}
		report.Players = players
	}

	return report, nil
}

func (r *Reporter) tableReport(ctx context.Context, name string) (TableReport, error) {
	tr := TableReport{Name: name}

	count, err := database.CountRows(ctx, r.db, name)
	if err != nil {
		return tr, err
	}
	tr.RowCount = count

	pk, err := database.PrimaryKeyColumns(ctx, r.db, name)
	if err != nil {
		return tr, err
	}
	tr.PrimaryKey = pk

	objects, err := database.DependentObjects(ctx, r.db, name)
	if err != nil {
		return tr, err
	}
	for _, obj := range objects {
		switch obj.Type {
		case "index":
			tr.Indexes = append(tr.Indexes, obj.Name)
		case "trigger":
			tr.Triggers = append(tr.Triggers, obj.Name)
		}
	}
	return tr, nil
}

func (r *Reporter) playerDiagnostics(ctx context.Context) (*PlayerDiagnostics, error) {
	key := database.PlayersSpec().LogicalKey
	pd := &PlayerDiagnostics{}

	dups, err := database.FindDuplicates(ctx, r.db, database.PlayersTable, key, r.sampleLimit)
	if err != nil {
		return nil, err
	}
	pd.Duplicates = dups
	if dups.HasDuplicates() {
		r.logger.Warn("В players есть дубликаты (player_id, season)",
			zap.Int64("duplicate_groups", dups.Groups),
			zap.Int64("extra_rows", dups.ExtraRows))
	}

	if pd.DistinctKeys, err = database.CountDistinctKeys(ctx, r.db, database.PlayersTable, key); err != nil {
		return nil, err
	}
	if pd.NullKeyRows, err = database.CountNullKeys(ctx, r.db, database.PlayersTable, key); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT season, COUNT(*), COUNT(DISTINCT player_id)
		FROM players
		WHERE season IS NOT NULL
		GROUP BY season
		ORDER BY season
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get season distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sc SeasonCount
		if err := rows.Scan(&sc.Season, &sc.Rows, &sc.Players); err != nil {
			return nil, fmt.Errorf("failed to scan season distribution: %w", err)
		}
		pd.SeasonDistribution = append(pd.SeasonDistribution, sc)
	}
	return pd, rows.Err()
}
