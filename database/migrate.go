package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// ColumnMigration добавление колонки (и, при необходимости, индекса) в существующую таблицу
type ColumnMigration struct {
	Table      string
	Column     string
	Definition string
	Index      *IndexSpec
}

func (m ColumnMigration) String() string {
	return m.Table + "." + m.Column
}

// MigrateColumn идемпотентно добавляет колонку. Если колонка уже есть,
// ALTER TABLE не выполняется и возвращается applied=false; индекс при этом
// все равно создается (IF NOT EXISTS).
func MigrateColumn(ctx context.Context, q Queryer, m ColumnMigration) (bool, error) {
	if err := validateIdentifiers(m.Table, m.Column); err != nil {
		return false, err
	}

	exists, err := TableExists(ctx, q, m.Table)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("%w: %s", ErrTableNotFound, m.Table)
	}

	hasColumn, err := ColumnExists(ctx, q, m.Table, m.Column)
	if err != nil {
		return false, err
	}

	applied := false
	if !hasColumn {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(m.Table), quoteIdent(m.Column), m.Definition)
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("failed to add column %s: %w", m, err)
		}
		applied = true
	}

	if m.Index != nil {
		if err := ValidateIdentifier(m.Index.Name); err != nil {
			return applied, err
		}
		if _, err := q.ExecContext(ctx, m.Index.SQL(m.Table)); err != nil {
			return applied, fmt.Errorf("failed to create index %s: %w", m.Index.Name, err)
		}
	}

	return applied, nil
}

// EnsureTable создает таблицу вместе с индексами и триггерами, если ее нет
func EnsureTable(ctx context.Context, q Queryer, spec TableSpec) (bool, error) {
	if err := spec.Validate(); err != nil {
		return false, err
	}
	exists, err := TableExists(ctx, q, spec.Name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if _, err := q.ExecContext(ctx, spec.CreateSQL(spec.Name, true)); err != nil {
		return false, fmt.Errorf("failed to create table %s: %w", spec.Name, err)
	}
	stmts := append(spec.IndexSQL(spec.Name), spec.TriggerSQL(spec.Name)...)
	for _, stmt := range stmts {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("failed to create dependent object of %s: %w", spec.Name, err)
		}
	}
	return true, nil
}

// DefaultMigrations миграции колонок, помеченных в реестре как Migrated.
// Индекс подключается, если в описании есть индекс ровно по этой колонке.
func DefaultMigrations() []ColumnMigration {
	var migrations []ColumnMigration
	for _, spec := range Tables() {
		if spec.Migrated {
			continue
		}
		for _, col := range spec.Columns {
			if !col.Migrated {
				continue
			}
			m := ColumnMigration{Table: spec.Name, Column: col.Name, Definition: col.Definition()}
			for _, idx := range spec.Indexes {
				if len(idx.Columns) == 1 && idx.Columns[0] == col.Name {
					idx := idx
					m.Index = &idx
					break
				}
			}
			migrations = append(migrations, m)
		}
	}
	return migrations
}

// DefaultTableMigrations таблицы, которые появляются миграцией
func DefaultTableMigrations() []TableSpec {
	var tables []TableSpec
	for _, spec := range Tables() {
		if spec.Migrated {
			tables = append(tables, spec)
		}
	}
	return tables
}

// MigrationReport итог запуска миграций
type MigrationReport struct {
	AppliedColumns []string
	SkippedColumns []string
	CreatedTables  []string
	ExistingTables []string
}

// RunMigrations выполняет миграции таблиц и колонок в одной транзакции
func RunMigrations(ctx context.Context, db *DB, logger *zap.Logger, columns []ColumnMigration, tables []TableSpec) (*MigrationReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := &MigrationReport{}

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, spec := range tables {
			created, err := EnsureTable(ctx, tx, spec)
			if err != nil {
				return err
			}
			if created {
				logger.Info("Таблица создана", zap.String("table", spec.Name))
				report.CreatedTables = append(report.CreatedTables, spec.Name)
			} else {
				logger.Info("Таблица уже существует", zap.String("table", spec.Name))
				report.ExistingTables = append(report.ExistingTables, spec.Name)
			}
		}

		for _, m := range columns {
			applied, err := MigrateColumn(ctx, tx, m)
			if err != nil {
				return err
			}
			if applied {
				logger.Info("Колонка добавлена", zap.String("column", m.String()))
				report.AppliedColumns = append(report.AppliedColumns, m.String())
			} else {
				logger.Info("Колонка уже существует", zap.String("column", m.String()))
				report.SkippedColumns = append(report.SkippedColumns, m.String())
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return report, nil
}
