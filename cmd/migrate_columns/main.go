// migrate_columns добавляет новые колонки и таблицы в существующую базу.
// Повторный запуск ничего не меняет.
package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"fantasydb/database"
	"fantasydb/runner"
)

func main() {
	runner.Execute(context.Background(), newRootCmd(&runner.App{}))
}

type migrationFlags struct {
	table      string
	column     string
	definition string
	index      bool
}

func newRootCmd(app *runner.App) *cobra.Command {
	var f migrationFlags

	cmd := &cobra.Command{
		Use:   "migrate_columns",
		Short: "Идемпотентно добавляет колонки и таблицы схемы",
		Long: "Без флагов применяет все миграции реестра схемы.\n" +
			"С --table/--column/--definition добавляет одну колонку.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			columns, tables, err := f.plan()
			if err != nil {
				return err
			}
			return app.WithDatabase(func(db *database.DB) error {
				return runMigrations(cmd.Context(), cmd.OutOrStdout(), app, db, columns, tables)
			})
		},
	}

	cmd.Flags().StringVar(&f.table, "table", "", "таблица для добавления колонки")
	cmd.Flags().StringVar(&f.column, "column", "", "имя новой колонки")
	cmd.Flags().StringVar(&f.definition, "definition", "", "тип и ограничения колонки, например \"INTEGER DEFAULT 1\"")
	cmd.Flags().BoolVar(&f.index, "index", false, "создать индекс idx_<table>_<column>")
	app.Bind(cmd)
	return cmd
}

// plan собирает список миграций из флагов или из реестра
func (f migrationFlags) plan() ([]database.ColumnMigration, []database.TableSpec, error) {
	if f.table == "" && f.column == "" && f.definition == "" {
		return database.DefaultMigrations(), database.DefaultTableMigrations(), nil
	}
	if f.table == "" || f.column == "" || f.definition == "" {
		return nil, nil, fmt.Errorf("--table, --column and --definition must be set together")
	}

	m := database.ColumnMigration{Table: f.table, Column: f.column, Definition: f.definition}
	if f.index {
		m.Index = &database.IndexSpec{
			Name:    "idx_" + f.table + "_" + f.column,
			Columns: []string{f.column},
		}
	}
	return []database.ColumnMigration{m}, nil, nil
}

func runMigrations(ctx context.Context, out io.Writer, app *runner.App, db *database.DB,
	columns []database.ColumnMigration, tables []database.TableSpec) error {
	fmt.Fprintf(out, "Миграция базы: %s\n\n", db.Path())

	affected := affectedTables(columns, tables)

	fmt.Fprintln(out, "[1/3] Структура до миграции")
	for _, table := range affected {
		if err := printTableInfo(ctx, out, db, table); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "\n[2/3] Применение миграций")
	report, err := database.RunMigrations(ctx, db, app.Logger, columns, tables)
	if err != nil {
		return err
	}
	for _, name := range report.CreatedTables {
		fmt.Fprintf(out, "  ✓ Таблица создана: %s\n", name)
	}
	for _, name := range report.ExistingTables {
		fmt.Fprintf(out, "  - Таблица уже существует: %s\n", name)
	}
	for _, name := range report.AppliedColumns {
		fmt.Fprintf(out, "  ✓ Колонка добавлена: %s\n", name)
	}
	for _, name := range report.SkippedColumns {
		fmt.Fprintf(out, "  - Колонка уже существует: %s\n", name)
	}

	fmt.Fprintln(out, "\n[3/3] Структура после миграции")
	for _, table := range affected {
		if err := printTableInfo(ctx, out, db, table); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\n✓ Миграция завершена: добавлено колонок %d, создано таблиц %d\n",
		len(report.AppliedColumns), len(report.CreatedTables))
	return nil
}

func affectedTables(columns []database.ColumnMigration, tables []database.TableSpec) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range columns {
		if !seen[m.Table] {
			seen[m.Table] = true
			names = append(names, m.Table)
		}
	}
	for _, spec := range tables {
		if !seen[spec.Name] {
			seen[spec.Name] = true
			names = append(names, spec.Name)
		}
	}
	sort.Strings(names)
	return names
}

// printTableInfo выводит PRAGMA table_info; отсутствующая таблица не ошибка
func printTableInfo(ctx context.Context, out io.Writer, db *database.DB, table string) error {
	exists, err := database.TableExists(ctx, db, table)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Fprintf(out, "  %s: таблицы нет\n", table)
		return nil
	}

	columns, err := database.TableInfo(ctx, db, table)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  %s:\n", table)
	for _, col := range columns {
		notNull := ""
		if col.NotNull {
			notNull = " NOT NULL"
		}
		dflt := ""
		if col.DefaultValue.Valid {
			dflt = " DEFAULT " + col.DefaultValue.String
		}
		pk := ""
		if col.PK > 0 {
			pk = fmt.Sprintf(" PK#%d", col.PK)
		}
		fmt.Fprintf(out, "    %2d %-20s %s%s%s%s\n", col.CID, col.Name, col.Type, notNull, dflt, pk)
	}
	return nil
}
