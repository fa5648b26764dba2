// rebuild_table пересобирает таблицу с составным PRIMARY KEY,
// удаляя дубликаты логического ключа (остается строка с наименьшим rowid).
package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fantasydb/database"
	"fantasydb/runner"
)

func main() {
	runner.Execute(context.Background(), newRootCmd(&runner.App{}))
}

func newRootCmd(app *runner.App) *cobra.Command {
	var (
		table  string
		key    []string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "rebuild_table",
		Short: "Удаляет дубликаты и добавляет PRIMARY KEY по логическому ключу",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.WithDatabase(func(db *database.DB) error {
				spec, err := resolveSpec(cmd.Context(), db, table, key)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if dryRun {
					return runDryRun(cmd.Context(), out, db, spec)
				}
				return runRebuild(cmd.Context(), out, app.Logger, db, spec)
			})
		},
	}

	cmd.Flags().StringVar(&table, "table", database.PlayersTable, "таблица для пересборки")
	cmd.Flags().StringSliceVar(&key, "key", nil, "колонки логического ключа (обязательно для таблиц вне реестра)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "только показать дубликаты, без изменений")
	app.Bind(cmd)
	return cmd
}

// resolveSpec берет описание из реестра или строит его по живой таблице
func resolveSpec(ctx context.Context, db *database.DB, table string, key []string) (database.TableSpec, error) {
	if spec, ok := database.LookupTable(table); ok {
		if len(key) > 0 {
			spec.LogicalKey = key
		}
		return spec, nil
	}
	if len(key) == 0 {
		return database.TableSpec{}, fmt.Errorf("table %s is not registered, --key is required", table)
	}
	return database.SpecFromLive(ctx, db, table, key)
}

func runDryRun(ctx context.Context, out io.Writer, db *database.DB, spec database.TableSpec) error {
	rows, err := database.CountRows(ctx, db, spec.Name)
	if err != nil {
		return err
	}
	dups, err := database.FindDuplicates(ctx, db, spec.Name, spec.LogicalKey, database.DefaultSampleLimit)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Таблица %s (ключ: %s), строк: %d\n", spec.Name, strings.Join(spec.LogicalKey, ", "), rows)
	printDuplicates(out, dups)
	fmt.Fprintln(out, "Пробный запуск: изменения не вносились")
	return nil
}

func runRebuild(ctx context.Context, out io.Writer, logger *zap.Logger, db *database.DB, spec database.TableSpec) error {
	fmt.Fprintf(out, "Пересборка таблицы %s (ключ: %s)\n", spec.Name, strings.Join(spec.LogicalKey, ", "))
	fmt.Fprintf(out, "База данных: %s\n\n", db.Path())

	report, err := database.NewTableRebuilder(db, logger).Rebuild(ctx, spec)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "[1/3] Анализ: строк до пересборки %d\n", report.RowsBefore)
	printDuplicates(out, report.Duplicates)

	fmt.Fprintf(out, "[2/3] Копирование: перенесено строк %d\n", report.RowsCopied)
	fmt.Fprintf(out, "[3/3] Восстановление объектов\n")
	if len(report.Indexes) > 0 {
		fmt.Fprintf(out, "  ✓ Индексы: %s\n", strings.Join(report.Indexes, ", "))
	}
	if len(report.Triggers) > 0 {
		fmt.Fprintf(out, "  ✓ Триггеры: %s\n", strings.Join(report.Triggers, ", "))
	}
	if len(report.ReplayedObjects) > 0 {
		fmt.Fprintf(out, "  ✓ Восстановлены без описания: %s\n", strings.Join(report.ReplayedObjects, ", "))
	}
	if report.ForeignKeyViolations > 0 {
		fmt.Fprintf(out, "  ⚠ Нарушений внешних ключей: %d\n", report.ForeignKeyViolations)
	}

	fmt.Fprintf(out, "\n✓ Готово: строк после пересборки %d (удалено %d) за %s\n",
		report.RowsAfter, report.RowsBefore-report.RowsAfter, report.Duration.Round(time.Millisecond))
	return nil
}

func printDuplicates(out io.Writer, dups database.DuplicateSummary) {
	if !dups.HasDuplicates() {
		fmt.Fprintln(out, "  ✓ Дубликатов нет")
		return
	}
	fmt.Fprintf(out, "  ⚠ Дублирующихся ключей: %d (лишних строк: %d)\n", dups.Groups, dups.ExtraRows)
	for _, k := range dups.Sample {
		fmt.Fprintf(out, "    %s x%d\n", k, k.Count)
	}
}
