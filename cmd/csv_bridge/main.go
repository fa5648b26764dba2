// csv_bridge выгружает таблицу в CSV и загружает CSV обратно в таблицу.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fantasydb/csvbridge"
	"fantasydb/database"
	"fantasydb/runner"
)

func main() {
	runner.Execute(context.Background(), newRootCmd(&runner.App{}))
}

func newRootCmd(app *runner.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv_bridge",
		Short: "Обмен данными таблиц через CSV",
	}
	app.Bind(cmd)
	cmd.AddCommand(newExportCmd(app), newImportCmd(app))
	return cmd
}

func newExportCmd(app *runner.App) *cobra.Command {
	var table, subdir, name string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Выгрузить таблицу в CSV (каталог export.dir)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return app.WithDatabase(func(db *database.DB) error {
				columns, rows, err := database.ReadTable(cmd.Context(), db, table, "rowid")
				if err != nil {
					return err
				}

				records := make([]csvbridge.Record, len(rows))
				for i, row := range rows {
					records[i] = row
				}

				filename := name
				if filename == "" {
					filename = table
				}
				path, err := csvbridge.SaveToCSV(app.Config.Export.Dir, records, filename,
					csvbridge.WithSubdir(subdir), csvbridge.WithColumns(columns...))
				if err != nil {
					return fmt.Errorf("failed to export %s: %w", table, err)
				}
				if path == "" {
					fmt.Fprintf(out, "Таблица %s пуста, файл не создан\n", table)
					return nil
				}

				app.Logger.Info("Таблица выгружена",
					zap.String("table", table),
					zap.Int("rows", len(records)),
					zap.String("path", path))
				fmt.Fprintf(out, "✓ Выгружено строк: %d -> %s\n", len(records), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&table, "table", database.PlayersTable, "таблица для выгрузки")
	cmd.Flags().StringVar(&subdir, "subdir", "", "подкаталог внутри export.dir")
	cmd.Flags().StringVar(&name, "name", "", "имя файла (по умолчанию имя таблицы)")
	return cmd
}

func newImportCmd(app *runner.App) *cobra.Command {
	var table, file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Загрузить строки из CSV в существующую таблицу",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := csvbridge.ReadFromCSV(file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return app.WithDatabase(func(db *database.DB) error {
				rows := make([]map[string]any, len(records))
				for i, rec := range records {
					rows[i] = rec
				}

				inserted, err := database.InsertRecords(cmd.Context(), db, table, rows)
				if err != nil {
					return fmt.Errorf("failed to import %s: %w", file, err)
				}

				app.Logger.Info("CSV загружен",
					zap.String("table", table),
					zap.Int64("rows", inserted),
					zap.String("file", file))
				fmt.Fprintf(out, "✓ Загружено строк: %d -> %s\n", inserted, table)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "целевая таблица")
	cmd.Flags().StringVar(&file, "file", "", "путь к CSV-файлу")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
