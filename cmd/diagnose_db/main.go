// diagnose_db выводит состояние базы: таблицы, ключи, индексы, дубликаты players.
// Ничего не изменяет.
package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"fantasydb/database"
	"fantasydb/diagnostics"
	"fantasydb/runner"
)

func main() {
	runner.Execute(context.Background(), newRootCmd(&runner.App{}))
}

func newRootCmd(app *runner.App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "diagnose_db",
		Short: "Диагностика базы статистики (только чтение)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.WithDatabase(func(db *database.DB) error {
				report, err := diagnostics.NewReporter(db, app.Logger).Build(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				return report.WriteText(cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "вывести отчет в JSON")
	app.Bind(cmd)
	return cmd
}
