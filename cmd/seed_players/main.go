// seed_players создает базу со схемой до миграций и заполняет players
// тестовыми данными, включая дубликаты ключа (player_id, season).
package main

import (
	"context"
	"fmt"

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
		opts    database.SeedOptions
		current bool
	)

	cmd := &cobra.Command{
		Use:   "seed_players",
		Short: "Создает схему и заполняет players тестовыми данными",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return app.WithNewDatabase(func(db *database.DB) error {
				ctx := cmd.Context()

				fmt.Fprintf(out, "[1/2] Создание схемы в %s\n", db.Path())
				if err := database.InitSchema(ctx, db, !current); err != nil {
					return err
				}

				fmt.Fprintln(out, "[2/2] Заполнение players")
				inserted, err := database.SeedPlayers(ctx, db, opts)
				if err != nil {
					return err
				}

				app.Logger.Info("Тестовые данные добавлены",
					zap.Int64("rows", inserted),
					zap.Int("duplicates", opts.Duplicates))
				fmt.Fprintf(out, "✓ Добавлено строк: %d (дубликатов: %d)\n", inserted, opts.Duplicates)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&opts.Players, "players", 8, "число игроков")
	cmd.Flags().IntSliceVar(&opts.Seasons, "seasons", []int{2023, 2024}, "сезоны")
	cmd.Flags().IntVar(&opts.Duplicates, "duplicates", 0, "число дублирующихся строк")
	cmd.Flags().BoolVar(&current, "current-schema", false, "создать текущую схему (с PRIMARY KEY) вместо схемы до миграций")
	app.Bind(cmd)
	return cmd
}
