// Package runner общая обвязка cobra для инструментов обслуживания базы:
// флаги, загрузка конфигурации, логгер и подключение к базе на время команды.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fantasydb/config"
	"fantasydb/database"
	"fantasydb/logging"
)

// DefaultConfigPath файл конфигурации по умолчанию (может отсутствовать)
const DefaultConfigPath = "fantasydb.yaml"

// App состояние, общее для всех подкоманд инструмента
type App struct {
	Config *config.Config
	Logger *zap.Logger

	configPath string
	dbPath     string
	driver     string
	verbose    bool

	ownLogger bool
}

// Bind добавляет общие флаги и загрузку конфигурации к корневой команде.
// Если Logger задан заранее (в тестах), он не заменяется.
func (a *App) Bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", DefaultConfigPath, "путь к YAML-конфигурации")
	flags.StringVar(&a.dbPath, "db", "", "путь к базе SQLite (перекрывает конфигурацию)")
	flags.StringVar(&a.driver, "driver", "", "драйвер SQLite: sqlite3 (mattn) или sqlite (modernc)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "подробный лог")

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.setup()
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a.ownLogger && a.Logger != nil {
			_ = a.Logger.Sync()
		}
	}
}

func (a *App) setup() error {
	cfg, err := config.Read(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if a.driver != "" {
		cfg.Database.Driver = a.driver
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.Config = cfg

	if a.Logger == nil {
		logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		a.Logger = logger
		a.ownLogger = true
	}
	return nil
}

// WithDatabase открывает существующую базу на время fn и закрывает ее после
func (a *App) WithDatabase(fn func(db *database.DB) error) error {
	db, err := database.OpenExisting(a.Config.Database.Path, a.Config.DBConfig())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			a.Logger.Warn("Ошибка закрытия базы", zap.Error(cerr))
		}
	}()

	a.Logger.Debug("Подключение к базе",
		zap.String("path", db.Path()),
		zap.String("driver", db.Driver()))
	return fn(db)
}

// WithNewDatabase как WithDatabase, но создает файл базы и каталог при отсутствии
func (a *App) WithNewDatabase(fn func(db *database.DB) error) error {
	path := a.Config.Database.Path
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.NewDBWithConfig(path, a.Config.DBConfig())
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

// Execute запускает команду и завершает процесс с кодом 1 при ошибке
func Execute(ctx context.Context, cmd *cobra.Command) {
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}
