package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RebuildStep шаг пересборки таблицы
type RebuildStep string

const (
	StepPrepare  RebuildStep = "prepare"
	StepDetect   RebuildStep = "detect"
	StepCreate   RebuildStep = "create"
	StepCopy     RebuildStep = "copy"
	StepSwap     RebuildStep = "swap"
	StepRecreate RebuildStep = "recreate"
	StepCommit   RebuildStep = "commit"
)

// StepHook вызывается после шагов detect, create, copy, swap и recreate внутри
// транзакции. Ошибка из хука откатывает всю пересборку.
type StepHook func(ctx context.Context, step RebuildStep) error

// RebuildOption настройка TableRebuilder
type RebuildOption func(*TableRebuilder)

// WithSampleLimit сколько дублирующихся ключей включать в отчет
func WithSampleLimit(n int) RebuildOption {
	return func(r *TableRebuilder) {
		r.sampleLimit = n
	}
}

// WithStepHook подключает хук шагов
func WithStepHook(hook StepHook) RebuildOption {
	return func(r *TableRebuilder) {
		r.hook = hook
	}
}

// WithRunID задает идентификатор запуска вместо случайного UUID
func WithRunID(id string) RebuildOption {
	return func(r *TableRebuilder) {
		r.runID = id
	}
}

// TableRebuilder пересобирает таблицу так, чтобы логический ключ стал
// составным PRIMARY KEY. На каждый ключ остается одна строка: с наименьшим rowid.
// Все шаги выполняются в одной транзакции на одном соединении.
type TableRebuilder struct {
	db          *DB
	logger      *zap.Logger
	sampleLimit int
	hook        StepHook
	runID       string
}

// NewTableRebuilder создает пересборщик таблиц
func NewTableRebuilder(db *DB, logger *zap.Logger, opts ...RebuildOption) *TableRebuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &TableRebuilder{
		db:          db,
		logger:      logger,
		sampleLimit: DefaultSampleLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RebuildReport итог пересборки
type RebuildReport struct {
	RunID                string           `json:"run_id"`
	Table                string           `json:"table"`
	StagingTable         string           `json:"staging_table"`
	RowsBefore           int64            `json:"rows_before"`
	Duplicates           DuplicateSummary `json:"duplicates"`
	RowsCopied           int64            `json:"rows_copied"`
	RowsAfter            int64            `json:"rows_after"`
	Indexes              []string         `json:"indexes"`
	Triggers             []string         `json:"triggers"`
	ReplayedObjects      []string         `json:"replayed_objects,omitempty"`
	ForeignKeyViolations int64            `json:"foreign_key_violations"`
	Duration             time.Duration    `json:"duration"`
}

// Rebuild выполняет пересборку таблицы по описанию spec
func (r *TableRebuilder) Rebuild(ctx context.Context, spec TableSpec) (*RebuildReport, error) {
	if err := spec.Validate(); err != nil {
		return nil, &StepError{Step: StepPrepare, Err: err}
	}

	runID := r.runID
	if runID == "" {
		runID = uuid.New().String()
	}
	report := &RebuildReport{
		RunID:        runID,
		Table:        spec.Name,
		StagingTable: stagingName(spec.Name, runID),
	}
	logger := r.logger.With(zap.String("table", spec.Name), zap.String("run_id", runID))
	start := time.Now()

	conn, err := r.db.conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	// PRAGMA foreign_keys не меняется внутри транзакции, поэтому выключаем до BEGIN
	fkEnabled, err := ForeignKeysEnabled(ctx, conn)
	if err != nil {
		return nil, &StepError{Step: StepPrepare, Err: err}
	}
	if fkEnabled {
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
			return nil, &StepError{Step: StepPrepare, Err: fmt.Errorf("failed to disable foreign keys: %w", err)}
		}
		defer restorePragma(conn, logger, "PRAGMA foreign_keys = ON")
	}

	// RENAME не должен перепроверять представления и триггеры, ссылающиеся на удаленную таблицу
	var legacyAlter int
	if err := conn.QueryRowContext(ctx, "PRAGMA legacy_alter_table").Scan(&legacyAlter); err != nil {
		return nil, &StepError{Step: StepPrepare, Err: fmt.Errorf("failed to read legacy_alter_table: %w", err)}
	}
	if legacyAlter == 0 {
		if _, err := conn.ExecContext(ctx, "PRAGMA legacy_alter_table = ON"); err != nil {
			return nil, &StepError{Step: StepPrepare, Err: fmt.Errorf("failed to set legacy_alter_table: %w", err)}
		}
		defer restorePragma(conn, logger, "PRAGMA legacy_alter_table = OFF")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StepError{Step: StepPrepare, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logger.Error("Ошибка отката транзакции", zap.Error(err))
			return
		}
		logger.Warn("Пересборка откатена, таблица не изменена")
	}()

	logger.Info("Начало пересборки таблицы",
		zap.Strings("key", spec.LogicalKey),
		zap.String("staging_table", report.StagingTable))

	copyColumns, err := r.prepare(ctx, tx, spec, report)
	if err != nil {
		return nil, &StepError{Step: StepPrepare, Err: err}
	}
	captured, err := DependentObjects(ctx, tx, spec.Name)
	if err != nil {
		return nil, &StepError{Step: StepPrepare, Err: err}
	}

	// 1. Поиск дубликатов: они ожидаемы и не прерывают пересборку
	dups, err := FindDuplicates(ctx, tx, spec.Name, spec.LogicalKey, r.sampleLimit)
	if err != nil {
		return nil, &StepError{Step: StepDetect, Err: err}
	}
	report.Duplicates = dups
	if dups.HasDuplicates() {
		sample := make([]string, len(dups.Sample))
		for i, k := range dups.Sample {
			sample[i] = fmt.Sprintf("%s x%d", k, k.Count)
		}
		logger.Warn("Найдены дубликаты логического ключа",
			zap.Int64("duplicate_groups", dups.Groups),
			zap.Int64("extra_rows", dups.ExtraRows),
			zap.Strings("sample", sample))
	} else {
		logger.Info("Дубликаты не найдены")
	}
	if err := r.runHook(ctx, StepDetect); err != nil {
		return nil, err
	}

	// 2. Новая таблица с составным PRIMARY KEY
	if _, err := tx.ExecContext(ctx, spec.CreateSQL(report.StagingTable, true)); err != nil {
		return nil, &StepError{Step: StepCreate, Err: fmt.Errorf("failed to create staging table: %w", err)}
	}
	logger.Debug("Создана промежуточная таблица", zap.String("staging_table", report.StagingTable))
	if err := r.runHook(ctx, StepCreate); err != nil {
		return nil, err
	}

	// 3. По одной строке на ключ: строка с наименьшим rowid
	if err := r.copyRows(ctx, tx, spec, report, copyColumns); err != nil {
		return nil, &StepError{Step: StepCopy, Err: err}
	}
	logger.Info("Строки скопированы", zap.Int64("rows_copied", report.RowsCopied))
	if err := r.runHook(ctx, StepCopy); err != nil {
		return nil, err
	}

	// 4. Подмена таблицы
	if _, err := tx.ExecContext(ctx, "DROP TABLE "+quoteIdent(spec.Name)); err != nil {
		return nil, &StepError{Step: StepSwap, Err: fmt.Errorf("failed to drop %s: %w", spec.Name, err)}
	}
	rename := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(report.StagingTable), quoteIdent(spec.Name))
	if _, err := tx.ExecContext(ctx, rename); err != nil {
		return nil, &StepError{Step: StepSwap, Err: fmt.Errorf("failed to rename staging table: %w", err)}
	}
	if err := r.runHook(ctx, StepSwap); err != nil {
		return nil, err
	}

	// 5. Индексы и триггеры
	if err := r.recreateObjects(ctx, tx, spec, captured, report, logger); err != nil {
		return nil, &StepError{Step: StepRecreate, Err: err}
	}
	if err := r.runHook(ctx, StepRecreate); err != nil {
		return nil, err
	}

	report.RowsAfter, err = CountRows(ctx, tx, spec.Name)
	if err != nil {
		return nil, &StepError{Step: StepCommit, Err: err}
	}

	// 6. Commit
	if err := tx.Commit(); err != nil {
		return nil, &StepError{Step: StepCommit, Err: fmt.Errorf("failed to commit rebuild: %w", err)}
	}
	committed = true

	if fkEnabled {
		violations, err := foreignKeyViolations(ctx, conn)
		if err != nil {
			logger.Warn("Не удалось проверить внешние ключи", zap.Error(err))
		}
		report.ForeignKeyViolations = violations
		if violations > 0 {
			logger.Warn("После пересборки есть нарушения внешних ключей", zap.Int64("violations", violations))
		}
	}

	report.Duration = time.Since(start)
	logger.Info("Пересборка завершена",
		zap.Int64("rows_before", report.RowsBefore),
		zap.Int64("duplicate_groups", report.Duplicates.Groups),
		zap.Int64("rows_copied", report.RowsCopied),
		zap.Int64("final_rows", report.RowsAfter),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// prepare проверяет живую таблицу и возвращает колонки для копирования
func (r *TableRebuilder) prepare(ctx context.Context, tx *sql.Tx, spec TableSpec, report *RebuildReport) ([]string, error) {
	exists, err := TableExists(ctx, tx, spec.Name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, spec.Name)
	}

	live, err := TableInfo(ctx, tx, spec.Name)
	if err != nil {
		return nil, err
	}
	liveSet := make(map[string]bool, len(live))
	var drift []string
	for _, col := range live {
		liveSet[col.Name] = true
		if _, ok := spec.Column(col.Name); !ok {
			drift = append(drift, col.Name)
		}
	}
	if len(drift) > 0 {
		return nil, fmt.Errorf("%w: %s has %s", ErrSchemaDrift, spec.Name, strings.Join(drift, ", "))
	}
	for _, k := range spec.LogicalKey {
		if !liveSet[k] {
			return nil, fmt.Errorf("key column %s is missing from live table %s", k, spec.Name)
		}
	}

	nulls, err := CountNullKeys(ctx, tx, spec.Name, spec.LogicalKey)
	if err != nil {
		return nil, err
	}
	if nulls > 0 {
		return nil, fmt.Errorf("%w: %d rows in %s", ErrNullKey, nulls, spec.Name)
	}

	report.RowsBefore, err = CountRows(ctx, tx, spec.Name)
	if err != nil {
		return nil, err
	}

	// Колонки описания, которых нет в живой таблице, получат значения по умолчанию
	columns := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		if liveSet[c.Name] {
			columns = append(columns, c.Name)
		}
	}
	return columns, nil
}

func (r *TableRebuilder) copyRows(ctx context.Context, tx *sql.Tx, spec TableSpec, report *RebuildReport, columns []string) error {
	distinct, err := CountDistinctKeys(ctx, tx, spec.Name, spec.LogicalKey)
	if err != nil {
		return err
	}

	cols := quoteIdents(columns)
	table := quoteIdent(spec.Name)
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s WHERE rowid IN (SELECT MIN(rowid) FROM %s GROUP BY %s)",
		quoteIdent(report.StagingTable), cols, cols, table, table, quoteIdents(spec.LogicalKey))
	res, err := tx.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to copy rows: %w", err)
	}
	copied, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get copied row count: %w", err)
	}
	report.RowsCopied = copied

	if copied != distinct {
		return fmt.Errorf("%w: copied %d, distinct %d", ErrRowCountMismatch, copied, distinct)
	}
	return nil
}

// recreateObjects создает индексы и триггеры описания, а объекты старой
// таблицы, которых в описании нет, воспроизводит по их исходному SQL
func (r *TableRebuilder) recreateObjects(ctx context.Context, tx *sql.Tx, spec TableSpec, captured []SchemaObject, report *RebuildReport, logger *zap.Logger) error {
	declared := make(map[string]bool)
	for _, idx := range spec.Indexes {
		if _, err := tx.ExecContext(ctx, idx.SQL(spec.Name)); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.Name, err)
		}
		declared[idx.Name] = true
		report.Indexes = append(report.Indexes, idx.Name)
	}
	for _, trg := range spec.Triggers {
		if _, err := tx.ExecContext(ctx, trg.SQL(spec.Name)); err != nil {
			return fmt.Errorf("failed to create trigger %s: %w", trg.Name, err)
		}
		declared[trg.Name] = true
		report.Triggers = append(report.Triggers, trg.Name)
	}

	for _, obj := range captured {
		if declared[obj.Name] {
			continue
		}
		if _, err := tx.ExecContext(ctx, obj.SQL); err != nil {
			return fmt.Errorf("failed to replay %s %s: %w", obj.Type, obj.Name, err)
		}
		logger.Warn("Объект отсутствует в описании схемы, воспроизведен из sqlite_master",
			zap.String("type", obj.Type), zap.String("name", obj.Name))
		report.ReplayedObjects = append(report.ReplayedObjects, obj.Name)
		if obj.Type == "index" {
			report.Indexes = append(report.Indexes, obj.Name)
		} else {
			report.Triggers = append(report.Triggers, obj.Name)
		}
	}
	return nil
}

func (r *TableRebuilder) runHook(ctx context.Context, step RebuildStep) error {
	if r.hook == nil {
		return nil
	}
	if err := r.hook(ctx, step); err != nil {
		return &StepError{Step: step, Err: err}
	}
	return nil
}

// restorePragma возвращает настройку соединения после пересборки.
// Ошибка только логируется.
func restorePragma(conn *sql.Conn, logger *zap.Logger, stmt string) {
	if _, err := conn.ExecContext(context.Background(), stmt); err != nil {
		logger.Error("Не удалось восстановить настройку соединения",
			zap.String("pragma", stmt), zap.Error(err))
	}
}

func foreignKeyViolations(ctx context.Context, q Queryer) (int64, error) {
	var count int64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM pragma_foreign_key_check").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to run foreign key check: %w", err)
	}
	return count, nil
}

func stagingName(table, runID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(runID) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == 8 {
			break
		}
	}
	suffix := b.String()
	if suffix == "" {
		suffix = "tmp"
	}
	return table + "_rebuild_" + suffix
}

// SpecFromLive строит описание по живой таблице для таблиц вне реестра.
// Индексы и триггеры не описываются: их воспроизводит Rebuild из sqlite_master.
func SpecFromLive(ctx context.Context, q Queryer, table string, key []string) (TableSpec, error) {
	if len(key) == 0 {
		return TableSpec{}, ErrEmptyKey
	}
	live, err := TableInfo(ctx, q, table)
	if err != nil {
		return TableSpec{}, err
	}

	keySet := make(map[string]bool, len(key))
	for _, k := range key {
		keySet[k] = true
	}

	spec := TableSpec{Name: table, LogicalKey: key}
	for _, col := range live {
		spec.Columns = append(spec.Columns, ColumnSpec{
			Name:    col.Name,
			Type:    col.Type,
			NotNull: col.NotNull || keySet[col.Name],
			Default: col.DefaultValue.String,
		})
	}
	return spec, spec.Validate()
}
