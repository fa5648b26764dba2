package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// ColumnInfo строка PRAGMA table_info
type ColumnInfo struct {
	CID          int
	Name         string
	Type         string
	NotNull      bool
	DefaultValue sql.NullString
	PK           int
}

// SchemaObject индекс или триггер из sqlite_master
type SchemaObject struct {
	Type string
	Name string
	SQL  string
}

// TableExists проверяет наличие таблицы
func TableExists(ctx context.Context, q Queryer, table string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return count > 0, nil
}

// ListTables возвращает пользовательские таблицы по алфавиту
func ListTables(ctx context.Context, q Queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// TableInfo возвращает структуру таблицы (PRAGMA table_info)
func TableInfo(ctx context.Context, q Queryer, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get table info for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var notNull int
		if err := rows.Scan(&col.CID, &col.Name, &col.Type, &notNull, &col.DefaultValue, &col.PK); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		col.NotNull = notNull != 0
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return columns, nil
}

// PrimaryKeyColumns колонки объявленного PRIMARY KEY в порядке ключа
func PrimaryKeyColumns(ctx context.Context, q Queryer, table string) ([]string, error) {
	columns, err := TableInfo(ctx, q, table)
	if err != nil {
		return nil, err
	}

	var pk []ColumnInfo
	for _, col := range columns {
		if col.PK > 0 {
			pk = append(pk, col)
		}
	}
	sort.Slice(pk, func(i, j int) bool { return pk[i].PK < pk[j].PK })

	names := make([]string, len(pk))
	for i, col := range pk {
		names[i] = col.Name
	}
	return names, nil
}

// ColumnExists проверяет наличие колонки в таблице
func ColumnExists(ctx context.Context, q Queryer, table, column string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check column %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}

// CountRows количество строк в таблице
func CountRows(ctx context.Context, q Queryer, table string) (int64, error) {
	if err := ValidateIdentifier(table); err != nil {
		return 0, err
	}
	var count int64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

// DependentObjects индексы и триггеры таблицы с исходным SQL.
// Автоиндексы (sqlite_autoindex_*) не имеют SQL и не возвращаются.
func DependentObjects(ctx context.Context, q Queryer, table string) ([]SchemaObject, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT type, name, sql FROM sqlite_master
		WHERE tbl_name = ? AND type IN ('index', 'trigger') AND sql IS NOT NULL
		ORDER BY type, name
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependent objects of %s: %w", table, err)
	}
	defer rows.Close()

	var objects []SchemaObject
	for rows.Next() {
		var obj SchemaObject
		if err := rows.Scan(&obj.Type, &obj.Name, &obj.SQL); err != nil {
			return nil, fmt.Errorf("failed to scan schema object: %w", err)
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

// IndexColumns колонки индекса в порядке объявления
func IndexColumns(ctx context.Context, q Queryer, index string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_index_info(?) ORDER BY seqno", index)
	if err != nil {
		return nil, fmt.Errorf("failed to get index info for %s: %w", index, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan index column: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// ForeignKeysEnabled читает PRAGMA foreign_keys, не изменяя его
func ForeignKeysEnabled(ctx context.Context, q Queryer) (bool, error) {
	var enabled int
	if err := q.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return false, fmt.Errorf("failed to read foreign_keys pragma: %w", err)
	}
	return enabled != 0, nil
}
