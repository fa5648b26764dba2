package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// ReadTable читает все строки таблицы как map колонка -> значение.
// []byte приводится к string.
func ReadTable(ctx context.Context, q Queryer, table string, orderBy ...string) ([]string, []map[string]any, error) {
	if err := validateIdentifiers(append([]string{table}, orderBy...)...); err != nil {
		return nil, nil, err
	}

	query := "SELECT * FROM " + quoteIdent(table)
	if len(orderBy) > 0 {
		query += " ORDER BY " + quoteIdents(orderBy)
	}
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get columns of %s: %w", table, err)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row of %s: %w", table, err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	return columns, result, rows.Err()
}

// InsertRecords вставляет записи в таблицу одной транзакцией.
// Колонки берутся из ключей записей и проверяются по PRAGMA table_info.
func InsertRecords(ctx context.Context, db *DB, table string, records []map[string]any) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := ValidateIdentifier(table); err != nil {
		return 0, err
	}

	info, err := TableInfo(ctx, db, table)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(info))
	for _, col := range info {
		known[col.Name] = true
	}

	colSet := make(map[string]bool)
	for _, rec := range records {
		for col := range rec {
			colSet[col] = true
		}
	}
	columns := make([]string, 0, len(colSet))
	for col := range colSet {
		if !known[col] {
			return 0, fmt.Errorf("table %s has no column %q", table, col)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), quoteIdents(columns), placeholders)

	var inserted int64
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
		}
		defer stmt.Close()

		args := make([]any, len(columns))
		for i, rec := range records {
			for j, col := range columns {
				args[j] = rec[col]
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert record %d into %s: %w", i+1, table, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
