package database

import (
	"context"
	"fmt"
	"strings"
)

// DefaultSampleLimit сколько дублирующихся ключей показывать в отчетах
const DefaultSampleLimit = 5

// DuplicateKey значение логического ключа, встречающееся больше одного раза
type DuplicateKey struct {
	Values []any `json:"values"`
	Count  int64 `json:"count"`
}

// String форматирует ключ как (v1, v2)
func (k DuplicateKey) String() string {
	parts := make([]string, len(k.Values))
	for i, v := range k.Values {
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// DuplicateSummary результат поиска дубликатов по логическому ключу
type DuplicateSummary struct {
	Key []string `json:"key"`
	// Groups число ключей, встречающихся больше одного раза
	Groups int64 `json:"groups"`
	// ExtraRows строки сверх первой в каждой группе (будут отброшены при пересборке)
	ExtraRows int64          `json:"extra_rows"`
	Sample    []DuplicateKey `json:"sample"`
}

// HasDuplicates есть ли хотя бы одна группа дубликатов
func (s DuplicateSummary) HasDuplicates() bool {
	return s.Groups > 0
}

// FindDuplicates группирует строки по ключу и возвращает группы с COUNT(*) > 1.
// Образец упорядочен по ключу и ограничен sampleLimit.
func FindDuplicates(ctx context.Context, q Queryer, table string, key []string, sampleLimit int) (DuplicateSummary, error) {
	summary := DuplicateSummary{Key: key}
	if len(key) == 0 {
		return summary, ErrEmptyKey
	}
	if err := validateIdentifiers(append([]string{table}, key...)...); err != nil {
		return summary, err
	}
	if sampleLimit <= 0 {
		sampleLimit = DefaultSampleLimit
	}

	keyList := quoteIdents(key)
	grouped := fmt.Sprintf("SELECT %s, COUNT(*) AS cnt FROM %s GROUP BY %s HAVING COUNT(*) > 1",
		keyList, quoteIdent(table), keyList)

	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(cnt - 1), 0) FROM ("+grouped+")",
	).Scan(&summary.Groups, &summary.ExtraRows)
	if err != nil {
		return summary, fmt.Errorf("failed to count duplicate keys in %s: %w", table, err)
	}
	if summary.Groups == 0 {
		return summary, nil
	}

	rows, err := q.QueryContext(ctx, grouped+" ORDER BY "+keyList+" LIMIT ?", sampleLimit)
	if err != nil {
		return summary, fmt.Errorf("failed to sample duplicate keys in %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		values := make([]any, len(key))
		dest := make([]any, len(key)+1)
		for i := range values {
			dest[i] = &values[i]
		}
		var dk DuplicateKey
		dest[len(key)] = &dk.Count
		if err := rows.Scan(dest...); err != nil {
			return summary, fmt.Errorf("failed to scan duplicate key: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		dk.Values = values
		summary.Sample = append(summary.Sample, dk)
	}
	return summary, rows.Err()
}

// CountDistinctKeys количество различных значений логического ключа
func CountDistinctKeys(ctx context.Context, q Queryer, table string, key []string) (int64, error) {
	if len(key) == 0 {
		return 0, ErrEmptyKey
	}
	if err := validateIdentifiers(append([]string{table}, key...)...); err != nil {
		return 0, err
	}
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 FROM %s GROUP BY %s)", quoteIdent(table), quoteIdents(key))
	if err := q.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count distinct keys in %s: %w", table, err)
	}
	return count, nil
}

// CountNullKeys строки, у которых хотя бы одна колонка ключа равна NULL
func CountNullKeys(ctx context.Context, q Queryer, table string, key []string) (int64, error) {
	if len(key) == 0 {
		return 0, ErrEmptyKey
	}
	if err := validateIdentifiers(append([]string{table}, key...)...); err != nil {
		return 0, err
	}
	conds := make([]string, len(key))
	for i, k := range key {
		conds[i] = quoteIdent(k) + " IS NULL"
	}
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", quoteIdent(table), strings.Join(conds, " OR "))
	if err := q.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count NULL keys in %s: %w", table, err)
	}
	return count, nil
}
