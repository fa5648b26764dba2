package database

import (
	"fmt"
	"strings"
)

// ColumnSpec описание колонки таблицы
type ColumnSpec struct {
	Name    string
	Type    string
	NotNull bool
	// Default SQL-выражение значения по умолчанию ("CURRENT_TIMESTAMP", "'R'", "0")
	Default string
	// Migrated колонка появляется миграцией и отсутствует в legacy-схеме
	Migrated bool
}

// Definition возвращает определение колонки без имени (для ALTER TABLE ADD COLUMN)
func (c ColumnSpec) Definition() string {
	var b strings.Builder
	b.WriteString(c.Type)
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String()
}

// IndexSpec описание индекса
type IndexSpec struct {
	Name    string
	Columns []string
	Unique  bool
}

// SQL возвращает CREATE INDEX для указанной таблицы
func (i IndexSpec) SQL(table string) string {
	unique := ""
	if i.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s(%s)",
		unique, quoteIdent(i.Name), quoteIdent(table), quoteIdents(i.Columns))
}

// TriggerSpec описание триггера. В Body подставляется {{table}}.
type TriggerSpec struct {
	Name   string
	Timing string
	Body   string
}

// SQL возвращает CREATE TRIGGER, привязанный к указанной таблице
func (t TriggerSpec) SQL(table string) string {
	body := strings.ReplaceAll(t.Body, "{{table}}", quoteIdent(table))
	return fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s %s ON %s FOR EACH ROW BEGIN %s; END",
		quoteIdent(t.Name), t.Timing, quoteIdent(table), strings.TrimSuffix(strings.TrimSpace(body), ";"))
}

// UpdatedAtTrigger стандартный триггер обновления updated_at
func UpdatedAtTrigger(name string) TriggerSpec {
	return TriggerSpec{
		Name:   name,
		Timing: "AFTER UPDATE",
		Body:   "UPDATE {{table}} SET updated_at = CURRENT_TIMESTAMP WHERE rowid = NEW.rowid",
	}
}

// TableSpec декларативное описание таблицы и зависимых объектов
type TableSpec struct {
	Name       string
	Columns    []ColumnSpec
	LogicalKey []string
	Indexes    []IndexSpec
	Triggers   []TriggerSpec
	// Migrated таблица создается миграцией и отсутствует в legacy-схеме
	Migrated bool
}

// ColumnNames имена колонок в порядке объявления
func (s TableSpec) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Column ищет колонку по имени
func (s TableSpec) Column(name string) (ColumnSpec, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Validate проверяет имена и согласованность ключа, индексов и колонок
func (s TableSpec) Validate() error {
	if err := ValidateIdentifier(s.Name); err != nil {
		return err
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("table %s: no columns", s.Name)
	}
	if len(s.LogicalKey) == 0 {
		return fmt.Errorf("table %s: %w", s.Name, ErrEmptyKey)
	}

	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if err := ValidateIdentifier(c.Name); err != nil {
			return fmt.Errorf("table %s: %w", s.Name, err)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %s", s.Name, c.Name)
		}
		seen[c.Name] = true
	}
	for _, k := range s.LogicalKey {
		if !seen[k] {
			return fmt.Errorf("table %s: key column %s is not declared", s.Name, k)
		}
	}
	for _, idx := range s.Indexes {
		if err := ValidateIdentifier(idx.Name); err != nil {
			return fmt.Errorf("table %s: %w", s.Name, err)
		}
		for _, col := range idx.Columns {
			if !seen[col] {
				return fmt.Errorf("table %s: index %s references unknown column %s", s.Name, idx.Name, col)
			}
		}
	}
	for _, trg := range s.Triggers {
		if err := ValidateIdentifier(trg.Name); err != nil {
			return fmt.Errorf("table %s: %w", s.Name, err)
		}
	}
	return nil
}

// CreateSQL возвращает CREATE TABLE под именем tableName.
// При enforceKey логический ключ объявляется составным PRIMARY KEY.
func (s TableSpec) CreateSQL(tableName string, enforceKey bool) string {
	return s.createSQL(tableName, enforceKey, false, false)
}

func (s TableSpec) createSQL(tableName string, enforceKey, ifNotExists, legacy bool) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(quoteIdent(tableName))
	b.WriteString(" (\n")

	lines := make([]string, 0, len(s.Columns)+1)
	for _, c := range s.Columns {
		if legacy && c.Migrated {
			continue
		}
		lines = append(lines, "\t"+quoteIdent(c.Name)+" "+c.Definition())
	}
	if enforceKey {
		lines = append(lines, "\tPRIMARY KEY ("+quoteIdents(s.LogicalKey)+")")
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

// IndexSQL CREATE INDEX для всех индексов описания
func (s TableSpec) IndexSQL(tableName string) []string {
	stmts := make([]string, len(s.Indexes))
	for i, idx := range s.Indexes {
		stmts[i] = idx.SQL(tableName)
	}
	return stmts
}

// TriggerSQL CREATE TRIGGER для всех триггеров описания
func (s TableSpec) TriggerSQL(tableName string) []string {
	stmts := make([]string, len(s.Triggers))
	for i, trg := range s.Triggers {
		stmts[i] = trg.SQL(tableName)
	}
	return stmts
}
