package database

import (
	"errors"
	"fmt"
)

var (
	// ErrTableNotFound таблица отсутствует в базе
	ErrTableNotFound = errors.New("table not found")
	// ErrInvalidIdentifier имя таблицы/колонки/индекса недопустимо
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrEmptyKey у таблицы не задан логический ключ
	ErrEmptyKey = errors.New("logical key is empty")
	// ErrNullKey в колонках логического ключа есть NULL
	ErrNullKey = errors.New("logical key column contains NULL")
	// ErrSchemaDrift в живой таблице есть колонки, которых нет в описании
	ErrSchemaDrift = errors.New("live table has columns missing from descriptor")
	// ErrRowCountMismatch скопировано не столько строк, сколько различных ключей
	ErrRowCountMismatch = errors.New("copied row count does not match distinct key count")
)

// StepError ошибка конкретного шага пересборки таблицы
type StepError struct {
	Step RebuildStep
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("rebuild step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
