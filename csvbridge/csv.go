// Package csvbridge выгружает строки таблиц в CSV и читает CSV обратно
// в записи с выведенными типами значений.
package csvbridge

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

const utf8BOM = "\xef\xbb\xbf"

// ErrExtraFields строка CSV длиннее заголовка
var ErrExtraFields = errors.New("csv row has more fields than header")

// Record одна строка: имя колонки -> значение
type Record map[string]any

type saveOptions struct {
	subdir  string
	columns []string
}

// SaveOption настраивает SaveToCSV
type SaveOption func(*saveOptions)

// WithSubdir сохраняет файл в подкаталог baseDir
func WithSubdir(dir string) SaveOption {
	return func(o *saveOptions) {
		o.subdir = dir
	}
}

// WithColumns задает порядок колонок в заголовке.
// По умолчанию используются отсортированные ключи первой записи.
func WithColumns(columns ...string) SaveOption {
	return func(o *saveOptions) {
		o.columns = columns
	}
}

// SaveToCSV записывает records в baseDir[/subdir]/filename и возвращает путь.
// Пустой records ничего не пишет и возвращает "".
func SaveToCSV(baseDir string, records []Record, filename string, opts ...SaveOption) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	columns := o.columns
	if len(columns) == 0 {
		columns = make([]string, 0, len(records[0]))
		for k := range records[0] {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}

	dir := baseDir
	if o.subdir != "" {
		dir = filepath.Join(baseDir, o.subdir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	if filepath.Ext(filename) == "" {
		filename += ".csv"
	}
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := writeRecords(f, columns, records); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func writeRecords(w io.Writer, columns []string, records []Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(columns); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for _, rec := range records {
		for i, col := range columns {
			row[i] = formatValue(rec[col])
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// ReadFromCSV читает CSV с заголовком и выводит типы значений (см. InferValue).
// BOM в начале файла и пустые строки пропускаются; строка ",," дает запись из nil.
// Строка с полями сверх заголовка дает ErrExtraFields.
func ReadFromCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readRecords(f)
}

func readRecords(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && string(bom) == utf8BOM {
		br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	records := []Record{}
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(fields) > len(header) {
			line, _ := reader.FieldPos(len(header))
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d",
				ErrExtraFields, line, len(fields), len(header))
		}

		rec := make(Record, len(header))
		for i, col := range header {
			if i >= len(fields) {
				break
			}
			rec[col] = InferValue(fields[i])
		}
		records = append(records, rec)
	}
	return records, nil
}
