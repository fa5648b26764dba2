package diagnostics

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const rule = "================================================================================"

// WriteText выводит отчет в человекочитаемом виде
func (r *Report) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, rule)
	fmt.Fprintf(bw, "ДИАГНОСТИКА БАЗЫ: %s\n", r.DatabasePath)
	fmt.Fprintf(bw, "Сформирован: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(bw, rule)

	fmt.Fprintf(bw, "\nforeign_keys: %s\n", onOff(r.ForeignKeysEnabled))

	fmt.Fprintf(bw, "\nТаблицы (%d):\n", len(r.Tables))
	for _, t := range r.Tables {
		pk := "нет PRIMARY KEY"
		if t.HasPrimaryKey() {
			pk = "PK(" + strings.Join(t.PrimaryKey, ", ") + ")"
		}
		fmt.Fprintf(bw, "  - %-20s %8d строк  %s\n", t.Name, t.RowCount, pk)
		if len(t.Indexes) > 0 {
			fmt.Fprintf(bw, "      индексы: %s\n", strings.Join(t.Indexes, ", "))
		}
		if len(t.Triggers) > 0 {
			fmt.Fprintf(bw, "      триггеры: %s\n", strings.Join(t.Triggers, ", "))
		}
	}

	if p := r.Players; p != nil {
		fmt.Fprintf(bw, "\nПроверка players (player_id, season):\n")
		fmt.Fprintf(bw, "  Различных ключей: %d\n", p.DistinctKeys)
		if p.NullKeyRows > 0 {
			fmt.Fprintf(bw, "  ⚠ Строк с NULL в ключе: %d\n", p.NullKeyRows)
		}
		if p.Duplicates.HasDuplicates() {
			fmt.Fprintf(bw, "  ⚠ Дублирующихся ключей: %d (лишних строк: %d)\n", p.Duplicates.Groups, p.Duplicates.ExtraRows)
			for _, k := range p.Duplicates.Sample {
				fmt.Fprintf(bw, "    %s x%d\n", k, k.Count)
			}
		} else {
			fmt.Fprintln(bw, "  ✓ Дубликатов нет")
		}

		fmt.Fprintln(bw, "\n  Распределение по сезонам:")
		for _, s := range p.SeasonDistribution {
			fmt.Fprintf(bw, "    %d: %d строк, %d игроков\n", s.Season, s.Rows, s.Players)
		}
	}

	return bw.Flush()
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
