// Package export merges the raw view tables into one wide row per
// instrument and serializes the result for the full CSV export.
package export

import (
	"strings"

	"github.com/quantfeed/pulse/internal/contracts"
)

// identityColumn keys rows across all view tables
const identityColumn = "Ticker"

// Merge combines multiple view tables into one wide row per instrument.
// Later tables overwrite earlier ones on column collision; non-colliding
// columns are unioned. Rows without an identity are skipped. Column
// order and row order are stable by first appearance.
func Merge(tables []contracts.Table) (columns []string, rows []contracts.RawRow) {
	merged := make(map[string]contracts.RawRow)
	var tickerOrder []string

	seenCols := make(map[string]bool)

	for _, table := range tables {
		for _, col := range table.Columns {
			if !seenCols[col] {
				seenCols[col] = true
				columns = append(columns, col)
			}
		}

		for _, row := range table.Rows {
			ticker := row[identityColumn]
			if ticker == "" {
				continue
			}

			wide, ok := merged[ticker]
			if !ok {
				wide = make(contracts.RawRow, len(row))
				merged[ticker] = wide
				tickerOrder = append(tickerOrder, ticker)
			}
			for col, val := range row {
				wide[col] = val
			}
		}
	}

	rows = make([]contracts.RawRow, 0, len(tickerOrder))
	for _, ticker := range tickerOrder {
		rows = append(rows, merged[ticker])
	}

	return columns, rows
}

// WriteCSV serializes merged rows: every field double-quoted, embedded
// quotes doubled, comma-delimited, header row first. The format must
// stay byte-compatible with previously stored exports.
func WriteCSV(columns []string, rows []contracts.RawRow) []byte {
	var b strings.Builder

	writeRecord(&b, columns, func(col string) string { return col })
	for _, row := range rows {
		b.WriteByte('\n')
		writeRecord(&b, columns, func(col string) string { return row[col] })
	}

	return []byte(b.String())
}

func writeRecord(b *strings.Builder, columns []string, value func(string) string) {
	for i, col := range columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(value(col), `"`, `""`))
		b.WriteByte('"')
	}
}
