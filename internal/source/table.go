// Package source provides tabular record sources for batch ingestion. Tables
// arrive either from local CSV files or from a remote sheet export and are
// handed to the ingestion pipeline as ordered rows of column values.
package source

import (
	"context"
	"strings"
)

// Table is an in-memory tabular payload. Header names are normalized to lower
// case on construction so downstream column lookups are case-insensitive.
type Table struct {
	Header []string
	Rows   [][]string
}

// NewTable builds a table from a raw header and row set. Header cells are
// trimmed and lower-cased. Rows shorter than the header are padded with empty
// strings; longer rows are truncated.
func NewTable(header []string, rows [][]string) Table {
	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(cell))
	}
	out := Table{Header: normalized, Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		fitted := make([]string, len(normalized))
		for i := range fitted {
			if i < len(row) {
				fitted[i] = strings.TrimSpace(row[i])
			}
		}
		out.Rows = append(out.Rows, fitted)
	}
	return out
}

// Records projects the table into one map per row keyed by header name.
func (t Table) Records() []map[string]string {
	records := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		record := make(map[string]string, len(t.Header))
		for i, name := range t.Header {
			if name == "" {
				continue
			}
			record[name] = row[i]
		}
		records = append(records, record)
	}
	return records
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Source produces a table of records for ingestion.
type Source interface {
	Fetch(ctx context.Context) (Table, error)
}
