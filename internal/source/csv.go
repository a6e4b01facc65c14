package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSVSource reads a table from a local CSV file. The first record is treated
// as the header row.
type CSVSource struct {
	Path string
}

// NewCSVSource constructs a source for the given file path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// Fetch reads and parses the file.
func (s *CSVSource) Fetch(ctx context.Context) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return Table{}, fmt.Errorf("open csv source: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV decodes CSV content from the reader into a table. Rows with a
// column count differing from the header are accepted and fitted to the
// header width.
func ParseCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return Table{}, nil
	}
	return NewTable(records[0], records[1:]), nil
}
