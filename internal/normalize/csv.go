package normalize

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// parseCSV reads a delimited payload into a Table.
//
// The reader is deliberately forgiving (LazyQuotes, manual field-count
// validation) because upstream exports are messy. Records whose field count
// differs from the header are dropped and counted when SkipMalformedRows is
// set; otherwise the first bad record fails the file.
func parseCSV(name string, raw []byte, opt Options) (*Table, error) {
	text := strings.TrimSpace(decodeText(raw))
	if text == "" {
		return &Table{Name: name}, nil
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(text)
	r.FieldsPerRecord = -1 // we validate manually
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	var (
		rows    [][]string
		dropped int
		line    = 1
	)
	for {
		line++
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !opt.SkipMalformedRows {
				return nil, fmt.Errorf("csv: line %d: %w", line, err)
			}
			dropped++
			continue
		}
		if len(rec) != len(header) {
			if !opt.SkipMalformedRows {
				return nil, fmt.Errorf("csv: line %d: got %d fields, want %d", line, len(rec), len(header))
			}
			dropped++
			continue
		}
		row := make([]string, len(rec))
		for i := range rec {
			row[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, row)
	}

	t := buildTable(name, header, rows)
	t.Dropped = dropped
	return t, nil
}

// detectDelimiter picks ';' when the payload contains one, ',' otherwise.
// Semicolon-delimited exports (Brazilian registry dumps) always carry at
// least one ';' in the header line.
func detectDelimiter(text string) rune {
	if strings.ContainsRune(text, ';') {
		return ';'
	}
	return ','
}

// buildTable converts string cells into a typed Table: empty cells become
// nil, and whole columns are coerced according to inference.
func buildTable(name string, header []string, rows [][]string) *Table {
	cells := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, len(header))
		for j := range header {
			if j < len(r) && r[j] != "" {
				row[j] = r[j]
			}
		}
		cells[i] = row
	}

	types := inferColumnTypes(len(header), cells)
	coerceRows(cells, types)

	cols := make([]Column, len(header))
	for i, h := range header {
		cols[i] = Column{Name: h, Type: types[i]}
	}
	return &Table{Name: name, Columns: cols, Rows: cells}
}
