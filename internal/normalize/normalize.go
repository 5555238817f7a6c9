// Package normalize converts uploaded byte payloads of heterogeneous formats
// (CSV, JSON record arrays, HTML documents) into a single in-memory tabular
// shape with inferred column types.
//
// The package is responsible for:
//   - Format dispatch by declared file extension
//   - Delimiter detection and lossy row handling for CSV
//   - Union-of-keys column derivation for JSON record arrays
//   - First-table extraction for HTML documents
//   - Best-effort per-column type inference (integer, float, text)
//
// Design constraints:
//   - Normalization is best-effort: a malformed row is dropped and counted,
//     not fatal, unless the caller opts into strict mode.
//   - An empty payload is an empty table, not an error.
//   - All parsing is synchronous and in-memory; uploads are bounded by the
//     surrounding application, not by this package.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Inferred column types. Integer and float are both "numeric" for grouping
// purposes; text is everything else.
const (
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeText    = "text"
)

var (
	// ErrUnsupportedFormat is returned for extensions this package does not
	// understand. Batch callers should record it and move on, not abort.
	ErrUnsupportedFormat = errors.New("normalize: unsupported format")

	// ErrNoTableFound is returned for an HTML document without any <table>.
	ErrNoTableFound = errors.New("normalize: no table found in document")
)

// Column is a named column with its inferred scalar type.
type Column struct {
	Name string
	Type string
}

// Table is a normalized, format-independent tabular structure.
//
// Cell values are nil (null), string, int64 or float64. Numeric cells are
// materialized only after inference decides the whole column coerces.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any

	// Dropped counts input rows discarded as malformed. It is zero unless
	// Options.SkipMalformedRows allowed lossy parsing to proceed.
	Dropped int
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Options control lossy-parse behavior.
type Options struct {
	// SkipMalformedRows drops rows that fail structural parsing (ragged CSV
	// records, mismatched HTML rows) instead of failing the whole file.
	// The number of dropped rows is reported on Table.Dropped.
	SkipMalformedRows bool
}

// DefaultOptions returns the default policy: lossy-but-available.
func DefaultOptions() Options {
	return Options{SkipMalformedRows: true}
}

// Normalize parses raw into a Table according to the declared extension.
//
// Supported extensions are ".csv", ".json" and ".html" (case-insensitive,
// leading dot optional). Anything else returns ErrUnsupportedFormat.
//
// Edge cases:
//   - An empty payload yields a zero-row, zero-column table and no error.
//   - CSV delimiter policy: if the payload contains at least one ';' the file
//     is parsed semicolon-delimited, otherwise comma-delimited. This is a
//     single documented policy, not a retry cascade.
//   - Payloads that are not valid UTF-8 are decoded as ISO-8859-1 first;
//     company-registry and trade exports are routinely Latin-1.
func Normalize(name string, raw []byte, ext string, opt Options) (*Table, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv":
		return parseCSV(name, raw, opt)
	case "json":
		return parseJSON(name, raw)
	case "html", "htm":
		return parseHTML(name, raw, opt)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// decodeText converts raw bytes to a UTF-8 string, falling back to an
// ISO-8859-1 interpretation when the payload is not valid UTF-8.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// The Latin-1 decoder cannot fail on arbitrary bytes; keep the raw
		// form if it somehow does.
		return string(raw)
	}
	return string(out)
}
