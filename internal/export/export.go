// Package export serializes query results for download.
//
// All three formats are lossless round-trips for the scalar types the
// normalizer produces (integer, float, text, null), with one documented
// exception: HTML carries values as text, so numeric typing is re-inferred,
// not preserved, when an HTML export is normalized again.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strconv"

	"comex/internal/store"
)

// Format selects the serialization.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// Export serializes res. CSV gets a header row and default stringification
// (locale-independent); JSON is a record-oriented array of flat objects with
// nulls preserved; HTML is a single <table> in result order. No format emits
// an index column.
func Export(res *store.QueryResult, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return exportCSV(res)
	case FormatJSON:
		return exportJSON(res)
	case FormatHTML:
		return exportHTML(res)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", f)
	}
}

// Download serializes res and returns the payload together with a suggested
// filename (base + format extension) and content type.
func Download(res *store.QueryResult, f Format, base string) (data []byte, filename, contentType string, err error) {
	data, err = Export(res, f)
	if err != nil {
		return nil, "", "", err
	}
	switch f {
	case FormatCSV:
		return data, base + ".csv", "text/csv", nil
	case FormatJSON:
		return data, base + ".json", "application/json", nil
	default:
		return data, base + ".html", "text/html", nil
	}
}

func exportCSV(res *store.QueryResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(res.Columns); err != nil {
		return nil, err
	}
	rec := make([]string, len(res.Columns))
	for _, row := range res.Rows {
		for i := range res.Columns {
			if i < len(row) {
				rec[i] = cellString(row[i])
			} else {
				rec[i] = ""
			}
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// exportJSON writes objects by hand so keys keep result column order;
// encoding/json would sort map keys.
func exportJSON(res *store.QueryResult) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for ri, row := range res.Rows {
		if ri > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for ci, col := range res.Columns {
			if ci > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')

			var cell any
			if ci < len(row) {
				cell = row[ci]
			}
			val, err := json.Marshal(cell)
			if err != nil {
				return nil, fmt.Errorf("export: marshal %s: %w", col, err)
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func exportHTML(res *store.QueryResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("<table>\n<thead>\n<tr>")
	for _, col := range res.Columns {
		buf.WriteString("<th>")
		buf.WriteString(html.EscapeString(col))
		buf.WriteString("</th>")
	}
	buf.WriteString("</tr>\n</thead>\n<tbody>\n")

	for _, row := range res.Rows {
		buf.WriteString("<tr>")
		for i := range res.Columns {
			buf.WriteString("<td>")
			if i < len(row) {
				buf.WriteString(html.EscapeString(cellString(row[i])))
			}
			buf.WriteString("</td>")
		}
		buf.WriteString("</tr>\n")
	}

	buf.WriteString("</tbody>\n</table>\n")
	return buf.Bytes(), nil
}

// cellString renders a cell with locale-independent defaults: integers
// without grouping, floats in shortest form, nil as empty.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(v)
	}
}
