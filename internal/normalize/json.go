package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// parseJSON reads a record-oriented JSON array of flat objects.
//
// Semantics:
//   - Every array element must be an object; each object becomes one row.
//   - The column set is the union of observed keys, in first-seen order.
//   - Keys missing from an object become nil cells.
//   - Nested objects/arrays are opaque: they are kept as their compact JSON
//     text, which inference will classify as text.
//
// Line-delimited JSON is intentionally not supported; the record-array shape
// is the documented policy.
func parseJSON(name string, raw []byte) (*Table, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &Table{Name: name}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber() // keep numeric literals verbatim for inference

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("json: read first token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("json: record array expected, got %v", tok)
	}

	var (
		keys    []string
		seen    = map[string]int{}
		records []map[string]any
	)
	for dec.More() {
		ks, obj, err := decodeFlatObject(dec)
		if err != nil {
			return nil, err
		}
		for _, k := range ks {
			if _, ok := seen[k]; !ok {
				seen[k] = len(keys)
				keys = append(keys, k)
			}
		}
		records = append(records, obj)
	}
	if end, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("json: read array end: %w", err)
	} else if end != json.Delim(']') {
		return nil, fmt.Errorf("json: expected array end ']', got %v", end)
	}

	rows := make([][]string, len(records))
	for i, obj := range records {
		row := make([]string, len(keys))
		for j, k := range keys {
			row[j] = scalarString(obj[k])
		}
		rows[i] = row
	}

	return buildTable(name, keys, rows), nil
}

// decodeFlatObject consumes one object from dec, returning its keys in
// document order alongside the decoded values. Nested values are flattened
// to their compact JSON text.
func decodeFlatObject(dec *json.Decoder) ([]string, map[string]any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("json: decode array element: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("json: array element not an object (got %v)", tok)
	}

	var keys []string
	obj := make(map[string]any)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("json: read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("json: object key not a string (got %T)", keyTok)
		}

		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, nil, fmt.Errorf("json: decode value for %q: %w", key, err)
		}
		v, err := scalarFromRaw(val)
		if err != nil {
			return nil, nil, fmt.Errorf("json: value for %q: %w", key, err)
		}

		if _, dup := obj[key]; !dup {
			keys = append(keys, key)
		}
		obj[key] = v
	}
	if end, err := dec.Token(); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("json: read object end: %w", err)
	} else if end != json.Delim('}') {
		return nil, nil, fmt.Errorf("json: expected object end '}', got %v", end)
	}

	return keys, obj, nil
}

// scalarFromRaw turns one raw JSON value into a cell value: null stays nil,
// scalars become their natural Go form, composites keep their JSON text.
func scalarFromRaw(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '{', '[':
		return string(trimmed), nil
	default:
		var v any
		d := json.NewDecoder(bytes.NewReader(trimmed))
		d.UseNumber()
		if err := d.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// scalarString renders a decoded JSON cell as its string form for the shared
// build/inference path. nil stays "", which buildTable maps back to nil.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}
