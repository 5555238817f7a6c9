package export

import (
	"encoding/json"
	"strings"
	"testing"

	"comex/internal/normalize"
	"comex/internal/store"
)

func sampleResult() *store.QueryResult {
	return &store.QueryResult{
		Columns: []string{"ANO", "UF", "VL"},
		Rows: [][]any{
			{int64(2023), "SP", 100.5},
			{int64(2023), "RJ", nil},
		},
	}
}

func TestExportCSV(t *testing.T) {
	data, err := Export(sampleResult(), FormatCSV)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := "ANO,UF,VL\n2023,SP,100.5\n2023,RJ,\n"
	if string(data) != want {
		t.Fatalf("csv=%q, want %q", data, want)
	}
}

func TestExportJSON(t *testing.T) {
	data, err := Export(sampleResult(), FormatJSON)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	want := `[{"ANO":2023,"UF":"SP","VL":100.5},{"ANO":2023,"UF":"RJ","VL":null}]`
	if string(data) != want {
		t.Fatalf("json=%s, want %s", data, want)
	}

	// Must also be valid JSON.
	var v []map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(v) != 2 {
		t.Fatalf("records=%d, want 2", len(v))
	}
}

func TestExportJSON_EmptyResult(t *testing.T) {
	data, err := Export(&store.QueryResult{Columns: []string{"a"}}, FormatJSON)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("json=%s, want []", data)
	}
}

func TestExportHTML(t *testing.T) {
	res := &store.QueryResult{
		Columns: []string{"name", "note"},
		Rows:    [][]any{{"a<b", "x&y"}},
	}

	data, err := Export(res, FormatHTML)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(data)

	if strings.Count(out, "<table>") != 1 {
		t.Fatalf("want exactly one table, got:\n%s", out)
	}
	if !strings.Contains(out, "<th>name</th><th>note</th>") {
		t.Fatalf("missing header row:\n%s", out)
	}
	if !strings.Contains(out, "<td>a&lt;b</td><td>x&amp;y</td>") {
		t.Fatalf("cells not escaped:\n%s", out)
	}
	// No index column: cell count per row matches column count.
	if strings.Count(out, "<td>") != 2 {
		t.Fatalf("unexpected extra cells:\n%s", out)
	}
}

func TestExport_UnsupportedFormat(t *testing.T) {
	if _, err := Export(sampleResult(), Format("xlsx")); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestDownload(t *testing.T) {
	tests := []struct {
		format      Format
		wantName    string
		wantContent string
	}{
		{FormatCSV, "vendas.csv", "text/csv"},
		{FormatJSON, "vendas.json", "application/json"},
		{FormatHTML, "vendas.html", "text/html"},
	}

	for _, tc := range tests {
		data, name, ct, err := Download(sampleResult(), tc.format, "vendas")
		if err != nil {
			t.Fatalf("Download(%s): %v", tc.format, err)
		}
		if len(data) == 0 {
			t.Fatalf("Download(%s): empty payload", tc.format)
		}
		if name != tc.wantName {
			t.Fatalf("Download(%s): name=%q, want %q", tc.format, name, tc.wantName)
		}
		if ct != tc.wantContent {
			t.Fatalf("Download(%s): content type=%q, want %q", tc.format, ct, tc.wantContent)
		}
	}
}

// An exported CSV must normalize back into the same columns, rows and types.
func TestExportCSV_RoundTripsThroughNormalize(t *testing.T) {
	data, err := Export(sampleResult(), FormatCSV)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	tbl, err := normalize.Normalize("roundtrip", data, ".csv", normalize.DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	cols := tbl.ColumnNames()
	if len(cols) != 3 || cols[0] != "ANO" || cols[1] != "UF" || cols[2] != "VL" {
		t.Fatalf("columns=%v", cols)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(tbl.Rows))
	}
	if tbl.Rows[0][0] != int64(2023) || tbl.Rows[0][2] != 100.5 {
		t.Fatalf("row 0 = %#v", tbl.Rows[0])
	}
	if tbl.Rows[1][2] != nil {
		t.Fatalf("null lost in round trip: %#v", tbl.Rows[1][2])
	}
}
