package normalize

import (
	"errors"
	"testing"
)

func TestNormalizeCSV_SemicolonDelimited(t *testing.T) {
	raw := []byte("ANO;UF;VL\n2023;SP;100\n2023;RJ;200\n")

	tbl, err := Normalize("vendas", raw, ".csv", DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	wantCols := []string{"ANO", "UF", "VL"}
	gotCols := tbl.ColumnNames()
	if len(gotCols) != len(wantCols) {
		t.Fatalf("columns=%v, want %v", gotCols, wantCols)
	}
	for i := range wantCols {
		if gotCols[i] != wantCols[i] {
			t.Fatalf("columns=%v, want %v", gotCols, wantCols)
		}
	}

	if tbl.Columns[0].Type != TypeInteger {
		t.Fatalf("ANO type=%s, want integer", tbl.Columns[0].Type)
	}
	if tbl.Columns[1].Type != TypeText {
		t.Fatalf("UF type=%s, want text", tbl.Columns[1].Type)
	}
	if tbl.Columns[2].Type != TypeInteger {
		t.Fatalf("VL type=%s, want integer", tbl.Columns[2].Type)
	}

	if len(tbl.Rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(tbl.Rows))
	}
	if tbl.Rows[0][0] != int64(2023) || tbl.Rows[0][1] != "SP" || tbl.Rows[0][2] != int64(100) {
		t.Fatalf("row 0 = %#v", tbl.Rows[0])
	}
	if tbl.Rows[1][2] != int64(200) {
		t.Fatalf("row 1 = %#v", tbl.Rows[1])
	}
}

func TestNormalizeCSV_CommaDelimited(t *testing.T) {
	raw := []byte("name,score\nalice,1.5\nbob,2\n")

	tbl, err := Normalize("scores", raw, "csv", DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(tbl.Columns) != 2 {
		t.Fatalf("columns=%v", tbl.ColumnNames())
	}
	if tbl.Columns[1].Type != TypeFloat {
		t.Fatalf("score type=%s, want float", tbl.Columns[1].Type)
	}
	if tbl.Rows[0][1] != 1.5 {
		t.Fatalf("row 0 score = %#v", tbl.Rows[0][1])
	}
	if tbl.Rows[1][1] != 2.0 {
		t.Fatalf("row 1 score = %#v", tbl.Rows[1][1])
	}
}

func TestNormalizeCSV_RaggedRowsDropped(t *testing.T) {
	raw := []byte("a;b\n1;2\nonly-one-field\n3;4\n")

	tbl, err := Normalize("t", raw, ".csv", DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(tbl.Rows))
	}
	if tbl.Dropped != 1 {
		t.Fatalf("Dropped=%d, want 1", tbl.Dropped)
	}
}

func TestNormalizeCSV_StrictModeFailsOnRaggedRow(t *testing.T) {
	raw := []byte("a;b\n1;2\nonly-one-field\n")

	_, err := Normalize("t", raw, ".csv", Options{SkipMalformedRows: false})
	if err == nil {
		t.Fatalf("expected error in strict mode")
	}
}

func TestNormalizeCSV_EmptyFile(t *testing.T) {
	tbl, err := Normalize("empty", nil, ".csv", DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(tbl.Columns) != 0 || len(tbl.Rows) != 0 {
		t.Fatalf("expected empty table, got %d cols %d rows", len(tbl.Columns), len(tbl.Rows))
	}
}

func TestNormalizeCSV_EmptyCellsAreNull(t *testing.T) {
	raw := []byte("a,b\n1,\n2,x\n")

	tbl, err := Normalize("t", raw, ".csv", DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if tbl.Rows[0][1] != nil {
		t.Fatalf("empty cell = %#v, want nil", tbl.Rows[0][1])
	}
	// Column a must still infer integer despite no nulls; column b is text.
	if tbl.Columns[0].Type != TypeInteger {
		t.Fatalf("a type=%s", tbl.Columns[0].Type)
	}
	if tbl.Columns[1].Type != TypeText {
		t.Fatalf("b type=%s", tbl.Columns[1].Type)
	}
}

func TestNormalizeCSV_Latin1Fallback(t *testing.T) {
	// "município;ação" encoded as ISO-8859-1 (invalid as UTF-8).
	raw := []byte{'m', 'u', 'n', 'i', 'c', 0xED, 'p', 'i', 'o', ';', 'a', 0xE7, 0xE3, 'o', '\n', 'x', ';', 'y', '\n'}

	tbl, err := Normalize("t", raw, ".csv", DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := tbl.Columns[0].Name; got != "município" {
		t.Fatalf("column 0 = %q, want município", got)
	}
	if got := tbl.Columns[1].Name; got != "ação" {
		t.Fatalf("column 1 = %q, want ação", got)
	}
}

func TestNormalizeJSON_RecordArray(t *testing.T) {
	raw := []byte(`[{"a": 1, "b": "x"}, {"b": "y", "c": 2.5}]`)

	tbl, err := Normalize("t", raw, ".json", DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	// Union of keys in first-seen order.
	want := []string{"a", "b", "c"}
	got := tbl.ColumnNames()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("columns=%v, want %v", got, want)
	}

	// Missing keys are nulls.
	if tbl.Rows[0][2] != nil {
		t.Fatalf("row 0 c = %#v, want nil", tbl.Rows[0][2])
	}
	if tbl.Rows[1][0] != nil {
		t.Fatalf("row 1 a = %#v, want nil", tbl.Rows[1][0])
	}

	if tbl.Columns[0].Type != TypeInteger {
		t.Fatalf("a type=%s", tbl.Columns[0].Type)
	}
	if tbl.Columns[2].Type != TypeFloat {
		t.Fatalf("c type=%s", tbl.Columns[2].Type)
	}
	if tbl.Rows[1][2] != 2.5 {
		t.Fatalf("row 1 c = %#v", tbl.Rows[1][2])
	}
}

func TestNormalizeJSON_RootObjectRejected(t *testing.T) {
	_, err := Normalize("t", []byte(`{"a": 1}`), ".json", DefaultOptions())
	if err == nil {
		t.Fatalf("expected error for non-array root")
	}
}

func TestNormalizeJSON_Empty(t *testing.T) {
	tbl, err := Normalize("t", []byte("  "), ".json", DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(tbl.Rows) != 0 {
		t.Fatalf("rows=%d, want 0", len(tbl.Rows))
	}
}

func TestNormalizeHTML_FirstTableWins(t *testing.T) {
	raw := []byte(`<html><body>
<table><tr><th>a</th><th>b</th></tr><tr><td>1</td><td>x</td></tr></table>
<table><tr><th>z</th></tr><tr><td>9</td></tr></table>
</body></html>`)

	tbl, err := Normalize("t", raw, ".html", DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	cols := tbl.ColumnNames()
	if len(cols) != 2 || cols[0] != "a" || cols[1] != "b" {
		t.Fatalf("columns=%v, want [a b]", cols)
	}
	if len(tbl.Rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(tbl.Rows))
	}
	if tbl.Rows[0][0] != int64(1) || tbl.Rows[0][1] != "x" {
		t.Fatalf("row 0 = %#v", tbl.Rows[0])
	}
}

func TestNormalizeHTML_NoTable(t *testing.T) {
	_, err := Normalize("t", []byte("<html><body><p>hi</p></body></html>"), ".html", DefaultOptions())
	if !errors.Is(err, ErrNoTableFound) {
		t.Fatalf("err=%v, want ErrNoTableFound", err)
	}
}

func TestNormalize_UnsupportedFormat(t *testing.T) {
	_, err := Normalize("t", []byte("x"), ".xlsx", DefaultOptions())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err=%v, want ErrUnsupportedFormat", err)
	}
}

func TestInferColumnTypes(t *testing.T) {
	tests := []struct {
		name string
		rows [][]any
		want []string
	}{
		{
			name: "all_integers",
			rows: [][]any{{"1"}, {"2"}},
			want: []string{TypeInteger},
		},
		{
			name: "mixed_numeric_is_float",
			rows: [][]any{{"1"}, {"2.5"}},
			want: []string{TypeFloat},
		},
		{
			name: "one_text_value_poisons_column",
			rows: [][]any{{"1"}, {"x"}},
			want: []string{TypeText},
		},
		{
			name: "nulls_ignored",
			rows: [][]any{{nil}, {"3"}},
			want: []string{TypeInteger},
		},
		{
			name: "all_null_is_text",
			rows: [][]any{{nil}, {nil}},
			want: []string{TypeText},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := inferColumnTypes(1, tc.rows)
			if got[0] != tc.want[0] {
				t.Fatalf("inferColumnTypes=%v, want %v", got, tc.want)
			}
		})
	}
}
