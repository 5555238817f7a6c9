package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"comex/internal/normalize"
	"comex/internal/store"
)

type fakeStore struct {
	replaced []*normalize.Table
	failOn   string // table name that triggers a write error
}

func (f *fakeStore) Close() {}

func (f *fakeStore) ReplaceTable(_ context.Context, t *normalize.Table) (int64, error) {
	if t.Name == f.failOn {
		return 0, errors.New("boom")
	}
	f.replaced = append(f.replaced, t)
	return int64(len(t.Rows)), nil
}

func (f *fakeStore) ListTables(context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) Columns(context.Context, string) ([]string, error) {
	return nil, store.ErrUnknownTable
}

func (f *fakeStore) Query(context.Context, string, ...any) (*store.QueryResult, error) {
	return &store.QueryResult{}, nil
}

func TestIngest_IndependentOutcomes(t *testing.T) {
	fs := &fakeStore{}
	c := NewCoordinator(fs)

	batch := Batch{
		{Name: "/tmp/uploads/vendas.csv", Data: []byte("ANO;UF;VL\n2023;SP;100\n")},
		{Name: "broken.xlsx", Data: []byte("not tabular")},
		{Name: "itens.json", Data: []byte(`[{"id": 1}]`)},
	}

	outs := c.Ingest(context.Background(), batch)
	if len(outs) != 3 {
		t.Fatalf("outcomes=%d, want 3", len(outs))
	}

	if outs[0].Err != nil {
		t.Fatalf("vendas.csv: %v", outs[0].Err)
	}
	if outs[0].Table != "vendas" {
		t.Fatalf("table=%q, want vendas", outs[0].Table)
	}
	if outs[0].Rows != 1 {
		t.Fatalf("rows=%d, want 1", outs[0].Rows)
	}

	if outs[1].Err == nil {
		t.Fatalf("broken.xlsx: expected error")
	}
	if !errors.Is(outs[1].Err, normalize.ErrUnsupportedFormat) {
		t.Fatalf("broken.xlsx err=%v, want ErrUnsupportedFormat", outs[1].Err)
	}

	if outs[2].Err != nil {
		t.Fatalf("itens.json: %v", outs[2].Err)
	}
	if outs[2].Table != "itens" {
		t.Fatalf("table=%q, want itens", outs[2].Table)
	}

	// The failed file must not have reached the store.
	if len(fs.replaced) != 2 {
		t.Fatalf("replaced=%d tables, want 2", len(fs.replaced))
	}
}

func TestIngest_WriteFailureRecordedAndContinues(t *testing.T) {
	fs := &fakeStore{failOn: "a"}
	c := NewCoordinator(fs)

	batch := Batch{
		{Name: "a.csv", Data: []byte("x\n1\n")},
		{Name: "b.csv", Data: []byte("x\n2\n")},
	}

	outs := c.Ingest(context.Background(), batch)
	if outs[0].Err == nil {
		t.Fatalf("a.csv: expected write error")
	}
	if outs[1].Err != nil {
		t.Fatalf("b.csv: %v", outs[1].Err)
	}
	if len(fs.replaced) != 1 || fs.replaced[0].Name != "b" {
		t.Fatalf("replaced=%v", fs.replaced)
	}
}

func TestIngest_DroppedRowsSurfaceInOutcome(t *testing.T) {
	fs := &fakeStore{}
	c := NewCoordinator(fs)

	outs := c.Ingest(context.Background(), Batch{
		{Name: "t.csv", Data: []byte("a;b\n1;2\nragged\n3;4\n")},
	})
	if outs[0].Err != nil {
		t.Fatalf("t.csv: %v", outs[0].Err)
	}
	if outs[0].Rows != 2 || outs[0].Dropped != 1 {
		t.Fatalf("rows=%d dropped=%d, want 2/1", outs[0].Rows, outs[0].Dropped)
	}
}

func TestReassembleChunks(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "store.db")

	// Deliberately out of order; lexical name order must win.
	chunks := []Chunk{
		{Name: "store_part2.db", Data: []byte("WORLD")},
		{Name: "store_part1.db", Data: []byte("HELLO ")},
	}

	n, err := ReassembleChunks(chunks, dst)
	if err != nil {
		t.Fatalf("ReassembleChunks: %v", err)
	}
	if n != 11 {
		t.Fatalf("written=%d, want 11", n)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(got) != "HELLO WORLD" {
		t.Fatalf("dst=%q, want HELLO WORLD", got)
	}
}

func TestReassembleChunks_Empty(t *testing.T) {
	_, err := ReassembleChunks(nil, filepath.Join(t.TempDir(), "x.db"))
	if !errors.Is(err, ErrNoChunks) {
		t.Fatalf("err=%v, want ErrNoChunks", err)
	}
}

func TestReassembleChunks_RejectsNonDBPart(t *testing.T) {
	_, err := ReassembleChunks([]Chunk{{Name: "part1.zip"}}, filepath.Join(t.TempDir(), "x.db"))
	if err == nil {
		t.Fatalf("expected error for non-.db part")
	}
}
