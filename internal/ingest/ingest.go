// Package ingest applies normalized uploads to the schema store.
//
// A batch is a sequence of independent attempts, not a transaction: each file
// is normalized and written on its own, a failure is recorded in that file's
// outcome, and processing continues. Files are handled strictly sequentially
// so per-file error attribution stays deterministic.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"comex/internal/metrics"
	"comex/internal/normalize"
	"comex/internal/store"
)

// File is one raw upload payload.
type File struct {
	Name string
	Data []byte
}

// Batch is an ordered collection of payloads submitted together.
type Batch []File

// Outcome reports what happened to one file. Exactly one of Rows/Err is
// meaningful: Err == nil means the table was written with Rows rows.
type Outcome struct {
	File    string
	Table   string
	Rows    int64
	Dropped int
	Err     error
}

// Coordinator ingests batches into a Store.
type Coordinator struct {
	Store   store.Store
	Options normalize.Options
}

// NewCoordinator returns a Coordinator with the default lossy-parse policy.
func NewCoordinator(st store.Store) *Coordinator {
	return &Coordinator{Store: st, Options: normalize.DefaultOptions()}
}

// Ingest processes every file in the batch and returns one outcome per file,
// in batch order.
//
// The target table name is the filename stem: base name with the extension
// stripped and nothing else. The name is deliberately NOT sanitized before
// it reaches DDL — see the store package's injection note.
//
// Each successful write replaces any existing table of that name; the
// catalog change is visible to introspection immediately.
func (c *Coordinator) Ingest(ctx context.Context, batch Batch) []Outcome {
	outcomes := make([]Outcome, 0, len(batch))

	for _, f := range batch {
		ext := filepath.Ext(f.Name)
		stem := strings.TrimSuffix(filepath.Base(f.Name), ext)

		out := Outcome{File: f.Name, Table: stem}

		tbl, err := normalize.Normalize(stem, f.Data, ext, c.Options)
		if err != nil {
			out.Err = fmt.Errorf("normalize %s: %w", f.Name, err)
			metrics.IncCounter("comex.ingest.files_failed", 1, metrics.Labels{"table": stem})
			outcomes = append(outcomes, out)
			continue
		}

		rows, err := c.Store.ReplaceTable(ctx, tbl)
		if err != nil {
			out.Err = fmt.Errorf("write %s: %w", f.Name, err)
			metrics.IncCounter("comex.ingest.files_failed", 1, metrics.Labels{"table": stem})
			outcomes = append(outcomes, out)
			continue
		}

		out.Rows = rows
		out.Dropped = tbl.Dropped
		metrics.IncCounter("comex.ingest.files_ok", 1, metrics.Labels{"table": stem})
		metrics.IncCounter("comex.ingest.rows_written", float64(rows), metrics.Labels{"table": stem})
		outcomes = append(outcomes, out)
	}

	return outcomes
}
