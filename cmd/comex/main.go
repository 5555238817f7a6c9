// Command comex is the operational entry point for the ingestion-and-query
// core: it rebuilds a store from exported files, inspects the catalog, runs
// structured or ad-hoc queries, and writes CSV/JSON/HTML exports.
//
// Usage:
//
//	comex [flags] ingest FILE...
//	comex [flags] reassemble -out store.db PART.db...
//	comex [flags] tables
//	comex [flags] columns -table NAME
//	comex [flags] query -sql "SELECT ..."
//	comex [flags] export -table NAME [-columns A,B] [-filter COL=VALUE]
//	                     [-group DIM -sum] [-limit N]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"comex/internal/export"
	"comex/internal/ingest"
	"comex/internal/metrics"
	"comex/internal/metrics/datadog"
	"comex/internal/query"
	"comex/internal/store"

	// register all backends with the store factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "comex/internal/store/all"
)

func main() {
	var (
		dbDSN          string
		backendKind    string
		metricsBackend string
		tableFlg       string
		columnsFlg     string
		groupFlg       string
		sumFlg         bool
		limitFlg       int
		sqlFlg         string
		formatFlg      string
		outFlg         string
		filters        []string
	)

	flag.StringVar(&dbDSN, "db", "cnpj.db", "store DSN (path for sqlite; connection string otherwise)")
	flag.StringVar(&backendKind, "backend", "sqlite", "store backend kind (sqlite, postgres, mssql)")
	flag.StringVar(&metricsBackend, "metrics-backend", "none", "metrics backend to use (datadog, none)")
	flag.StringVar(&tableFlg, "table", "", "target table for columns/export")
	flag.StringVar(&columnsFlg, "columns", "", "comma-separated column selection for export (default: all)")
	flag.StringVar(&groupFlg, "group", "", "group-by dimension for aggregated export")
	flag.BoolVar(&sumFlg, "sum", false, "aggregate selected columns with SUM")
	flag.IntVar(&limitFlg, "limit", 0, "row limit; with -sum orders by the first aggregate descending")
	flag.StringVar(&sqlFlg, "sql", "", "raw query for the query command (executed verbatim)")
	flag.StringVar(&formatFlg, "format", "csv", "export format (csv, json, html)")
	flag.StringVar(&outFlg, "out", "", "output path (default: stdout; required for reassemble)")
	flag.Func("filter", "substring filter COL=VALUE (repeatable)", func(v string) error {
		if !strings.Contains(v, "=") {
			return fmt.Errorf("want COL=VALUE, got %q", v)
		}
		filters = append(filters, v)
		return nil
	})
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fatalf("missing command (ingest, reassemble, tables, columns, query, export)")
	}
	cmd, rest := args[0], args[1:]

	ctx := context.Background()

	// Decide metrics backend: flag → env → default.
	name := metricsBackend
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}
	if name == "datadog" {
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    "comex",
			FlushEvery: time.Minute,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Close(); err != nil {
					log.Printf("metrics: close error: %v", err)
				}
			}()
		}
	}

	// reassemble writes a store file directly and never opens a store.
	if cmd == "reassemble" {
		runReassemble(rest, outFlg)
		return
	}

	st, err := store.Open(ctx, store.Config{Kind: backendKind, DSN: os.ExpandEnv(dbDSN)})
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer st.Close()

	switch cmd {
	case "ingest":
		runIngest(ctx, st, rest)
	case "tables":
		runTables(ctx, st)
	case "columns":
		runColumns(ctx, st, tableFlg)
	case "query":
		runQuery(ctx, st, sqlFlg, formatFlg, outFlg)
	case "export":
		runExport(ctx, st, exportOpts{
			table:   tableFlg,
			columns: columnsFlg,
			group:   groupFlg,
			sum:     sumFlg,
			limit:   limitFlg,
			filters: filters,
			format:  formatFlg,
			out:     outFlg,
		})
	default:
		fatalf("unknown command %q", cmd)
	}
}

func runIngest(ctx context.Context, st store.Store, paths []string) {
	if len(paths) == 0 {
		fatalf("ingest: no files given")
	}

	batch := make(ingest.Batch, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			fatalf("read %s: %v", p, err)
		}
		batch = append(batch, ingest.File{Name: p, Data: data})
	}

	failed := 0
	for _, out := range ingest.NewCoordinator(st).Ingest(ctx, batch) {
		if out.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", out.File, out.Err)
			continue
		}
		msg := fmt.Sprintf("table %q replaced with %d rows", out.Table, out.Rows)
		if out.Dropped > 0 {
			msg += fmt.Sprintf(" (%d malformed rows dropped)", out.Dropped)
		}
		fmt.Println(msg)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func runReassemble(paths []string, out string) {
	if out == "" {
		fatalf("reassemble: -out is required")
	}
	if len(paths) == 0 {
		fatalf("reassemble: no chunk files given")
	}

	chunks := make([]ingest.Chunk, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			fatalf("read %s: %v", p, err)
		}
		chunks = append(chunks, ingest.Chunk{Name: p, Data: data})
	}

	n, err := ingest.ReassembleChunks(chunks, out)
	if err != nil {
		fatalf("reassemble: %v", err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", out, n)
}

func runTables(ctx context.Context, st store.Store) {
	tables, err := st.ListTables(ctx)
	if err != nil {
		fatalf("list tables: %v", err)
	}
	for _, t := range tables {
		fmt.Println(t)
	}
}

func runColumns(ctx context.Context, st store.Store, table string) {
	if table == "" {
		fatalf("columns: -table is required")
	}
	cols, err := st.Columns(ctx, table)
	if err != nil {
		fatalf("columns of %s: %v", table, err)
	}
	for _, c := range cols {
		fmt.Println(c)
	}
}

func runQuery(ctx context.Context, st store.Store, sql, format, out string) {
	if strings.TrimSpace(sql) == "" {
		fatalf("query: -sql is required")
	}

	r := &query.Runner{Store: st}
	res, err := r.Run(ctx, query.RawQuery(sql))
	if err != nil {
		fatalf("query: %v", err)
	}
	writeResult(res, format, out, "query")
}

type exportOpts struct {
	table   string
	columns string
	group   string
	sum     bool
	limit   int
	filters []string
	format  string
	out     string
}

func runExport(ctx context.Context, st store.Store, o exportOpts) {
	if o.table == "" {
		fatalf("export: -table is required")
	}

	cols := splitColumns(o.columns)
	if len(cols) == 0 {
		all, err := st.Columns(ctx, o.table)
		if err != nil {
			fatalf("columns of %s: %v", o.table, err)
		}
		cols = all
	}

	spec := query.Spec{
		Table:     o.table,
		Columns:   cols,
		GroupBy:   o.group,
		Aggregate: o.sum,
		Limit:     o.limit,
	}
	for _, f := range o.filters {
		col, val, _ := strings.Cut(f, "=")
		spec.Filters = append(spec.Filters, query.Filter{Column: col, Value: val, Op: query.OpContains})
	}

	r := &query.Runner{Store: st}
	res, err := r.RunSpec(ctx, spec)
	if err != nil {
		fatalf("export: %v", err)
	}
	writeResult(res, o.format, o.out, o.table)
}

func writeResult(res *store.QueryResult, format, out, base string) {
	data, filename, _, err := export.Download(res, export.Format(format), base)
	if err != nil {
		fatalf("export: %v", err)
	}

	if out == "" {
		_, _ = os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fatalf("write %s: %v", out, err)
	}
	log.Printf("wrote %s (%d bytes, suggested name %s)", out, len(data), filename)
}

func splitColumns(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}
