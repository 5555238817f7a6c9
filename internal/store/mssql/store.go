package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"comex/internal/normalize"
	"comex/internal/store"
)

// Store implements store.Store for Microsoft SQL Server.
//
// Dialect notes:
//   - Identifiers are bracket-quoted ([x], ] doubled).
//   - Placeholders are @p1..@pN; the Query boundary rewrites the builder's
//     '?' markers.
//   - Replace uses OBJECT_ID-guarded DROP, since DROP TABLE IF EXISTS is
//     only available on newer server versions.
//
// Note on driver registration:
//   - This package intentionally does NOT blank-import a SQL Server driver.
//     The application must register the "sqlserver" driver elsewhere (the
//     store/all package does).
type Store struct {
	db dbConn
}

// dbConn is the minimal database/sql surface the store needs. It exists so
// unit tests can substitute a fake without a running server.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
	Close() error
}

func init() {
	store.Register("mssql", New)
}

// New constructs a Store using database/sql and the "sqlserver" driver.
// Connectivity is validated via PingContext.
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Store{db: raw}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

// maxBindVars keeps batched INSERTs under SQL Server's 2100 parameter limit,
// and under its 1000-row VALUES limit for narrow tables.
const (
	maxBindVars  = 2000
	maxBatchRows = 1000
)

func (s *Store) ReplaceTable(ctx context.Context, t *normalize.Table) (int64, error) {
	if len(t.Columns) == 0 {
		return 0, nil
	}

	ident := quoteIdent(t.Name)
	drop := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s",
		strings.ReplaceAll(t.Name, "'", "''"), ident)
	if _, err := s.db.ExecContext(ctx, drop); err != nil {
		return 0, fmt.Errorf("mssql: drop table %s: %w", t.Name, err)
	}
	if _, err := s.db.ExecContext(ctx, buildCreateTableSQL(t)); err != nil {
		return 0, fmt.Errorf("mssql: create table %s: %w", t.Name, err)
	}

	batch := maxBindVars / len(t.Columns)
	if batch < 1 {
		batch = 1
	}
	if batch > maxBatchRows {
		batch = maxBatchRows
	}

	var written int64
	for start := 0; start < len(t.Rows); start += batch {
		end := start + batch
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		if err := s.insertBatch(ctx, ident, t.Columns, t.Rows[start:end]); err != nil {
			return 0, fmt.Errorf("mssql: insert into %s: %w", t.Name, err)
		}
		written += int64(end - start)
	}
	return written, nil
}

func (s *Store) insertBatch(ctx context.Context, ident string, cols []normalize.Column, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ident)
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(c.Name))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(cols))
	p := 0
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			p++
			fmt.Fprintf(&b, "@p%d", p)
			if j < len(r) {
				args = append(args, r[j])
			} else {
				args = append(args, nil)
			}
		}
		b.WriteString(")")
	}

	_, err := s.db.ExecContext(ctx, b.String(), args...)
	return err
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_TYPE='BASE TABLE' ORDER BY TABLE_NAME`)
	if err != nil {
		return nil, fmt.Errorf("mssql: list tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_NAME=@p1 ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, fmt.Errorf("mssql: columns of %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownTable, table)
	}
	return out, nil
}

func (s *Store) Query(ctx context.Context, query string, args ...any) (*store.QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("mssql: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &store.QueryResult{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

func quoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

func buildCreateTableSQL(t *normalize.Table) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quoteIdent(t.Name))
	b.WriteString(" (")
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(c.Name))
		switch c.Type {
		case normalize.TypeInteger:
			b.WriteString(" BIGINT")
		case normalize.TypeFloat:
			b.WriteString(" FLOAT")
		default:
			b.WriteString(" NVARCHAR(MAX)")
		}
	}
	b.WriteString(")")
	return b.String()
}

// rebind rewrites '?' placeholders to @pN markers, leaving question marks
// inside single-quoted literals alone.
func rebind(query string) string {
	var (
		b        strings.Builder
		n        int
		inString bool
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		switch {
		case r == '\'':
			inString = !inString
			b.WriteRune(r)
		case r == '?' && !inString:
			n++
			fmt.Fprintf(&b, "@p%d", n)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
