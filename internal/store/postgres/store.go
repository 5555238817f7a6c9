package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"comex/internal/normalize"
	"comex/internal/store"
)

/*
Store implements store.Store for Postgres.

It provides:
  - Replace-table writes using DROP + CREATE + CopyFrom (COPY protocol)
  - Catalog introspection over information_schema (public schema)
  - '?' → $n placeholder rewriting at the Query boundary
*/
type Store struct {
	pool *pgxpool.Pool
}

func init() {
	store.Register("postgres", New)
}

// New creates a new Postgres-backed Store.
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ReplaceTable drops and recreates the table, then bulk-loads rows via the
// COPY protocol. Runs in one transaction.
func (s *Store) ReplaceTable(ctx context.Context, t *normalize.Table) (int64, error) {
	if len(t.Columns) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	ident := quoteIdent(t.Name)
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return 0, fmt.Errorf("postgres: drop table %s: %w", t.Name, err)
	}
	if _, err := tx.Exec(ctx, buildCreateTableSQL(t)); err != nil {
		return 0, fmt.Errorf("postgres: create table %s: %w", t.Name, err)
	}

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c.Name
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{t.Name}, cols, pgx.CopyFromRows(t.Rows))
	if err != nil {
		return 0, fmt.Errorf("postgres: copy into %s: %w", t.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema='public' AND table_type='BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tables: %w", err)
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
	rows, err := s.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema='public' AND table_name=$1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("postgres: columns of %s: %w", table, err)
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
	rows, err := s.pool.Query(ctx, rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	res := &store.QueryResult{Columns: cols}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
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
			b.WriteString(" DOUBLE PRECISION")
		default:
			b.WriteString(" TEXT")
		}
	}
	b.WriteString(")")
	return b.String()
}

// rebind rewrites '?' placeholders to Postgres $n markers. Question marks
// inside single-quoted literals are left alone.
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
			fmt.Fprintf(&b, "$%d", n)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
