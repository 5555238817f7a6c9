package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"comex/internal/normalize"
	"comex/internal/store"
)

// Store implements store.Store for SQLite.
//
// Key design points:
//   - SQLite's catalog is sqlite_master plus the pragma_table_info table
//     function; the latter accepts a bound parameter, so introspection never
//     interpolates the table name.
//   - Inserts are batched multi-row VALUES, chunked to stay well under
//     SQLITE_MAX_VARIABLE_NUMBER.
type Store struct {
	db *sql.DB
}

// maxBindVars keeps each batched INSERT under sqlite's historical 999
// variable limit with margin.
const maxBindVars = 800

func init() {
	store.Register("sqlite", New)
}

func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

// ReplaceTable drops any prior definition of t.Name and recreates it from t.
// The drop and create run in one transaction so readers never observe a
// half-replaced table within this connection.
func (s *Store) ReplaceTable(ctx context.Context, t *normalize.Table) (int64, error) {
	if len(t.Columns) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	ident := sqlIdent(t.Name)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return 0, fmt.Errorf("sqlite: drop table %s: %w", t.Name, err)
	}
	if _, err := tx.ExecContext(ctx, buildCreateTableSQL(t)); err != nil {
		return 0, fmt.Errorf("sqlite: create table %s: %w", t.Name, err)
	}

	var written int64
	batch := maxBindVars / len(t.Columns)
	if batch < 1 {
		batch = 1
	}
	for start := 0; start < len(t.Rows); start += batch {
		end := start + batch
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		n, err := insertBatch(ctx, tx, ident, t.Columns, t.Rows[start:end])
		if err != nil {
			return 0, fmt.Errorf("sqlite: insert into %s: %w", t.Name, err)
		}
		written += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, ident string, cols []normalize.Column, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ident)
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c.Name))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(cols))
	ph := "(" + strings.TrimRight(strings.Repeat("?,", len(cols)), ",") + ")"
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ph)
		args = append(args, r...)
	}

	res, err := tx.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// modernc.org/sqlite supports RowsAffected; fall back to the batch size.
		return int64(len(rows)), nil
	}
	return n, nil
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
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
		`SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: columns of %s: %w", table, err)
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
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
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

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// buildCreateTableSQL maps inferred types onto SQLite affinities:
// integer→INTEGER, float→REAL, everything else TEXT.
func buildCreateTableSQL(t *normalize.Table) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(sqlIdent(t.Name))
	b.WriteString(" (")
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c.Name))
		switch c.Type {
		case normalize.TypeInteger:
			b.WriteString(" INTEGER")
		case normalize.TypeFloat:
			b.WriteString(" REAL")
		default:
			b.WriteString(" TEXT")
		}
	}
	b.WriteString(")")
	return b.String()
}
