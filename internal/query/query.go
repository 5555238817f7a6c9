// Package query assembles and executes read queries over the schema store.
//
// There are two builder modes, and the distinction is a type, not a runtime
// flag:
//
//   - SafeQuery is produced by Build from a Spec. Filter values for equality
//     filters are bound as parameters. Identifiers (table, columns, group
//     dimension) and LIKE filter values are interpolated into the query text
//     because the underlying query languages cannot bind identifiers.
//   - RawQuery is a fully user-supplied query string executed verbatim. It
//     bypasses every safety behavior of the builder. This is a deliberate
//     power-user escape hatch for ad-hoc analysis, not an oversight.
//
// KNOWN, ACCEPTED GAP: table and column names originate from user-controlled
// filenames and form selections and reach query text unsanitized. Callers
// rely on unrestricted ad-hoc querying as a feature, so this package must
// not silently "fix" it; it only keeps the boundary visible in the types.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"comex/internal/store"
)

// ErrNoColumns is returned by Build for an empty column selection. The
// caller should show its "no selection" state instead of executing anything.
var ErrNoColumns = errors.New("query: no columns selected")

// Filter operators.
const (
	// OpContains builds a substring match: col LIKE '%value%'. The value is
	// interpolated as a text literal (single quotes doubled).
	OpContains = "contains"
	// OpEquals builds col = ? with the value bound as a parameter.
	OpEquals = "equals"
)

// Filter is one predicate on a column.
type Filter struct {
	Column string
	Value  string
	Op     string // OpContains (default) or OpEquals
}

// Spec describes a structured read: base table, selected columns, optional
// SUM aggregation over a group dimension, optional filters, optional top-N
// limit.
type Spec struct {
	Table   string
	Columns []string

	// GroupBy names the grouping dimension; meaningful only with Aggregate.
	GroupBy string
	// Aggregate wraps every selected column as SUM(col) AS col.
	Aggregate bool

	Filters []Filter

	// Limit > 0 adds a LIMIT and, for aggregated specs, orders by the first
	// selected aggregate descending ("top N" views). The LIMIT clause uses
	// sqlite/postgres syntax.
	Limit int
}

// SafeQuery is an executable query with bound parameters.
type SafeQuery struct {
	SQL  string
	Args []any
}

// RawQuery is executed exactly as written.
type RawQuery string

// Build constructs a SafeQuery from spec.
//
// Build does not validate columns against the live schema; a column missing
// from the target table fails at execution time. That is deliberate: the
// catalog can change between building and running, so execution is the only
// authoritative check.
func Build(spec Spec) (SafeQuery, error) {
	if strings.TrimSpace(spec.Table) == "" {
		return SafeQuery{}, fmt.Errorf("query: no table selected")
	}
	if len(spec.Columns) == 0 {
		return SafeQuery{}, ErrNoColumns
	}

	var b strings.Builder
	b.WriteString("SELECT ")

	if spec.Aggregate {
		if spec.GroupBy != "" {
			b.WriteString(spec.GroupBy)
			b.WriteString(", ")
		}
		for i, c := range spec.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "SUM(%s) AS %s", c, c)
		}
	} else {
		b.WriteString(strings.Join(spec.Columns, ", "))
	}

	b.WriteString(" FROM ")
	b.WriteString(spec.Table)

	var args []any
	if len(spec.Filters) > 0 {
		clauses := make([]string, 0, len(spec.Filters))
		for _, f := range spec.Filters {
			switch f.Op {
			case OpEquals:
				clauses = append(clauses, f.Column+" = ?")
				args = append(args, f.Value)
			default:
				clauses = append(clauses, fmt.Sprintf("%s LIKE '%%%s%%'", f.Column, escapeLiteral(f.Value)))
			}
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(clauses, " AND "))
	}

	if spec.Aggregate && spec.GroupBy != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(spec.GroupBy)
	}

	if spec.Limit > 0 {
		if spec.Aggregate {
			// Top-N views order by the first aggregated column; further ties
			// fall back to the store's natural row order.
			fmt.Fprintf(&b, " ORDER BY %s DESC", spec.Columns[0])
		}
		fmt.Fprintf(&b, " LIMIT %d", spec.Limit)
	}

	return SafeQuery{SQL: b.String(), Args: args}, nil
}

// escapeLiteral doubles single quotes so the interpolated literal itself
// stays well-formed. This keeps the literal parseable; it is not input
// sanitization (see the package note).
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Runner executes queries against a store.
type Runner struct {
	Store store.Store
}

// Run executes a raw, fully user-supplied query verbatim. Malformed SQL
// surfaces as the backend's execution error, unmodified.
func (r *Runner) Run(ctx context.Context, q RawQuery) (*store.QueryResult, error) {
	if strings.TrimSpace(string(q)) == "" {
		return nil, fmt.Errorf("query: empty query")
	}
	return r.Store.Query(ctx, string(q))
}

// RunSpec builds and executes a SafeQuery. Referencing a column absent from
// the table's current schema fails here, at execution.
func (r *Runner) RunSpec(ctx context.Context, spec Spec) (*store.QueryResult, error) {
	q, err := Build(spec)
	if err != nil {
		return nil, err
	}
	res, err := r.Store.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", spec.Table, err)
	}
	return res, nil
}
