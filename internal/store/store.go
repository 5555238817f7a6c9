// Package store abstracts the relational backing store that holds ingested
// tables. It exposes a backend-agnostic interface plus a kind→factory
// registry so backends self-register from init().
//
// The catalog is runtime-defined: tables exist only because an upload created
// them, and a re-upload replaces a table wholesale. There is no migration
// layer and no cross-session isolation; a replace from one session is
// immediately visible to every other.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"comex/internal/normalize"
)

// ErrUnknownTable is returned by Columns for a table absent from the catalog.
var ErrUnknownTable = errors.New("store: unknown table")

// Config is the minimal configuration needed to open a store.
//
// Kind must match a registered backend kind ("sqlite", "postgres", "mssql");
// DSN is passed through to the backend factory and validated there.
type Config struct {
	Kind string
	DSN  string
}

// QueryResult is a materialized row set. It is ephemeral: owned by the
// calling request and never written back to the store.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// Store is the backend-agnostic interface over the schema store.
//
// IMPORTANT: identifiers embedded in SQL built on top of Query are quoted per
// dialect but NOT sanitized; table and column names originate from
// user-controlled filenames and form selections. This is a known, accepted
// gap — see the query package for the safe/raw boundary.
type Store interface {
	// Close releases backend resources. Call once at end of request.
	Close()

	// ReplaceTable discards any existing table with t.Name and writes t's
	// definition and rows in its place. It returns the number of rows
	// written. A table with no columns is a no-op returning 0.
	ReplaceTable(ctx context.Context, t *normalize.Table) (int64, error)

	// ListTables returns the catalog's table names, sorted.
	ListTables(ctx context.Context) ([]string, error)

	// Columns returns table's column names in definition order, or
	// ErrUnknownTable.
	Columns(ctx context.Context, table string) ([]string, error)

	// Query executes sql with '?' placeholders for bound values. Backends
	// whose dialect uses positional markers rewrite them at this boundary.
	Query(ctx context.Context, sql string, args ...any) (*QueryResult, error)
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Call from an init() function in
// a backend package. Registering the same kind twice panics; this is
// intentional to fail fast on ambiguous backend selection.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("store: Register called with empty kind")
	}
	if f == nil {
		panic("store: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("store: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// Open constructs a Store using the registered backend factory.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("store: missing Kind")
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("store: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
