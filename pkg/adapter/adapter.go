// Package adapter provides the warehouse session contract used by playdwh.
//
// This package contains the public contract that all warehouse adapters must
// implement. Concrete adapters live in pkg/adapters/ subdirectories and register
// themselves from init().
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/playdwh/pkg/core"
	"github.com/leapstack-labs/playdwh/pkg/dialect"
)

// Adapter is one warehouse session. Statements are issued one at a time; an
// adapter never runs two statements concurrently.
type Adapter interface {
	// Connect opens the session using the provided config.
	Connect(ctx context.Context, cfg core.WarehouseConfig) error

	// Close closes the session and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows and commits it.
	Exec(ctx context.Context, sql string) error

	// Begin starts an explicit transaction on the session.
	Begin(ctx context.Context) (Tx, error)

	// Query executes a statement that returns rows. Callers close the rows.
	Query(ctx context.Context, sql string, args ...any) (*sql.Rows, error)

	// TableMetadata reads the catalog entry of a table in the dialect's default schema.
	TableMetadata(ctx context.Context, table string) (*core.TableMetadata, error)

	// Dialect returns the SQL dialect used to render statements for this warehouse.
	Dialect() *dialect.Dialect
}

// Tx is an explicit transaction.
type Tx interface {
	Exec(ctx context.Context, sql string) error
	Commit() error
	Rollback() error
}
