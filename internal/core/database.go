package core

import (
	"context"
)

// Database is the row store the document layer is built on.
// It executes parameterized statements, returns rows and supports transactions.
type Database interface {
	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// BeginTx starts a transaction on a dedicated pooled connection.
	BeginTx(ctx context.Context) (Transaction, error)

	// Ping verifies the engine is reachable.
	Ping(ctx context.Context) error

	// Dialect returns the SQL dialect used to build statements for this engine.
	Dialect() Dialect

	// Close releases the pool.
	Close() error
}

// Rows is a cursor over a query result.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Columns() ([]string, error)
	Close() error
	Err() error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Transaction is a unit of work bound to one connection.
type Transaction interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	Commit() error
	Rollback() error
}

// Dialect captures the engine-specific parts of statement building and
// error classification.
type Dialect interface {
	// Name is the registry key ("mysql", "postgres", "sqlite").
	Name() string

	// DriverName is the database/sql driver name.
	DriverName() string

	// QuoteIdent quotes a table, column or index identifier.
	QuoteIdent(name string) string

	// Placeholder returns the bind marker for the n-th (1-based) parameter.
	Placeholder(n int) string

	// ColumnTypeName returns the engine column type for t.
	ColumnTypeName(t ColumnType) string

	// IDColumnType returns the column type of the _id primary key.
	IDColumnType() string

	// OptimizeStatement and AnalyzeStatement return maintenance statements for a quoted table.
	OptimizeStatement(quotedTable string) string
	AnalyzeStatement(quotedTable string) string

	// IsIndexExists reports whether err means "index already exists".
	IsIndexExists(err error) bool

	// IsConstraint reports whether err is a uniqueness/primary key violation.
	IsConstraint(err error) bool
}
