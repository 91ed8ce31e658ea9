package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"net"
	"sync/atomic"

	"github.com/go-sql-driver/mysql"

	"github.com/rzpsarthak13/docshelf/internal/config"
	"github.com/rzpsarthak13/docshelf/internal/core"
	"github.com/rzpsarthak13/docshelf/internal/dialect"
)

// SQLDatabase implements core.Database on a database/sql pool.
type SQLDatabase struct {
	db      *sql.DB
	dialect core.Dialect
	verbose bool
	closed  atomic.Bool
}

// Open creates the pool described by cfg and verifies it with a ping.
// Failures are reported as core.ErrConnection.
func Open(ctx context.Context, cfg config.DatabaseConfig, verbose bool) (*SQLDatabase, error) {
	d, err := dialect.Get(cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConnection, err)
	}

	dsn, err := BuildDSN(d, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConnection, err)
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", core.ErrConnection, err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx := ctx
	if cfg.ConnectionTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectionTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", core.ErrConnection, err)
	}

	log.Printf("[SQL] Connected to %s (max open conns: %d)", d.Name(), cfg.MaxOpenConns)
	return New(db, d, verbose), nil
}

// New wraps an existing pool.
func New(db *sql.DB, d core.Dialect, verbose bool) *SQLDatabase {
	return &SQLDatabase{db: db, dialect: d, verbose: verbose}
}

// Dialect returns the dialect statements are built for.
func (s *SQLDatabase) Dialect() core.Dialect {
	return s.dialect
}

// DB exposes the underlying pool.
func (s *SQLDatabase) DB() *sql.DB {
	return s.db
}

// Query executes a statement that returns rows.
func (s *SQLDatabase) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: database is closed", core.ErrConnection)
	}
	s.trace(query, args)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(s.dialect, "execute query", err)
	}
	return &sqlRows{rows: rows}, nil
}

// Exec executes a statement that returns no rows.
func (s *SQLDatabase) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: database is closed", core.ErrConnection)
	}
	s.trace(query, args)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(s.dialect, "execute statement", err)
	}
	return result, nil
}

// BeginTx starts a transaction on a dedicated connection.
func (s *SQLDatabase) BeginTx(ctx context.Context) (core.Transaction, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: database is closed", core.ErrConnection)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", core.ErrConnection, err)
	}
	return &sqlTransaction{tx: tx, parent: s}, nil
}

// Ping verifies the engine is reachable.
func (s *SQLDatabase) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: database is closed", core.ErrConnection)
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", core.ErrConnection, err)
	}
	return nil
}

// Close closes the pool. Closing twice is a no-op.
func (s *SQLDatabase) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	log.Printf("[SQL] Closing %s pool", s.dialect.Name())
	return s.db.Close()
}

func (s *SQLDatabase) trace(query string, args []interface{}) {
	if s.verbose {
		log.Printf("[SQL] %s args=%v", query, args)
	}
}

// classify wraps a driver error in the document layer's error taxonomy while
// keeping the original error in the chain.
func classify(d core.Dialect, op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("failed to %s: %w", op, err)
	case d.IsConstraint(err):
		return fmt.Errorf("%w: failed to %s: %w", core.ErrConstraint, op, err)
	case isConnectionError(err):
		return fmt.Errorf("%w: failed to %s: %w", core.ErrConnection, op, err)
	default:
		return fmt.Errorf("%w: failed to %s: %w", core.ErrStatement, op, err)
	}
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// sqlRows wraps sql.Rows to implement core.Rows.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest ...interface{}) error {
	return r.rows.Scan(dest...)
}

func (r *sqlRows) Columns() ([]string, error) {
	return r.rows.Columns()
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

// sqlTransaction wraps sql.Tx to implement core.Transaction.
type sqlTransaction struct {
	tx     *sql.Tx
	parent *SQLDatabase
}

func (t *sqlTransaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return classify(t.parent.dialect, "commit transaction", err)
	}
	return nil
}

func (t *sqlTransaction) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return classify(t.parent.dialect, "rollback transaction", err)
	}
	return nil
}

func (t *sqlTransaction) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	t.parent.trace(query, args)
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(t.parent.dialect, "execute query", err)
	}
	return &sqlRows{rows: rows}, nil
}

func (t *sqlTransaction) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	t.parent.trace(query, args)
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(t.parent.dialect, "execute statement", err)
	}
	return result, nil
}
