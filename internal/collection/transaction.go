package collection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

// Tx is an opaque handle on a transaction bound to one pooled connection.
// The connection goes back to the pool exactly once, on the first Commit or
// Rollback; any later release or statement fails with core.ErrTransactionDone.
type Tx struct {
	tx    core.Transaction
	st    *state
	now   func() time.Time
	table string
	done  atomic.Bool
}

// Exec runs a statement inside the transaction.
func (t *Tx) Exec(ctx context.Context, stmt string, params ...interface{}) (core.Result, error) {
	if t.done.Load() {
		return nil, core.ErrTransactionDone
	}
	return t.tx.Exec(ctx, stmt, params...)
}

// Query runs a statement inside the transaction and returns rows as column maps.
func (t *Tx) Query(ctx context.Context, stmt string, params ...interface{}) ([]map[string]interface{}, error) {
	if t.done.Load() {
		return nil, core.ErrTransactionDone
	}
	rows, err := t.tx.Query(ctx, stmt, params...)
	if err != nil {
		return nil, err
	}
	return scanMaps(rows)
}

// Set inserts a document inside the transaction. Unlike Collection.Set it
// neither caches the document nor emits a change event, since the insert may
// still be rolled back.
func (t *Tx) Set(ctx context.Context, doc map[string]interface{}) (core.Document, error) {
	if t.done.Load() {
		return nil, core.ErrTransactionDone
	}
	normalized, err := t.st.codec.Normalize(doc)
	if err != nil {
		return nil, err
	}
	stamped := t.st.codec.Stamp(normalized, t.now())
	row, err := t.st.codec.Encode(stamped)
	if err != nil {
		return nil, err
	}
	if _, err := t.tx.Exec(ctx, t.st.translator.Insert(), row.InsertArgs()...); err != nil {
		return nil, fmt.Errorf("failed to insert document into %s: %w", t.table, err)
	}
	return t.st.codec.Materialize(stamped)
}

func (t *Tx) release(commit bool) error {
	if !t.done.CompareAndSwap(false, true) {
		return core.ErrTransactionDone
	}
	if commit {
		if err := t.tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// BeginTransaction acquires a dedicated connection. The caller must release
// it with Commit or Rollback. Document operations on the collection do not
// join the transaction; statements must go through the handle.
func (c *Collection) BeginTransaction(ctx context.Context) (*Tx, error) {
	st, release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := st.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, st: st, now: c.now, table: c.table}, nil
}

// Commit commits tx and releases its connection.
func (c *Collection) Commit(tx *Tx) error {
	if tx == nil {
		return core.ErrTransactionDone
	}
	return tx.release(true)
}

// Rollback rolls tx back and releases its connection.
func (c *Collection) Rollback(tx *Tx) error {
	if tx == nil {
		return core.ErrTransactionDone
	}
	return tx.release(false)
}

// WithTransaction runs fn inside a transaction, committing when fn returns
// nil and rolling back when it returns an error or panics.
func (c *Collection) WithTransaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := c.BeginTransaction(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.release(false)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.release(false); rbErr != nil && !errors.Is(rbErr, core.ErrTransactionDone) {
			log.Printf("[DOCSHELF] Rollback on %s failed: %v", c.table, rbErr)
		}
		return err
	}
	return tx.release(true)
}
