package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a data operation is attempted before Connect.
	ErrNotConnected = errors.New("not connected")

	// ErrConnection is returned when the pool or engine is unreachable.
	ErrConnection = errors.New("connection error")

	// ErrConstraint is returned on a primary key collision.
	ErrConstraint = errors.New("constraint violation")

	// ErrStatement is returned for malformed DDL/DML or invalid declarations.
	ErrStatement = errors.New("statement error")

	// ErrSerialization is returned when a document cannot round-trip through JSON.
	ErrSerialization = errors.New("serialization error")

	// ErrTransactionDone is returned when a transaction handle is released twice.
	ErrTransactionDone = errors.New("transaction already committed or rolled back")
)

// PartialError reports a multi-record mutation that failed part way through.
// Completed records stay mutated; records after the failure are untouched.
type PartialError struct {
	Op        string
	Completed int
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s failed after %d record(s): %v", e.Op, e.Completed, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}
