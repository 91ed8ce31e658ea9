package core

import (
	"context"
	"time"
)

// OperationType represents the kind of change recorded in the feed.
type OperationType string

const (
	OperationInsert OperationType = "INSERT"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
	OperationClear  OperationType = "CLEAR"
	OperationDrop   OperationType = "DROP"
)

// ChangeEvent describes one mutation applied to a table.
type ChangeEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	Table     string        `json:"table"`
	Operation OperationType `json:"operation"`

	// DocumentID is empty for table-level events (CLEAR, DROP).
	DocumentID string `json:"document_id,omitempty"`

	// Document is the state after the change; nil for deletes and table-level events.
	Document Document `json:"document,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// ChangeQueue buffers change events between the driver and a sink.
type ChangeQueue interface {
	// Enqueue adds an event without blocking; a full queue returns an error.
	Enqueue(ctx context.Context, event *ChangeEvent) error

	// Dequeue returns up to batchSize events in FIFO order.
	Dequeue(ctx context.Context, batchSize int) ([]*ChangeEvent, error)

	// Size returns the number of buffered events.
	Size() int

	Close() error
}

// ChangeSink receives change events drained from a queue.
type ChangeSink interface {
	Publish(ctx context.Context, events ...*ChangeEvent) error
	Close() error
}
