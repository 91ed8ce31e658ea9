package core

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by a KVStore when the key is absent or expired.
var ErrKeyNotFound = errors.New("key not found")

// KVStore defines the interface for the document cache.
// Implementations back onto Redis, DynamoDB or similar stores.
type KVStore interface {
	// Get retrieves a value by key from the store.
	// Returns ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair with an optional TTL.
	// If ttl is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the store.
	Delete(ctx context.Context, key string) error

	// Close closes the connection to the KV store and releases resources.
	Close() error
}
