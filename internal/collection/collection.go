// Package collection implements the document driver for one table.
package collection

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rzpsarthak13/docshelf/internal/changefeed"
	"github.com/rzpsarthak13/docshelf/internal/codec"
	"github.com/rzpsarthak13/docshelf/internal/core"
	"github.com/rzpsarthak13/docshelf/internal/kvstore"
	"github.com/rzpsarthak13/docshelf/internal/metrics"
	"github.com/rzpsarthak13/docshelf/internal/schema"
)

// Opener creates the row store when the collection owns its pool.
type Opener func(ctx context.Context) (core.Database, error)

// Option configures a Collection.
type Option func(*Collection)

// WithCache enables the read-through document cache for _id lookups.
func WithCache(cache *kvstore.DocumentCache) Option {
	return func(c *Collection) { c.cache = cache }
}

// WithChangeQueue emits a change event per mutated document into queue.
func WithChangeQueue(queue core.ChangeQueue) Option {
	return func(c *Collection) { c.queue = queue }
}

// WithMetrics records every operation on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Collection) { c.metrics = m }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Collection) { c.now = now }
}

// Collection stores documents in one table. It starts disconnected; every
// data operation fails with core.ErrNotConnected until Connect succeeds.
type Collection struct {
	mu        sync.RWMutex
	table     string
	decl      schema.Declaration
	db        core.Database
	open      Opener
	connected bool

	translator *schema.Translator
	codec      *codec.Codec

	cache   *kvstore.DocumentCache
	queue   core.ChangeQueue
	metrics *metrics.Collector
	now     func() time.Time
}

// New creates a collection on a caller-owned row store. Disconnect leaves
// db open.
func New(table string, db core.Database, opts ...Option) *Collection {
	c := &Collection{table: table, db: db, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithOpener creates a collection that opens its own pool on Connect and
// closes it on Disconnect.
func NewWithOpener(table string, open Opener, opts ...Option) *Collection {
	c := New(table, nil, opts...)
	c.open = open
	return c
}

// Table returns the table name.
func (c *Collection) Table() string {
	return c.table
}

// Mode returns the storage mode the collection connects (or connected) with.
func (c *Collection) Mode() core.StorageMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.decl != nil {
		return core.ModeHybrid
	}
	return core.ModeSchemaless
}

// IsConnected reports whether Connect has succeeded and Disconnect has not
// been called since.
func (c *Collection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetSchema attaches a field declaration, switching the table to hybrid
// storage. A nil declaration returns the table to schemaless storage, while
// an empty non-nil one selects hybrid storage with only _extras. It only
// takes effect before Connect.
func (c *Collection) SetSchema(decl schema.Declaration) error {
	if decl != nil {
		if err := schema.ValidateDeclaration(decl); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return fmt.Errorf("%w: schema must be set before connect", core.ErrStatement)
	}
	c.decl = decl
	return nil
}

// Connect opens the row store if the collection owns it, creates the table
// for the current storage mode and the two timestamp indexes. Connecting an
// already connected collection is a no-op.
func (c *Collection) Connect(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.metrics.Observe(c.table, "connect", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	db := c.db
	if c.open != nil {
		if db, err = c.open(ctx); err != nil {
			return err
		}
	}
	if db == nil {
		return fmt.Errorf("%w: no database configured for table %s", core.ErrConnection, c.table)
	}

	release := func() {
		if c.open != nil {
			_ = db.Close()
		}
	}

	tr, err := schema.NewTranslator(db.Dialect(), c.table, c.decl)
	if err != nil {
		release()
		return err
	}

	if _, err := db.Exec(ctx, tr.CreateTable()); err != nil {
		release()
		return fmt.Errorf("failed to create table %s: %w", c.table, err)
	}
	for _, column := range []string{core.FieldCreatedAt, core.FieldUpdatedAt} {
		if _, err := db.Exec(ctx, tr.CreateIndex(column)); err != nil {
			if db.Dialect().IsIndexExists(err) {
				continue
			}
			release()
			return fmt.Errorf("failed to create index %s: %w", tr.IndexName(column), err)
		}
	}

	c.db = db
	c.translator = tr
	c.codec = codec.New(c.decl)
	c.connected = true

	log.Printf("[DOCSHELF] Connected table %s (%s mode, %s)", c.table, tr.Mode(), db.Dialect().Name())
	return nil
}

// Disconnect returns the collection to the disconnected state. It is
// idempotent. An owned pool is closed; a caller-supplied one is left open.
func (c *Collection) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false

	var err error
	if c.open != nil {
		err = c.db.Close()
		c.db = nil
	}
	log.Printf("[DOCSHELF] Disconnected table %s", c.table)
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// state is the connected view an operation works against.
type state struct {
	db         core.Database
	translator *schema.Translator
	codec      *codec.Codec
}

// acquire returns the connected state and holds the read lock until release
// is called, so Disconnect waits for in-flight operations.
func (c *Collection) acquire() (*state, func(), error) {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return nil, nil, fmt.Errorf("%w: table %s", core.ErrNotConnected, c.table)
	}
	return &state{db: c.db, translator: c.translator, codec: c.codec}, c.mu.RUnlock, nil
}

func (c *Collection) observe(operation string, start time.Time, err error) {
	c.metrics.Observe(c.table, operation, start, err)
}

func (c *Collection) emit(ctx context.Context, op core.OperationType, id string, doc core.Document) {
	if c.queue == nil {
		return
	}
	if err := c.queue.Enqueue(ctx, changefeed.NewEvent(c.table, op, id, doc)); err != nil {
		log.Printf("[DOCSHELF] Dropping %s change event for %s/%s: %v", op, c.table, id, err)
	}
}
