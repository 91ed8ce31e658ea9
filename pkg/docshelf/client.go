package docshelf

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"

	"github.com/rzpsarthak13/docshelf/internal/changefeed"
	"github.com/rzpsarthak13/docshelf/internal/collection"
	"github.com/rzpsarthak13/docshelf/internal/core"
	"github.com/rzpsarthak13/docshelf/internal/database"
	"github.com/rzpsarthak13/docshelf/internal/kvstore"
	"github.com/rzpsarthak13/docshelf/internal/metrics"
)

// TableOption customizes a table obtained from a Client.
type TableOption func(*tableSettings)

type tableSettings struct {
	decl    Declaration
	noCache bool
}

// WithSchema declares typed columns for the table, overriding the
// configuration file.
func WithSchema(decl Declaration) TableOption {
	return func(s *tableSettings) { s.decl = decl }
}

// WithoutCache skips the document cache for the table.
func WithoutCache() TableOption {
	return func(s *tableSettings) { s.noCache = true }
}

// Client shares one connection pool, cache, change feed sink and metrics
// registry across every table it opens. Each table gets its own change
// queue and relay.
type Client struct {
	mu      sync.Mutex
	config  *Config
	db      core.Database
	cache   core.KVStore
	sink    core.ChangeSink
	metrics *metrics.Collector

	tables  map[string]*clientTable
	started bool
	runCtx  context.Context
}

type clientTable struct {
	coll  *collection.Collection
	queue core.ChangeQueue
	relay *changefeed.Relay
}

// NewClient opens the row store described by cfg along with the optional
// cache, change feed sink and metrics.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	db, err := database.Open(ctx, cfg.Database, cfg.Logging.Verbose)
	if err != nil {
		return nil, err
	}
	return newClient(cfg, db)
}

// NewClientWithDatabase builds a client on an existing row store. Close
// closes db.
func NewClientWithDatabase(cfg *Config, db core.Database) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return newClient(cfg, db)
}

func newClient(cfg *Config, db core.Database) (*Client, error) {
	c := &Client{
		config: cfg,
		db:     db,
		tables: make(map[string]*clientTable),
	}

	if cfg.Cache.Enabled {
		store, err := kvstore.Create(cfg.Cache)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create document cache: %w", err)
		}
		c.cache = store
	}

	if cfg.ChangeFeed.Enabled {
		sink, err := changefeed.NewSink(cfg.ChangeFeed)
		if err != nil {
			c.closeShared()
			return nil, fmt.Errorf("failed to create change feed sink: %w", err)
		}
		c.sink = sink
	}

	if cfg.Metrics.Enabled {
		c.metrics = metrics.New(nil, cfg.Metrics.Namespace)
	}

	log.Printf("[DOCSHELF] Client ready (database: %s, cache: %v, changefeed: %v)",
		db.Dialect().Name(), cfg.Cache.Enabled, cfg.ChangeFeed.Enabled)
	return c, nil
}

// Table returns the connected driver for name, creating and connecting it
// on first use. Options only apply on first use.
func (c *Client) Table(ctx context.Context, name string, opts ...TableOption) (Driver, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.tables[name]; ok {
		return t.coll, nil
	}

	settings := tableSettings{decl: declarationFor(c.config, name)}
	if tc, ok := c.config.Tables[name]; ok && tc.DisableCache {
		settings.noCache = true
	}
	for _, opt := range opts {
		opt(&settings)
	}

	var collOpts []collection.Option
	if c.metrics != nil {
		collOpts = append(collOpts, collection.WithMetrics(c.metrics))
	}
	if c.cache != nil && !settings.noCache {
		collOpts = append(collOpts, collection.WithCache(kvstore.NewDocumentCache(c.cache, name, c.config.Cache.TTL)))
	}

	t := &clientTable{}
	if c.sink != nil {
		feedCfg := c.config.ChangeFeed
		feedCfg.RedisKey = feedCfg.RedisKey + ":" + name
		queue, err := changefeed.NewQueue(feedCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create change queue for %s: %w", name, err)
		}
		t.queue = queue
		t.relay = changefeed.NewRelay(name, queue, c.sink, changefeed.RelayConfigFrom(feedCfg))
		collOpts = append(collOpts, collection.WithChangeQueue(queue))
	}

	t.coll = collection.New(name, c.db, collOpts...)
	if settings.decl != nil {
		if err := t.coll.SetSchema(settings.decl); err != nil {
			t.closeQueue()
			return nil, err
		}
	}
	if err := t.coll.Connect(ctx); err != nil {
		t.closeQueue()
		return nil, err
	}

	if c.started && t.relay != nil {
		if err := t.relay.Start(c.runCtx); err != nil {
			if derr := t.coll.Disconnect(ctx); derr != nil {
				log.Printf("[DOCSHELF] Disconnect %s after failed start: %v", name, derr)
			}
			t.closeQueue()
			return nil, fmt.Errorf("failed to start relay for %s: %w", name, err)
		}
	}
	if err := c.metrics.TrackQueue(name, t.queue); err != nil {
		log.Printf("[DOCSHELF] Cannot export queue depth for %s: %v", name, err)
	}
	c.tables[name] = t
	return t.coll, nil
}

// TableNames returns the names of the tables opened so far, sorted.
func (c *Client) TableNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches the change feed relays of every open table and of tables
// opened later. It is a no-op without a change feed.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	for name, t := range c.tables {
		if t.relay == nil {
			continue
		}
		if err := t.relay.Start(ctx); err != nil {
			return fmt.Errorf("failed to start relay for %s: %w", name, err)
		}
	}
	c.started = true
	c.runCtx = ctx
	return nil
}

// Stop halts the relays, publishing events still buffered.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.started = false

	var errs []error
	for name, t := range c.tables {
		if t.relay == nil {
			continue
		}
		if err := t.relay.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("relay %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// IsRunning reports whether the relays are running.
func (c *Client) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Ping checks the row store.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.Ping(ctx)
}

// MetricsHandler serves the client's Prometheus metrics, or nil when
// metrics are disabled.
func (c *Client) MetricsHandler() http.Handler {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.Handler()
}

// Close stops the relays, disconnects every table and releases the pool,
// cache and sink.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if err := c.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	c.mu.Lock()
	for name, t := range c.tables {
		if err := t.coll.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("table %s: %w", name, err))
		}
		t.closeQueue()
	}
	c.tables = make(map[string]*clientTable)
	c.mu.Unlock()

	if err := c.closeShared(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Client) closeShared() error {
	var errs []error
	if c.sink != nil {
		if err := c.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink: %w", err))
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	return errors.Join(errs...)
}

func (t *clientTable) closeQueue() {
	if t.queue != nil {
		_ = t.queue.Close()
	}
}
