package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

// DocumentCache stores materialized documents by identity on top of a KVStore.
// Errors from the backing store are logged and swallowed: a cache miss is
// always a safe answer.
//
// Keys carry a per-table generation kept in the store itself, so Reset
// orphans every cached document of the table at once, across processes.
type DocumentCache struct {
	store core.KVStore
	table string
	ttl   time.Duration
	now   func() time.Time
}

// NewDocumentCache creates a cache for one table.
func NewDocumentCache(store core.KVStore, table string, ttl time.Duration) *DocumentCache {
	return &DocumentCache{store: store, table: table, ttl: ttl, now: time.Now}
}

// GenerationKey returns the key holding the table's current generation.
func (c *DocumentCache) GenerationKey() string {
	return fmt.Sprintf("docshelf:%s:generation", c.table)
}

// Key returns the cache key of a document in the table's current generation.
func (c *DocumentCache) Key(ctx context.Context, id string) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("docshelf:%s:%s:%s", c.table, gen, id), nil
}

func (c *DocumentCache) generation(ctx context.Context) (string, error) {
	data, err := c.store.Get(ctx, c.GenerationKey())
	if errors.Is(err, core.ErrKeyNotFound) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Get returns the cached document, or nil on a miss.
func (c *DocumentCache) Get(ctx context.Context, id string) core.Document {
	key, err := c.Key(ctx, id)
	if err != nil {
		log.Printf("[CACHE] Generation lookup for %s failed: %v", c.table, err)
		return nil
	}
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, core.ErrKeyNotFound) {
			log.Printf("[CACHE] Get %s failed: %v", id, err)
		}
		return nil
	}
	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("[CACHE] Discarding undecodable entry %s: %v", id, err)
		c.delete(ctx, key)
		return nil
	}
	return doc
}

// Put caches a document under its identity.
func (c *DocumentCache) Put(ctx context.Context, doc core.Document) {
	id := doc.ID()
	if id == "" {
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		log.Printf("[CACHE] Cannot encode %s: %v", id, err)
		return
	}
	key, err := c.Key(ctx, id)
	if err != nil {
		log.Printf("[CACHE] Generation lookup for %s failed: %v", c.table, err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		log.Printf("[CACHE] Set %s failed: %v", id, err)
	}
}

// Invalidate removes a document from the cache.
func (c *DocumentCache) Invalidate(ctx context.Context, id string) {
	key, err := c.Key(ctx, id)
	if err != nil {
		log.Printf("[CACHE] Generation lookup for %s failed: %v", c.table, err)
		return
	}
	c.delete(ctx, key)
}

// Reset starts a new generation. Entries of the previous one are never read
// again and expire through their TTL.
func (c *DocumentCache) Reset(ctx context.Context) error {
	gen := strconv.FormatInt(c.now().UnixNano(), 36)
	if err := c.store.Set(ctx, c.GenerationKey(), []byte(gen), 0); err != nil {
		return fmt.Errorf("failed to reset cache for %s: %w", c.table, err)
	}
	return nil
}

func (c *DocumentCache) delete(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		log.Printf("[CACHE] Delete %s failed: %v", key, err)
	}
}
