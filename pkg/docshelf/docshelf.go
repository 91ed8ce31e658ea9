// Package docshelf stores schema-less JSON documents in a relational table.
//
// A table is either schemaless (the whole document lives in one JSON column)
// or hybrid (declared fields become typed columns and everything else is
// folded into an _extras JSON column). Queries are flat equality predicates;
// queries on _id use the primary key, all others read the whole table and
// filter in memory.
//
// Typical usage:
//
//	client, _ := docshelf.NewClient(ctx, cfg)
//	defer client.Close(ctx)
//
//	users, _ := client.Table(ctx, "users", docshelf.WithSchema(docshelf.Declaration{"email": "string"}))
//	doc, _ := users.Set(ctx, map[string]interface{}{"email": "ada@example.com", "age": 36})
//	same, _ := users.GetOne(ctx, docshelf.Query{"_id": doc.ID()})
package docshelf

import (
	"context"

	"github.com/rzpsarthak13/docshelf/internal/collection"
	"github.com/rzpsarthak13/docshelf/internal/config"
	"github.com/rzpsarthak13/docshelf/internal/core"
	"github.com/rzpsarthak13/docshelf/internal/database"
	"github.com/rzpsarthak13/docshelf/internal/schema"
)

type (
	// Document is a JSON-normal record identified by its _id field.
	Document = core.Document

	// Query is a flat equality predicate; an empty query matches everything.
	Query = core.Query

	// Declaration maps declared field names to type tags such as "string",
	// "BIGINT" or {"type": "boolean"}.
	Declaration = schema.Declaration

	// Tx is an opaque transaction handle.
	Tx = collection.Tx

	// PartialError reports an Update or Delete that failed part way through.
	PartialError = core.PartialError

	// ChangeEvent describes one mutation relayed by the change feed.
	ChangeEvent = core.ChangeEvent

	// Config is the root configuration.
	Config = config.Config

	// TableConfig holds per-table settings inside Config.Tables.
	TableConfig = config.TableConfig
)

// Reserved document fields.
const (
	FieldID        = core.FieldID
	FieldCreatedAt = core.FieldCreatedAt
	FieldUpdatedAt = core.FieldUpdatedAt
)

// Errors returned by drivers. Use errors.Is to test for them.
var (
	ErrNotConnected    = core.ErrNotConnected
	ErrConnection      = core.ErrConnection
	ErrConstraint      = core.ErrConstraint
	ErrStatement       = core.ErrStatement
	ErrSerialization   = core.ErrSerialization
	ErrTransactionDone = core.ErrTransactionDone
)

// Driver is the document interface to one table.
type Driver interface {
	// SetSchema switches the table to hybrid storage. It must be called before Connect.
	SetSchema(decl Declaration) error

	// Connect creates the table and its timestamp indexes if they do not exist.
	Connect(ctx context.Context) error

	// Disconnect is idempotent. Data operations fail with ErrNotConnected afterwards.
	Disconnect(ctx context.Context) error

	// Set stores a new document and returns it with _id and timestamps assigned.
	Set(ctx context.Context, doc map[string]interface{}) (Document, error)

	Get(ctx context.Context, q Query) ([]Document, error)

	// GetOne returns nil, nil when nothing matches.
	GetOne(ctx context.Context, q Query) (Document, error)

	// Update and Delete touch matching documents one at a time. A failure
	// part way through returns a *PartialError; earlier documents stay changed.
	Update(ctx context.Context, q Query, partial map[string]interface{}) (int, error)
	Delete(ctx context.Context, q Query) (int, error)

	Exists(ctx context.Context, q Query) (bool, error)
	Count(ctx context.Context, q Query) (int, error)

	// Clear deletes every document; Drop removes the table.
	Clear(ctx context.Context) error
	Drop(ctx context.Context) error

	Optimize(ctx context.Context) error
	Analyze(ctx context.Context) error

	// ExecuteRaw bypasses the document layer entirely.
	ExecuteRaw(ctx context.Context, stmt string, params ...interface{}) ([]map[string]interface{}, error)

	BeginTransaction(ctx context.Context) (*Tx, error)
	Commit(tx *Tx) error
	Rollback(tx *Tx) error

	// WithTransaction commits when fn returns nil and rolls back otherwise.
	WithTransaction(ctx context.Context, fn func(tx *Tx) error) error
}

var _ Driver = (*collection.Collection)(nil)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// LoadConfig reads a YAML or JSON file and overlays DOCSHELF_* environment
// variables on top of it. An empty path loads defaults plus environment.
func LoadConfig(path string) (*Config, error) {
	m := config.NewManager()
	if path != "" {
		if err := m.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := m.LoadFromEnv(); err != nil {
		return nil, err
	}
	return m.Config(), nil
}

// New returns a standalone driver for one table. It owns its connection
// pool: Connect opens it and Disconnect closes it. The table's declaration,
// if cfg lists one, is applied.
func New(table string, cfg *Config) (Driver, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	dbCfg := cfg.Database
	verbose := cfg.Logging.Verbose

	c := collection.NewWithOpener(table, func(ctx context.Context) (core.Database, error) {
		return database.Open(ctx, dbCfg, verbose)
	})
	if decl := declarationFor(cfg, table); decl != nil {
		if err := c.SetSchema(decl); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func declarationFor(cfg *Config, table string) Declaration {
	tc, ok := cfg.Tables[table]
	if !ok || len(tc.Schema) == 0 {
		return nil
	}
	decl := make(Declaration, len(tc.Schema))
	for field, tag := range tc.Schema {
		decl[field] = tag
	}
	return decl
}
