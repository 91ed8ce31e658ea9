package collection

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rzpsarthak13/docshelf/internal/core"
	"github.com/rzpsarthak13/docshelf/internal/query"
)

// Set stores a new document. Any caller-supplied _id, _createdAt or
// _updatedAt is replaced. The returned document equals what GetOne reads back.
func (c *Collection) Set(ctx context.Context, doc map[string]interface{}) (out core.Document, err error) {
	start := time.Now()
	defer func() { c.observe("set", start, err) }()

	st, release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	normalized, err := st.codec.Normalize(doc)
	if err != nil {
		return nil, err
	}
	stamped := st.codec.Stamp(normalized, c.now())
	row, err := st.codec.Encode(stamped)
	if err != nil {
		return nil, err
	}
	if _, err := st.db.Exec(ctx, st.translator.Insert(), row.InsertArgs()...); err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	out, err = st.codec.Materialize(stamped)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Put(ctx, out)
	}
	c.emit(ctx, core.OperationInsert, row.ID, out)
	return out, nil
}

// Get returns every document matching q in fetch order.
func (c *Collection) Get(ctx context.Context, q core.Query) (docs []core.Document, err error) {
	start := time.Now()
	defer func() { c.observe("get", start, err) }()

	st, release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return c.fetch(ctx, st, q, true)
}

// GetOne returns the first document matching q, or nil when none does.
func (c *Collection) GetOne(ctx context.Context, q core.Query) (doc core.Document, err error) {
	start := time.Now()
	defer func() { c.observe("get_one", start, err) }()

	st, release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	docs, err := c.fetch(ctx, st, q, true)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Update merges partial into every document matching q, one UPDATE per
// document in fetch order. _id and _createdAt are preserved and reserved
// keys in partial are ignored. Matching always reads the row store, and the
// count only includes rows the engine reports as written. If a write fails
// part way, the returned *core.PartialError carries how many documents were
// already updated.
func (c *Collection) Update(ctx context.Context, q core.Query, partial map[string]interface{}) (n int, err error) {
	start := time.Now()
	defer func() { c.observe("update", start, err) }()

	st, release, err := c.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	patch, err := st.codec.Normalize(partial)
	if err != nil {
		return 0, err
	}
	docs, err := c.fetch(ctx, st, q, false)
	if err != nil {
		return 0, err
	}

	stmt := st.translator.UpdateByID()
	for _, doc := range docs {
		merged := st.codec.Merge(doc, patch, c.now())
		row, err := st.codec.Encode(merged)
		var affected int64
		if err == nil {
			affected, err = execAffected(ctx, st.db, stmt, row.UpdateArgs()...)
		}
		if err != nil {
			return n, &core.PartialError{Op: "update", Completed: n, Err: err}
		}

		if c.cache != nil {
			c.cache.Invalidate(ctx, row.ID)
		}
		if affected == 0 {
			continue
		}
		n++
		if c.queue != nil {
			if materialized, err := st.codec.Materialize(merged); err == nil {
				c.emit(ctx, core.OperationUpdate, row.ID, materialized)
			}
		}
	}
	return n, nil
}

// Delete removes every document matching q, one DELETE per document in fetch
// order. Partial failure is reported like Update.
func (c *Collection) Delete(ctx context.Context, q core.Query) (n int, err error) {
	start := time.Now()
	defer func() { c.observe("delete", start, err) }()

	st, release, err := c.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	docs, err := c.fetch(ctx, st, q, false)
	if err != nil {
		return 0, err
	}

	stmt := st.translator.DeleteByID()
	for _, doc := range docs {
		id := doc.ID()
		affected, err := execAffected(ctx, st.db, stmt, id)
		if err != nil {
			return n, &core.PartialError{Op: "delete", Completed: n, Err: err}
		}
		if c.cache != nil {
			c.cache.Invalidate(ctx, id)
		}
		if affected == 0 {
			continue
		}
		n++
		c.emit(ctx, core.OperationDelete, id, nil)
	}
	return n, nil
}

// Exists reports whether any document matches q.
func (c *Collection) Exists(ctx context.Context, q core.Query) (ok bool, err error) {
	start := time.Now()
	defer func() { c.observe("exists", start, err) }()

	st, release, err := c.acquire()
	if err != nil {
		return false, err
	}
	defer release()

	if len(q) == 0 {
		n, err := c.countAll(ctx, st)
		return n > 0, err
	}
	docs, err := c.fetch(ctx, st, q, false)
	return len(docs) > 0, err
}

// Count returns the number of documents matching q.
func (c *Collection) Count(ctx context.Context, q core.Query) (n int, err error) {
	start := time.Now()
	defer func() { c.observe("count", start, err) }()

	st, release, err := c.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	if len(q) == 0 {
		return c.countAll(ctx, st)
	}
	docs, err := c.fetch(ctx, st, q, false)
	return len(docs), err
}

// Clear deletes every row and starts a new cache generation.
func (c *Collection) Clear(ctx context.Context) error {
	return c.tableStatement(ctx, "clear", func(st *state) string { return st.translator.DeleteAll() }, core.OperationClear)
}

// Drop removes the table and all of its data.
func (c *Collection) Drop(ctx context.Context) error {
	return c.tableStatement(ctx, "drop", func(st *state) string { return st.translator.DropTable() }, core.OperationDrop)
}

// Optimize forwards the engine's storage maintenance statement.
func (c *Collection) Optimize(ctx context.Context) error {
	return c.tableStatement(ctx, "optimize", func(st *state) string { return st.translator.Optimize() }, "")
}

// Analyze forwards the engine's statistics refresh statement.
func (c *Collection) Analyze(ctx context.Context) error {
	return c.tableStatement(ctx, "analyze", func(st *state) string { return st.translator.Analyze() }, "")
}

func (c *Collection) tableStatement(ctx context.Context, operation string, build func(*state) string, event core.OperationType) (err error) {
	start := time.Now()
	defer func() { c.observe(operation, start, err) }()

	st, release, err := c.acquire()
	if err != nil {
		return err
	}
	defer release()

	if _, err := st.db.Exec(ctx, build(st)); err != nil {
		return fmt.Errorf("failed to %s table %s: %w", operation, c.table, err)
	}
	if c.cache != nil && (event == core.OperationClear || event == core.OperationDrop) {
		if err := c.cache.Reset(ctx); err != nil {
			log.Printf("[DOCSHELF] %v", err)
		}
	}
	if event != "" {
		c.emit(ctx, event, "", nil)
	}
	return nil
}

// ExecuteRaw runs stmt against the row store without any document
// translation. Identifier and parameter safety is the caller's problem.
// Result rows come back as column maps with byte slices turned into strings.
func (c *Collection) ExecuteRaw(ctx context.Context, stmt string, params ...interface{}) (rows []map[string]interface{}, err error) {
	start := time.Now()
	defer func() { c.observe("execute_raw", start, err) }()

	st, release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := st.db.Query(ctx, stmt, params...)
	if err != nil {
		return nil, err
	}
	return scanMaps(result)
}

// fetch resolves q to documents. Queries with a string _id use the primary
// key, consulting the cache only when cached is set; everything else reads
// and decodes the whole table and filters in memory, so its cost grows with
// the table.
func (c *Collection) fetch(ctx context.Context, st *state, q core.Query, cached bool) ([]core.Document, error) {
	if id, ok := query.IDLookup(q); ok {
		doc, err := c.byID(ctx, st, id, cached)
		if err != nil || doc == nil || !query.Matches(doc, q) {
			return nil, err
		}
		return []core.Document{doc}, nil
	}

	docs, err := c.scan(ctx, st, st.translator.SelectAll())
	if err != nil {
		return nil, err
	}
	return query.Filter(docs, q), nil
}

func (c *Collection) byID(ctx context.Context, st *state, id string, cached bool) (core.Document, error) {
	cached = cached && c.cache != nil
	if cached {
		if doc := c.cache.Get(ctx, id); doc != nil {
			return doc, nil
		}
	}

	docs, err := c.scan(ctx, st, st.translator.SelectByID(), id)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	if cached {
		c.cache.Put(ctx, docs[0])
	}
	return docs[0], nil
}

func execAffected(ctx context.Context, db core.Database, stmt string, args ...interface{}) (int64, error) {
	result, err := db.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

func (c *Collection) scan(ctx context.Context, st *state, stmt string, args ...interface{}) ([]core.Document, error) {
	rows, err := st.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", c.table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var docs []core.Document
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc, err := st.codec.Decode(columns, values)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return docs, nil
}

func (c *Collection) countAll(ctx context.Context, st *state) (int, error) {
	rows, err := st.db.Query(ctx, st.translator.Count())
	if err != nil {
		return 0, fmt.Errorf("failed to count table %s: %w", c.table, err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to scan count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to count table %s: %w", c.table, err)
	}
	return int(n), nil
}

func scanMaps(rows core.Rows) ([]map[string]interface{}, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	out := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, name := range columns {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
			} else {
				row[name] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}
