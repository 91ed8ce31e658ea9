// Package codec converts documents to and from their row representation.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rzpsarthak13/docshelf/internal/core"
	"github.com/rzpsarthak13/docshelf/internal/schema"
)

// Row is the persisted shape of one document.
type Row struct {
	ID string

	// Declared holds bind values for the declared columns, in column order.
	// Empty in schemaless mode.
	Declared []interface{}

	// Payload is the serialized _extras (hybrid) or _data (schemaless) column.
	Payload string

	CreatedAt time.Time
	UpdatedAt time.Time

	hybrid bool
}

// InsertArgs returns bind values matching Translator.StorageColumns.
func (r *Row) InsertArgs() []interface{} {
	args := make([]interface{}, 0, len(r.Declared)+4)
	if r.hybrid {
		args = append(args, r.Declared...)
	}
	return append(args, r.ID, r.Payload, r.CreatedAt, r.UpdatedAt)
}

// UpdateArgs returns bind values matching Translator.UpdateByID.
func (r *Row) UpdateArgs() []interface{} {
	args := make([]interface{}, 0, len(r.Declared)+3)
	if r.hybrid {
		args = append(args, r.Declared...)
	}
	return append(args, r.Payload, r.UpdatedAt, r.ID)
}

// Codec encodes and decodes documents for one table.
type Codec struct {
	decl    schema.Declaration
	columns []schema.Column
	mapper  *schema.TypeMapper
}

// New creates a codec. A nil declaration selects schemaless mode.
func New(decl schema.Declaration) *Codec {
	c := &Codec{decl: decl, mapper: schema.NewTypeMapper()}
	if decl != nil {
		c.columns = decl.Columns()
	}
	return c
}

// Mode returns the storage mode of the codec.
func (c *Codec) Mode() core.StorageMode {
	if c.decl != nil {
		return core.ModeHybrid
	}
	return core.ModeSchemaless
}

// Normalize converts a caller document into JSON-normal values. Values that
// cannot round-trip through JSON fail with core.ErrSerialization.
func (c *Codec) Normalize(doc map[string]interface{}) (core.Document, error) {
	if doc == nil {
		return core.Document{}, nil
	}
	v, err := schema.NormalizeValue(doc)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: document is not an object", core.ErrSerialization)
	}
	return core.Document(m), nil
}

// Stamp assigns a fresh identity and both timestamps, replacing any
// caller-supplied values.
func (c *Codec) Stamp(doc core.Document, now time.Time) core.Document {
	out := doc.Clone()
	if out == nil {
		out = core.Document{}
	}
	ts := schema.FormatTimestamp(now)
	out[core.FieldID] = NewID()
	out[core.FieldCreatedAt] = ts
	out[core.FieldUpdatedAt] = ts
	return out
}

// Merge applies a partial document on top of an existing one. Reserved
// fields in the patch are ignored and _updatedAt is refreshed.
func (c *Codec) Merge(existing, patch core.Document, now time.Time) core.Document {
	out := existing.Clone()
	for k, v := range patch {
		if core.IsReserved(k) {
			continue
		}
		out[k] = v
	}
	out[core.FieldUpdatedAt] = schema.FormatTimestamp(now)
	return out
}

// Encode produces the persisted row for a stamped document.
func (c *Codec) Encode(doc core.Document) (*Row, error) {
	id := doc.ID()
	if id == "" {
		return nil, fmt.Errorf("%w: document has no %s", core.ErrSerialization, core.FieldID)
	}

	row := &Row{ID: id, hybrid: c.decl != nil}

	var err error
	if row.CreatedAt, err = c.timestamp(doc, core.FieldCreatedAt); err != nil {
		return nil, err
	}
	if row.UpdatedAt, err = c.timestamp(doc, core.FieldUpdatedAt); err != nil {
		return nil, err
	}

	if !row.hybrid {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrSerialization, err)
		}
		row.Payload = string(data)
		return row, nil
	}

	declared, extras := schema.SplitRecord(doc, c.decl)
	row.Declared = make([]interface{}, len(c.columns))
	for i, col := range c.columns {
		v, err := c.mapper.ToDBValue(declared[col.Name], col.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", core.ErrSerialization, col.Name, err)
		}
		row.Declared[i] = v
	}
	data, err := json.Marshal(extras)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSerialization, err)
	}
	row.Payload = string(data)
	return row, nil
}

func (c *Codec) timestamp(doc core.Document, field string) (time.Time, error) {
	v, err := c.mapper.ToDBValue(doc[field], core.ColumnTimestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", core.ErrSerialization, field, err)
	}
	ts, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: document has no %s", core.ErrSerialization, field)
	}
	return ts, nil
}

// Decode reassembles a document from scanned columns. Declared and reserved
// columns take precedence over keys of the same name inside _extras.
func (c *Codec) Decode(columns []string, values []interface{}) (core.Document, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("%w: %d columns but %d values", core.ErrSerialization, len(columns), len(values))
	}
	row := make(map[string]interface{}, len(columns))
	for i, name := range columns {
		row[name] = values[i]
	}

	payloadColumn := core.ColumnData
	if c.decl != nil {
		payloadColumn = core.ColumnExtras
	}

	doc := core.Document{}
	if raw := row[payloadColumn]; raw != nil {
		parsed, err := c.mapper.FromDBValue(raw, core.ColumnJSON)
		if err != nil {
			return nil, err
		}
		if m, ok := parsed.(map[string]interface{}); ok {
			doc = core.Document(m)
		} else if parsed != nil {
			return nil, fmt.Errorf("%w: %s is not an object", core.ErrSerialization, payloadColumn)
		}
	}

	for _, col := range c.columns {
		raw, present := row[col.Name]
		if !present {
			continue
		}
		v, err := c.mapper.FromDBValue(raw, col.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %v", core.ErrSerialization, col.Name, err)
		}
		doc[col.Name] = v
	}

	if raw, ok := row[core.FieldID]; ok && raw != nil {
		id, err := c.mapper.FromDBValue(raw, core.ColumnText)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrSerialization, core.FieldID, err)
		}
		doc[core.FieldID] = id
	}
	for _, field := range []string{core.FieldCreatedAt, core.FieldUpdatedAt} {
		raw, ok := row[field]
		if !ok || raw == nil {
			continue
		}
		ts, err := c.mapper.FromDBValue(raw, core.ColumnTimestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrSerialization, field, err)
		}
		doc[field] = ts
	}
	return doc, nil
}

// Materialize returns doc as it reads back from storage: declared fields are
// coerced through their column type and absent declared fields appear as null.
func (c *Codec) Materialize(doc core.Document) (core.Document, error) {
	out := doc.Clone()
	for _, col := range c.columns {
		dbv, err := c.mapper.ToDBValue(doc[col.Name], col.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", core.ErrSerialization, col.Name, err)
		}
		v, err := c.mapper.FromDBValue(dbv, col.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", core.ErrSerialization, col.Name, err)
		}
		out[col.Name] = v
	}
	return out, nil
}
