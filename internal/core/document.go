package core

// Document is a schema-less record identified by FieldID.
// Values are JSON-normal: nil, bool, float64, string, []interface{} or
// map[string]interface{}.
type Document map[string]interface{}

// Query is a flat equality predicate over document fields.
type Query map[string]interface{}

// Reserved document fields.
const (
	FieldID        = "_id"
	FieldCreatedAt = "_createdAt"
	FieldUpdatedAt = "_updatedAt"
)

// Storage-only columns.
const (
	ColumnExtras = "_extras"
	ColumnData   = "_data"
)

var reservedFields = map[string]struct{}{
	FieldID:        {},
	FieldCreatedAt: {},
	FieldUpdatedAt: {},
}

// IsReserved reports whether name is one of the server-managed document fields.
func IsReserved(name string) bool {
	_, ok := reservedFields[name]
	return ok
}

// IsReservedColumn reports whether name cannot be used for a declared column.
func IsReservedColumn(name string) bool {
	return IsReserved(name) || name == ColumnExtras || name == ColumnData
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ID returns the document identity, or "" if it has none.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// StorageMode is decided once per table at connect time.
type StorageMode int

const (
	// ModeSchemaless stores the whole document in a single JSON column.
	ModeSchemaless StorageMode = iota
	// ModeHybrid promotes declared fields to typed columns and folds the rest into _extras.
	ModeHybrid
)

func (m StorageMode) String() string {
	if m == ModeHybrid {
		return "hybrid"
	}
	return "schemaless"
}

// ColumnType is the engine-independent scalar type of a declared column.
type ColumnType int

const (
	ColumnText ColumnType = iota
	ColumnInteger
	ColumnBigInt
	ColumnFloat
	ColumnBoolean
	ColumnTimestamp
	ColumnJSON
	ColumnBinary
)

func (t ColumnType) String() string {
	switch t {
	case ColumnInteger:
		return "integer"
	case ColumnBigInt:
		return "bigint"
	case ColumnFloat:
		return "float"
	case ColumnBoolean:
		return "boolean"
	case ColumnTimestamp:
		return "timestamp"
	case ColumnJSON:
		return "json"
	case ColumnBinary:
		return "binary"
	default:
		return "text"
	}
}
