package dialect

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

// SQLite is the dialect for the embedded modernc.org/sqlite engine.
type SQLite struct{}

func init() {
	Register(SQLite{})
}

func (SQLite) Name() string { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }

func (SQLite) QuoteIdent(name string) string { return quote(name, `"`) }

func (SQLite) Placeholder(int) string { return "?" }

// JSON columns are declared TEXT so SQLite's numeric affinity never rewrites
// a serialized scalar.
func (SQLite) ColumnTypeName(t core.ColumnType) string {
	switch t {
	case core.ColumnInteger:
		return "INTEGER"
	case core.ColumnBigInt:
		return "BIGINT"
	case core.ColumnFloat:
		return "REAL"
	case core.ColumnBoolean:
		return "BOOLEAN"
	case core.ColumnTimestamp:
		return "TIMESTAMP"
	case core.ColumnBinary:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func (SQLite) IDColumnType() string { return "VARCHAR(32)" }

func (SQLite) OptimizeStatement(string) string { return "VACUUM" }
func (SQLite) AnalyzeStatement(table string) string { return "ANALYZE " + table }

func (SQLite) IsIndexExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}

func (SQLite) IsConstraint(err error) bool {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
