package dialect

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

const (
	mysqlErrDupKeyName = 1061
	mysqlErrDupEntry   = 1062
)

// MySQL is the dialect for MySQL 8 and compatible engines.
type MySQL struct{}

func init() {
	Register(MySQL{})
}

func (MySQL) Name() string { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

func (MySQL) QuoteIdent(name string) string { return quote(name, "`") }

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) ColumnTypeName(t core.ColumnType) string {
	switch t {
	case core.ColumnInteger:
		return "INT"
	case core.ColumnBigInt:
		return "BIGINT"
	case core.ColumnFloat:
		return "DOUBLE"
	case core.ColumnBoolean:
		return "BOOLEAN"
	case core.ColumnTimestamp:
		return "DATETIME(3)"
	case core.ColumnJSON:
		return "JSON"
	case core.ColumnBinary:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func (MySQL) IDColumnType() string { return "VARCHAR(32)" }

func (MySQL) OptimizeStatement(table string) string { return "OPTIMIZE TABLE " + table }
func (MySQL) AnalyzeStatement(table string) string { return "ANALYZE TABLE " + table }

func (MySQL) IsIndexExists(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDupKeyName
}

func (MySQL) IsConstraint(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDupEntry
}
