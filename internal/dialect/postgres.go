package dialect

import (
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

const (
	pgDuplicateTable  = "42P07" // also raised for an existing index name
	pgUniqueViolation = "23505"
	pgDuplicateObject = "42710"
)

// Postgres is the dialect for PostgreSQL reached through pgx's database/sql driver.
type Postgres struct{}

func init() {
	Register(Postgres{})
}

func (Postgres) Name() string { return "postgres" }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) QuoteIdent(name string) string { return quote(name, `"`) }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) ColumnTypeName(t core.ColumnType) string {
	switch t {
	case core.ColumnInteger:
		return "INTEGER"
	case core.ColumnBigInt:
		return "BIGINT"
	case core.ColumnFloat:
		return "DOUBLE PRECISION"
	case core.ColumnBoolean:
		return "BOOLEAN"
	case core.ColumnTimestamp:
		return "TIMESTAMPTZ(3)"
	case core.ColumnJSON:
		return "JSONB"
	case core.ColumnBinary:
		return "BYTEA"
	default:
		return "TEXT"
	}
}

func (Postgres) IDColumnType() string { return "VARCHAR(32)" }

func (Postgres) OptimizeStatement(table string) string { return "VACUUM " + table }
func (Postgres) AnalyzeStatement(table string) string { return "ANALYZE " + table }

func (Postgres) IsIndexExists(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == pgDuplicateTable || pgErr.Code == pgDuplicateObject)
}

func (Postgres) IsConstraint(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
