package store

import (
	"fmt"
	"strconv"
	"strings"

	"surveyflow/internal/constants"
	"surveyflow/internal/enrichment"
)

// Dialect isolates the SQL differences between the supported drivers.
type Dialect interface {
	Name() string
	DriverName() string
	QuoteIdent(name string) string
	Placeholder(n int) string
	ColumnType(kind enrichment.Kind) string
	// ColumnsQuery lists the column names of a table; no rows means the table does not exist.
	ColumnsQuery(table string) (string, []interface{})
}

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case constants.DriverSQLite, "":
		return sqliteDialect{}, nil
	case constants.DriverPostgres:
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return constants.DriverSQLite }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) QuoteIdent(name string) string { return quoteIdent(name) }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) ColumnType(kind enrichment.Kind) string {
	switch kind {
	case enrichment.KindNumber:
		return "REAL"
	case enrichment.KindInteger:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func (sqliteDialect) ColumnsQuery(table string) (string, []interface{}) {
	return "SELECT name FROM pragma_table_info(?)", []interface{}{table}
}

type postgresDialect struct{}

func (postgresDialect) Name() string       { return constants.DriverPostgres }
func (postgresDialect) DriverName() string { return "postgres" }

func (postgresDialect) QuoteIdent(name string) string { return quoteIdent(name) }

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) ColumnType(kind enrichment.Kind) string {
	switch kind {
	case enrichment.KindNumber:
		return "DOUBLE PRECISION"
	case enrichment.KindInteger:
		return "BIGINT"
	default:
		return "TEXT"
	}
}

func (postgresDialect) ColumnsQuery(table string) (string, []interface{}) {
	return `SELECT column_name FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`, []interface{}{table}
}
