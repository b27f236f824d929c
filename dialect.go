package rods

import (
	sq "github.com/Masterminds/squirrel"
)

var (
	SQLite     = &SQLiteDialect{}
	MySQL      = &MySQLDialect{}
	PostgreSQL = &PostgreSQLDialect{}
)

// Dialect captures what differs between the supported databases when
// building statements.
type Dialect interface {
	// Name is the database/sql driver name conventionally used with the dialect.
	Name() string

	PlaceholderFormat() sq.PlaceholderFormat

	// Returning reports whether generated identifiers come back through a
	// RETURNING clause instead of sql.Result.LastInsertId.
	Returning() bool
}

// DialectFor picks the dialect for a database/sql driver name.
func DialectFor(driver string) Dialect {
	switch driver {
	case "postgres", "pgx":
		return PostgreSQL
	case "mysql":
		return MySQL
	default:
		return SQLite
	}
}

type MySQLDialect struct{}

func (d *MySQLDialect) Name() string { return "mysql" }

func (d *MySQLDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

func (d *MySQLDialect) Returning() bool { return false }

type PostgreSQLDialect struct{}

func (d *PostgreSQLDialect) Name() string { return "postgres" }

func (d *PostgreSQLDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Dollar }

func (d *PostgreSQLDialect) Returning() bool { return true }

type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string { return "sqlite3" }

func (d *SQLiteDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

func (d *SQLiteDialect) Returning() bool { return false }
