package storage

import (
	"fmt"
	"strings"
)

// Dialect abstracts the SQL syntax differences between SQLite and
// PostgreSQL that the device queries actually hit. Queries are written once
// with SQLite-style ? placeholders and converted at runtime for Postgres.
type Dialect interface {
	// Name returns the dialect name ("sqlite" or "postgres").
	Name() string

	// Placeholder returns the parameter placeholder for a 1-based index.
	Placeholder(index int) string

	// Greatest returns the expression selecting the larger of two values.
	// SQLite spells this MAX; PostgreSQL reserves MAX for aggregation and
	// uses GREATEST.
	Greatest(a, b string) string
}

// SQLiteDialect implements Dialect for SQLite.
type SQLiteDialect struct{}

var _ Dialect = (*SQLiteDialect)(nil)

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(index int) string { return "?" }

func (d *SQLiteDialect) Greatest(a, b string) string {
	return fmt.Sprintf("MAX(%s, %s)", a, b)
}

// PostgresDialect implements Dialect for PostgreSQL.
type PostgresDialect struct{}

var _ Dialect = (*PostgresDialect)(nil)

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) Greatest(a, b string) string {
	return fmt.Sprintf("GREATEST(%s, %s)", a, b)
}

// ConvertPlaceholders rewrites SQLite-style ? placeholders to PostgreSQL's
// numbered $1, $2, ... form. Question marks inside single-quoted string
// literals are left alone.
func ConvertPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	index := 1
	inString := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inString = !inString
			b.WriteByte(ch)
		case ch == '?' && !inString:
			fmt.Fprintf(&b, "$%d", index)
			index++
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
