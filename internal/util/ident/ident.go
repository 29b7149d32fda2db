// Package ident provides minimal identifier-quoting helpers for the
// SQL dialects the connectors target: a single place that knows how to
// safely render a table or column name into SQL text.
package ident

import "strings"

// Dialect selects the quoting convention for an identifier.
type Dialect int

const (
	MySQL Dialect = iota
	Postgres
)

// Quote renders name as a safely quoted identifier for the given
// dialect, doubling any embedded quote character.
func Quote(dialect Dialect, name string) string {
	switch dialect {
	case MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// QualifiedTable renders schema.table, quoting each part. An empty
// schema yields just the quoted table name.
func QualifiedTable(dialect Dialect, schema, table string) string {
	if schema == "" {
		return Quote(dialect, table)
	}
	return Quote(dialect, schema) + "." + Quote(dialect, table)
}
