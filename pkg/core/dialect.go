package core

import "fmt"

// DialectConfig holds the static configuration for a SQL dialect.
// This is pure data: everything the knowledge store and metadata
// queries need to emit portable SQL against an adapter.
type DialectConfig struct {
	// Name is the dialect identifier (e.g., "duckdb", "postgres")
	Name string

	// DefaultSchema is the default schema name ("main" for DuckDB, "public" for Postgres)
	DefaultSchema string

	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle

	// QuoteChar is the identifier quote character (usually ")
	QuoteChar string
}

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// FormatPlaceholder returns the placeholder for the 1-based parameter n.
func (d *DialectConfig) FormatPlaceholder(n int) string {
	if d.Placeholder == PlaceholderDollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// QuoteIdentifier quotes an identifier using the dialect's quote character.
func (d *DialectConfig) QuoteIdentifier(name string) string {
	q := d.QuoteChar
	if q == "" {
		q = `"`
	}
	return q + name + q
}
