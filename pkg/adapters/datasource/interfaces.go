package datasource

import "context"

// SchemaDiscoverer lists the user tables and columns of a datasource.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user tables (excludes system schemas),
	// ordered by schema then table name.
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns the columns of one table in ordinal order.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// Close releases the database connection.
	Close() error
}

// QueryExecutor runs read-only, parameterized SQL against a datasource.
type QueryExecutor interface {
	// QueryWithParams runs a SELECT with positional parameters written in the
	// dialect's placeholder syntax (see Dialect.Placeholder).
	//
	// Limit behavior:
	//   - limit <= 0: all rows are returned
	//   - otherwise the query is wrapped with a dialect-specific row cap
	QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*QueryExecutionResult, error)

	// QuoteIdentifier safely quotes a SQL identifier (table, column, schema name).
	QuoteIdentifier(name string) string

	// Close releases any resources held by the executor.
	Close() error
}

// Dialect renders the dialect-specific fragments of the fixed query templates.
// Column arguments are already-quoted identifiers.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	// QualifiedTable quotes schema.table, or just table when schema is empty.
	QualifiedTable(schema, table string) string
	// Placeholder returns the bind marker for the n-th (1-based) parameter.
	Placeholder(n int) string
	YearExpr(col string) string
	MonthExpr(col string) string
	DateExpr(col string) string
	// LookbackStart is an expression for the date `years` years before today.
	LookbackStart(years int) string
	// TopClause goes right after SELECT; LimitClause goes at the end.
	// Exactly one of them is non-empty for a given dialect.
	TopClause(placeholder string) string
	LimitClause(placeholder string) string
}

// Adapter is a connected datasource: discovery, execution and its dialect.
type Adapter interface {
	SchemaDiscoverer
	QueryExecutor

	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	Dialect() Dialect
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "NUMERIC")
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}
