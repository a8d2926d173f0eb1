package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Dialect renders PostgreSQL query fragments.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

// QuoteIdentifier uses PostgreSQL's standard double-quote quoting.
func (Dialect) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QualifiedTable returns "schema"."table", or just "table" without a schema.
func (Dialect) QualifiedTable(schemaName, tableName string) string {
	if schemaName == "" {
		return pgx.Identifier{tableName}.Sanitize()
	}
	return pgx.Identifier{schemaName, tableName}.Sanitize()
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Dialect) YearExpr(col string) string { return fmt.Sprintf("EXTRACT(YEAR FROM %s)::int", col) }

func (Dialect) MonthExpr(col string) string { return fmt.Sprintf("EXTRACT(MONTH FROM %s)::int", col) }

func (Dialect) DateExpr(col string) string { return fmt.Sprintf("CAST(%s AS date)", col) }

func (Dialect) LookbackStart(years int) string {
	return fmt.Sprintf("(current_date - interval '%d years')", years)
}

func (Dialect) TopClause(string) string { return "" }

func (Dialect) LimitClause(placeholder string) string { return " LIMIT " + placeholder }
