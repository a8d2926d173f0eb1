package mssql

import (
	"fmt"
	"strings"
)

// Dialect renders SQL Server query fragments. Parameters are ordinal @pN.
type Dialect struct{}

func (Dialect) Name() string { return "mssql" }

// QuoteIdentifier mirrors QUOTENAME: square brackets with ] doubled.
func (Dialect) QuoteIdentifier(name string) string {
	return quoteName(name)
}

// QualifiedTable returns [schema].[table], or [table] without a schema.
func (Dialect) QualifiedTable(schemaName, tableName string) string {
	if schemaName == "" {
		return quoteName(tableName)
	}
	return quoteName(schemaName) + "." + quoteName(tableName)
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (Dialect) YearExpr(col string) string { return fmt.Sprintf("YEAR(%s)", col) }

func (Dialect) MonthExpr(col string) string { return fmt.Sprintf("MONTH(%s)", col) }

func (Dialect) DateExpr(col string) string { return fmt.Sprintf("CAST(%s AS date)", col) }

func (Dialect) LookbackStart(years int) string {
	return fmt.Sprintf("DATEADD(year, -%d, CAST(GETDATE() AS date))", years)
}

func (Dialect) TopClause(placeholder string) string { return "TOP (" + placeholder + ") " }

func (Dialect) LimitClause(string) string { return "" }

func quoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}
