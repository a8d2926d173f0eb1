package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialect(t *testing.T) {
	d := Dialect{}

	assert.Equal(t, "postgres", d.Name())
	assert.Equal(t, `"estoque"`, d.QuoteIdentifier("estoque"))
	assert.Equal(t, `"weird""name"`, d.QuoteIdentifier(`weird"name`))
	assert.Equal(t, `"public"."faturamento"`, d.QualifiedTable("public", "faturamento"))
	assert.Equal(t, `"faturamento"`, d.QualifiedTable("", "faturamento"))
	assert.Equal(t, "$3", d.Placeholder(3))
	assert.Equal(t, `EXTRACT(YEAR FROM "data")::int`, d.YearExpr(`"data"`))
	assert.Equal(t, `EXTRACT(MONTH FROM "data")::int`, d.MonthExpr(`"data"`))
	assert.Equal(t, `CAST("data" AS date)`, d.DateExpr(`"data"`))
	assert.Equal(t, "(current_date - interval '2 years')", d.LookbackStart(2))
	assert.Empty(t, d.TopClause("$1"))
	assert.Equal(t, " LIMIT $1", d.LimitClause("$1"))
}

func TestPgTypeNameFromOID(t *testing.T) {
	assert.Equal(t, "NUMERIC", pgTypeNameFromOID(1700))
	assert.Equal(t, "INT8", pgTypeNameFromOID(20))
	assert.Equal(t, "UNKNOWN", pgTypeNameFromOID(99999))
}
