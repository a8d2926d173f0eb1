// Package sql guards the statements the query synthesizer sends to a datasource.
package sql

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

	// ErrNotReadOnly indicates the statement does not start with SELECT or WITH.
	ErrNotReadOnly = errors.New("only SELECT statements may be executed")

	// ErrEmptyStatement indicates nothing was left after normalization.
	ErrEmptyStatement = errors.New("empty SQL statement")
)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize trims a generated statement, strips one trailing
// semicolon, and rejects anything that is not a single read-only statement.
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	normalized := stripTrailingSemicolon(strings.TrimSpace(sqlQuery))
	if normalized == "" {
		return ValidationResult{Error: ErrEmptyStatement}
	}

	if hasSemicolonOutsideQuotes(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	if !isReadOnly(normalized) {
		return ValidationResult{Error: ErrNotReadOnly}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

func isReadOnly(sqlQuery string) bool {
	fields := strings.Fields(sqlQuery)
	if len(fields) == 0 {
		return false
	}
	first := strings.ToUpper(strings.TrimLeft(fields[0], "("))
	return first == "SELECT" || first == "WITH"
}

// hasSemicolonOutsideQuotes reports a ';' outside string literals and quoted
// identifiers. Both postgres "ident" and mssql [ident] quoting are honoured.
func hasSemicolonOutsideQuotes(sqlQuery string) bool {
	var closing rune // zero while outside any quoted section
	prev := rune(0)

	for _, ch := range sqlQuery {
		if closing != 0 {
			if ch == closing && prev != '\\' {
				// '' and "" re-enter on the next quote
				closing = 0
			}
			prev = ch
			continue
		}

		switch ch {
		case ';':
			return true
		case '\'':
			closing = '\''
		case '"':
			closing = '"'
		case '[':
			closing = ']'
		}
		prev = ch
	}

	return false
}

// stripTrailingSemicolon removes a trailing semicolon and any whitespace around it.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimRight(strings.TrimSuffix(sqlQuery, ";"), " \t\n\r")
	}
	return sqlQuery
}
