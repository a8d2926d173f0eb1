package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrSchemaResolution  = errors.New("schema resolution failed")
	ErrUnsupportedIntent = errors.New("unsupported intent")
	ErrUnsafeParameter   = errors.New("parameter rejected by injection check")
	ErrMissingComparison = errors.New("comparison needs two periods, two years or two SKUs")
)

// ResolutionKind tells whether a table or a column could not be resolved.
type ResolutionKind string

const (
	ResolutionTable  ResolutionKind = "table"
	ResolutionColumn ResolutionKind = "column"
)

// ResolutionError reports a table or column that no candidate name matched.
type ResolutionError struct {
	Kind        ResolutionKind
	Table       string   // set for column errors
	Role        string   // what the column is used for, e.g. "quantity"
	Candidates  []string // the hint names that were tried
	Suggestions []string // closest existing names, best first
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case ResolutionTable:
		fmt.Fprintf(&b, "%s table not found", e.Role)
	default:
		fmt.Fprintf(&b, "%s column not found in table %q", e.Role, e.Table)
	}
	fmt.Fprintf(&b, " (tried %s)", strings.Join(e.Candidates, ", "))
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, "; closest: %s", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

// Unwrap lets errors.Is match ErrSchemaResolution.
func (e *ResolutionError) Unwrap() error {
	return ErrSchemaResolution
}
