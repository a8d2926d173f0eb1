package sql

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a bound value that libinjection flagged.
type InjectionCheckResult struct {
	Position    int    // 1-based bind position
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       string
}

// Error implements the error interface so a result can be returned directly.
func (r *InjectionCheckResult) Error() string {
	return fmt.Sprintf("bind parameter %d looks like SQL injection (fingerprint %q)", r.Position, r.Fingerprint)
}

// CheckParameterForInjection runs libinjection over a single bind value.
// Only strings are inspected; ints, bools and times cannot carry SQL.
func CheckParameterForInjection(position int, value any) *InjectionCheckResult {
	s, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(s)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Position:    position,
		Fingerprint: string(fingerprint),
		Value:       s,
	}
}

// CheckBindings screens positional bind values and returns the first hit, or nil.
func CheckBindings(params []any) *InjectionCheckResult {
	for i, v := range params {
		if r := CheckParameterForInjection(i+1, v); r != nil {
			return r
		}
	}
	return nil
}
