package models

import "strings"

// TypeCategory is the coarse type class of a column used for match bonuses.
type TypeCategory string

const (
	TypeString   TypeCategory = "string"
	TypeNumeric  TypeCategory = "numeric"
	TypeBool     TypeCategory = "bool"
	TypeTemporal TypeCategory = "temporal"
	TypeOther    TypeCategory = "other"
)

// CategorizeType maps a declared database type name onto a TypeCategory.
// Works for both information_schema names (character varying, numeric)
// and SQL Server sys.types names (nvarchar, decimal, bit).
func CategorizeType(dataType string) TypeCategory {
	t := strings.ToLower(strings.TrimSpace(dataType))
	switch {
	case t == "" || strings.HasPrefix(t, "interval") || t == "point":
		return TypeOther
	case strings.Contains(t, "bool") || t == "bit":
		return TypeBool
	case strings.Contains(t, "char") || strings.Contains(t, "string") || strings.Contains(t, "text"):
		return TypeString
	case strings.Contains(t, "timestamp") || strings.Contains(t, "date") || strings.Contains(t, "time"):
		return TypeTemporal
	case strings.Contains(t, "int") || strings.Contains(t, "numeric") || strings.Contains(t, "decimal") ||
		strings.Contains(t, "float") || strings.Contains(t, "double") || strings.Contains(t, "real") ||
		strings.Contains(t, "money"):
		return TypeNumeric
	default:
		return TypeOther
	}
}

// ColumnDescriptor is a reflected column.
type ColumnDescriptor struct {
	Name     string       `json:"name"`
	DataType string       `json:"data_type"`
	Category TypeCategory `json:"category"`
}

// TableDescriptor is a reflected table with its columns in declaration order.
type TableDescriptor struct {
	Schema  string             `json:"schema,omitempty"`
	Name    string             `json:"name"`
	Columns []ColumnDescriptor `json:"columns"`
}

// ColumnNames returns the column names in declaration order.
func (t *TableDescriptor) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the column with the exact (case-sensitive) name.
func (t *TableDescriptor) Column(name string) (ColumnDescriptor, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// SchemaDescriptor is the live schema snapshot: tables in discovery order.
type SchemaDescriptor struct {
	Tables []TableDescriptor `json:"tables"`
}

// TableNames returns the table names in discovery order.
func (s *SchemaDescriptor) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// Table returns the table with the given name.
func (s *SchemaDescriptor) Table(name string) (*TableDescriptor, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// ColumnMatch is the outcome of fuzzy column resolution.
type ColumnMatch struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Score  int    `json:"score"`
}

// Found reports whether a column matched with a positive score.
func (m ColumnMatch) Found() bool {
	return m.Score > 0 && m.Column != ""
}
