// Package schema declares destination tables, creates them on first use and
// validates canonical records against them.
package schema

import (
	"slices"
	"strings"
)

// Type is a logical column type.
type Type string

const (
	TypeText      Type = "text"
	TypeInteger   Type = "integer"
	TypeDecimal   Type = "decimal"
	TypeDate      Type = "date"
	TypeBool      Type = "bool"
	TypeTimestamp Type = "timestamp"
)

// Column is one column of a destination table.
type Column struct {
	Name      string `yaml:"name"`
	Type      Type   `yaml:"type"`
	Length    int    `yaml:"length,omitempty"`
	Precision int    `yaml:"precision,omitempty"`
	Scale     int    `yaml:"scale,omitempty"`
	Nullable  bool   `yaml:"nullable,omitempty"`
}

// Text declares a text column; length 0 means unbounded.
func Text(name string, length int) Column { return Column{Name: name, Type: TypeText, Length: length} }

// Integer declares a 64-bit integer column.
func Integer(name string) Column { return Column{Name: name, Type: TypeInteger} }

// Decimal declares an exact numeric column.
func Decimal(name string, precision, scale int) Column {
	return Column{Name: name, Type: TypeDecimal, Precision: precision, Scale: scale}
}

// Date declares a calendar date column.
func Date(name string) Column { return Column{Name: name, Type: TypeDate} }

// Bool declares a boolean column.
func Bool(name string) Column { return Column{Name: name, Type: TypeBool} }

// Timestamp declares an instant column.
func Timestamp(name string) Column { return Column{Name: name, Type: TypeTimestamp} }

// OrNull returns a nullable copy of c.
func (c Column) OrNull() Column {
	c.Nullable = true
	return c
}

// ForeignKey links Columns to the key of a dimension table in the same schema.
type ForeignKey struct {
	Columns    []string `yaml:"columns"`
	RefTable   string   `yaml:"ref_table"`
	RefColumns []string `yaml:"ref_columns"`
}

// TableDefinition describes one destination table.
type TableDefinition struct {
	Schema      string       `yaml:"schema"`
	Name        string       `yaml:"name"`
	Columns     []Column     `yaml:"columns"`
	PrimaryKey  []string     `yaml:"primary_key"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty"`
}

// QualifiedName is schema.name, or name when no schema is set.
func (t TableDefinition) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ColumnNames returns the column names in declaration order.
func (t TableDefinition) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by name.
func (t TableDefinition) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// IsKey reports whether name is part of the primary key.
func (t TableDefinition) IsKey(name string) bool {
	return slices.Contains(t.PrimaryKey, name)
}

func (t TableDefinition) String() string {
	return t.QualifiedName() + "(" + strings.Join(t.ColumnNames(), ", ") + ")"
}
