// Package catalog exposes the tables, columns and calculated fields a widget
// can be built from.
package catalog

import (
	"context"
	"regexp"
	"strings"
)

// Table is a selectable source table. ID is the schema-qualified name.
type Table struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
	ID     string `json:"id"`
}

// Column is a column of a source table. ID is schema.table.column.
type Column struct {
	Table string `json:"table"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	ID    string `json:"id"`
}

// CalculatedField is a named, reusable SQL expression defined in the backend.
type CalculatedField struct {
	Name       string   `json:"name"`
	Expression string   `json:"expression"`
	TablesUsed []string `json:"tables_used"`
}

var aggregateCall = regexp.MustCompile(`(?i)\b(SUM|COUNT|AVG|MIN|MAX)\s*\(`)

// IsAggregate reports whether the expression aggregates by itself.
func (f CalculatedField) IsAggregate() bool {
	return aggregateCall.MatchString(f.Expression)
}

// SourceTable returns the first table used by the field, or "".
func (f CalculatedField) SourceTable() string {
	if len(f.TablesUsed) == 0 {
		return ""
	}
	return f.TablesUsed[0]
}

// Uses reports whether table is one of the field's source tables.
func (f CalculatedField) Uses(table string) bool {
	for _, t := range f.TablesUsed {
		if t == table {
			return true
		}
	}
	return false
}

// Find returns the calculated field called name.
func Find(fields []CalculatedField, name string) (CalculatedField, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return CalculatedField{}, false
}

// Catalog lists the schema objects available to widget configuration.
type Catalog interface {
	ListTables(ctx context.Context, schema string) ([]Table, error)
	ListColumns(ctx context.Context, table, typeFilter string) ([]Column, error)
	ListCalculatedFields(ctx context.Context) ([]CalculatedField, error)
}

// SplitTable splits "schema.table" into its parts. A bare name has no schema.
func SplitTable(id string) (schema, name string) {
	if i := strings.LastIndex(id, "."); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}

// SplitColumn splits "schema.table.column" into the table id and column
// name. A name without dots has no table.
func SplitColumn(id string) (table, column string) {
	if i := strings.LastIndex(id, "."); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}

// numericTypes groups the data types offered when a numeric column is required.
var numericTypes = []string{"smallint", "integer", "int", "bigint", "decimal", "numeric", "real", "double precision", "double", "float", "money"}

// MatchesType reports whether dataType satisfies filter. The filter "numeric"
// matches every numeric type; any other filter matches case-insensitively.
func MatchesType(dataType, filter string) bool {
	if filter == "" {
		return true
	}
	dt := strings.ToLower(dataType)
	if strings.EqualFold(filter, "numeric") {
		for _, n := range numericTypes {
			if dt == n || strings.HasPrefix(dt, n+"(") {
				return true
			}
		}
		return false
	}
	return strings.EqualFold(dt, filter)
}
