package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/faciam-dev/goquent/orm/query"
	"github.com/lib/pq"

	"github.com/beexponential/insights/internal/tenant"
)

// SQLCatalog reads the catalog from information_schema and the calculated
// fields table of the hosted backend.
type SQLCatalog struct {
	DB          *sql.DB
	Dialect     ormdriver.Dialect
	TablePrefix string
	// Schemas restricts ListTables when no schema is requested.
	Schemas []string
}

func (c *SQLCatalog) fieldsTable() string {
	p := c.TablePrefix
	if p == "" {
		p = "bi_"
	}
	return p + "calculated_fields"
}

// ListTables returns the tables of schema ordered by name. With an empty
// schema every configured schema is listed.
func (c *SQLCatalog) ListTables(ctx context.Context, schema string) ([]Table, error) {
	if c == nil || c.DB == nil {
		return nil, fmt.Errorf("catalog not initialized")
	}
	q := query.New(c.DB, "information_schema.tables", c.Dialect).
		Select("table_schema", "table_name")
	if schema != "" {
		q.Where("table_schema", schema)
	} else {
		q.WhereRaw("table_schema NOT IN ('pg_catalog', 'information_schema', 'mysql', 'performance_schema', 'sys')", nil)
	}
	q.OrderBy("table_schema", "asc").OrderBy("table_name", "asc")
	var rows []struct {
		Schema string `db:"table_schema"`
		Name   string `db:"table_name"`
	}
	if err := q.WithContext(ctx).Get(&rows); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	out := make([]Table, 0, len(rows))
	for _, r := range rows {
		if schema == "" && len(c.Schemas) > 0 && !contains(c.Schemas, r.Schema) {
			continue
		}
		out = append(out, Table{Schema: r.Schema, Name: r.Name, ID: r.Schema + "." + r.Name})
	}
	return out, nil
}

// ListColumns returns the columns of table ("schema.table") in ordinal order,
// optionally restricted to typeFilter (see MatchesType).
func (c *SQLCatalog) ListColumns(ctx context.Context, table, typeFilter string) ([]Column, error) {
	if c == nil || c.DB == nil {
		return nil, fmt.Errorf("catalog not initialized")
	}
	schema, name := SplitTable(table)
	q := query.New(c.DB, "information_schema.columns", c.Dialect).
		Select("table_schema", "table_name", "column_name", "data_type").
		Where("table_name", name)
	if schema != "" {
		q.Where("table_schema", schema)
	}
	q.OrderBy("ordinal_position", "asc")
	var rows []struct {
		Schema   string `db:"table_schema"`
		Table    string `db:"table_name"`
		Name     string `db:"column_name"`
		DataType string `db:"data_type"`
	}
	if err := q.WithContext(ctx).Get(&rows); err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	out := make([]Column, 0, len(rows))
	for _, r := range rows {
		if !MatchesType(r.DataType, typeFilter) {
			continue
		}
		tid := r.Schema + "." + r.Table
		out = append(out, Column{Table: tid, Name: r.Name, Type: r.DataType, ID: tid + "." + r.Name})
	}
	return out, nil
}

// ListCalculatedFields returns the calculated fields of the tenant in context.
func (c *SQLCatalog) ListCalculatedFields(ctx context.Context) ([]CalculatedField, error) {
	if c == nil || c.DB == nil {
		return nil, fmt.Errorf("catalog not initialized")
	}
	q := query.New(c.DB, c.fieldsTable(), c.Dialect).
		Select("name", "expression", "tables_used").
		Where("tenant_id", tenant.FromContext(ctx)).
		OrderBy("name", "asc").
		WithContext(ctx)
	var rows []struct {
		Name       string `db:"name"`
		Expression string `db:"expression"`
		TablesUsed []byte `db:"tables_used"`
	}
	if err := q.Get(&rows); err != nil {
		return nil, fmt.Errorf("list calculated fields: %w", err)
	}
	out := make([]CalculatedField, 0, len(rows))
	for _, r := range rows {
		tables, err := decodeTables(r.TablesUsed)
		if err != nil {
			return nil, fmt.Errorf("calculated field %q: %w", r.Name, err)
		}
		out = append(out, CalculatedField{Name: r.Name, Expression: r.Expression, TablesUsed: tables})
	}
	return out, nil
}

// decodeTables accepts a postgres text[] literal or a JSON array.
func decodeTables(b []byte) ([]string, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "[") {
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var arr pq.StringArray
	if err := arr.Scan([]byte(s)); err != nil {
		return nil, err
	}
	return []string(arr), nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
