package schema

import "github.com/beexponential/insights/internal/catalog"

// Tables lists the tables of the reporting schema.
type Tables struct {
	Tables []catalog.Table `json:"tables"`
}

// ColumnList lists the columns of one table.
type ColumnList struct {
	Table   string           `json:"table"`
	Columns []catalog.Column `json:"columns"`
}

// CalculatedFields lists the tenant's calculated fields.
type CalculatedFields struct {
	Fields []catalog.CalculatedField `json:"fields"`
}
