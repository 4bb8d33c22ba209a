package querybuilder

import (
	"strconv"

	"github.com/beexponential/insights/internal/catalog"
	"github.com/beexponential/insights/internal/widget"
)

const (
	aliasValue = "value"
	aliasX     = "Eje X"
	aliasY     = "Eje Y"
	unionAlias = "combined"
)

// Build renders the query for opts. ok is false when a required input is
// missing; no partial SQL is ever returned.
func Build(opts widget.Options, fields []catalog.CalculatedField) (query string, ok bool) {
	n, ok := Plan(opts, fields)
	if !ok {
		return "", false
	}
	return Render(n), true
}

// Plan returns the query tree for opts.
func Plan(opts widget.Options, fields []catalog.CalculatedField) (Node, bool) {
	switch o := opts.(type) {
	case widget.KPIOptions:
		return planKPI(o, fields)
	case widget.ChartOptions:
		return planChart(o, fields)
	case widget.DataTableOptions:
		return planDataTable(o, fields)
	case widget.PivotOptions:
		return planPivot(o, fields)
	}
	return nil, false
}

func validTables(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if ValidTable(id) {
			out = append(out, id)
		}
	}
	return out
}

func wrap(expr string) string { return "(" + Sanitize(expr) + ")" }

func planKPI(o widget.KPIOptions, fields []catalog.CalculatedField) (Node, bool) {
	if o.Column == "" {
		return nil, false
	}
	if f, ok := catalog.Find(fields, o.Column); ok {
		table := f.SourceTable()
		if table == "" && len(o.Tables) > 0 {
			table = o.Tables[0]
		}
		if !ValidTable(table) {
			return nil, false
		}
		return &Select{
			Projections: []Projection{{Expr: wrap(f.Expression), Alias: aliasValue}},
			From:        TableRef(table),
		}, true
	}

	tables := validTables(o.Tables)
	if len(tables) == 0 || len(tables) != len(o.Tables) {
		return nil, false
	}

	if o.Column == "*" {
		u := &Union{}
		for _, t := range tables {
			u.Parts = append(u.Parts, &Select{
				Projections: []Projection{{Expr: "COUNT(*)", Alias: aliasValue}},
				From:        TableRef(t),
			})
		}
		return &Select{
			Projections: []Projection{{Expr: "SUM(value)", Alias: aliasValue}},
			From:        Subquery{Query: u, Alias: unionAlias},
		}, true
	}

	if !widget.AllowsAggregation(widget.TypeKPI, o.Aggregation) {
		return nil, false
	}
	_, col := catalog.SplitColumn(o.Column)
	u := &Union{}
	for _, t := range tables {
		u.Parts = append(u.Parts, &Select{
			Projections: []Projection{{Expr: QuoteIdent(col), Alias: aliasValue}},
			From:        TableRef(t),
		})
	}
	return &Select{
		Projections: []Projection{{Expr: o.Aggregation.SQL() + "(value)", Alias: aliasValue}},
		From:        Subquery{Query: u, Alias: unionAlias},
	}, true
}

func planChart(o widget.ChartOptions, fields []catalog.CalculatedField) (Node, bool) {
	if o.XAxis == "" {
		return nil, false
	}
	table, col := catalog.SplitColumn(o.XAxis)
	if !ValidTable(table) || col == "" {
		return nil, false
	}
	x := QuoteIdent(col)

	var y string
	if o.YAxis != nil && *o.YAxis != "" {
		if f, ok := catalog.Find(fields, *o.YAxis); ok {
			y = wrap(f.Expression)
		}
	}
	if y == "" {
		if !widget.AllowsAggregation(o.WidgetType(), o.Aggregation) {
			return nil, false
		}
		y = o.Aggregation.SQL() + "(" + x + ")"
	}

	s := &Select{
		Projections: []Projection{
			{Expr: x, Alias: aliasX, QuotedAlias: true},
			{Expr: y, Alias: aliasY, QuotedAlias: true},
		},
		From:    TableRef(table),
		GroupBy: []string{x},
	}
	if o.WidgetType() == widget.TypeLineChart {
		s.OrderBy = []string{x}
	}
	return s, true
}

func planDataTable(o widget.DataTableOptions, fields []catalog.CalculatedField) (Node, bool) {
	if len(o.Tables) == 0 || len(o.Columns) == 0 {
		return nil, false
	}
	tables := validTables(o.Tables)
	if len(tables) != len(o.Tables) {
		return nil, false
	}
	u := &Union{}
	for _, t := range tables {
		s := &Select{From: TableRef(t)}
		for _, c := range o.Columns {
			s.Projections = append(s.Projections, dataTableColumn(t, c, fields))
		}
		u.Parts = append(u.Parts, s)
	}
	if len(u.Parts) == 1 {
		return u.Parts[0], true
	}
	return u, true
}

// dataTableColumn projects column c for table t, padding with NULL when the
// column does not belong to t so every union part has the same shape.
func dataTableColumn(t, c string, fields []catalog.CalculatedField) Projection {
	if f, ok := catalog.Find(fields, c); ok {
		if len(f.TablesUsed) == 0 || f.Uses(t) {
			return Projection{Expr: wrap(f.Expression), Alias: f.Name, QuotedAlias: true}
		}
		return Projection{Expr: "NULL", Alias: f.Name, QuotedAlias: true}
	}
	owner, name := catalog.SplitColumn(c)
	if owner != "" && owner != t {
		return Projection{Expr: "NULL", Alias: name, QuotedAlias: true}
	}
	return Projection{Expr: QuoteIdent(name), Alias: name, QuotedAlias: true}
}

// MeasureReady reports whether m can be rendered: it needs a column and
// either an aggregation or a calculated field that aggregates by itself.
func MeasureReady(m widget.Measure, fields []catalog.CalculatedField) bool {
	if m.Column == "" {
		return false
	}
	if f, ok := catalog.Find(fields, m.Column); ok && f.IsAggregate() {
		return true
	}
	return widget.AllowsAggregation(widget.TypePivotTable, m.Aggregation)
}

func planPivot(o widget.PivotOptions, fields []catalog.CalculatedField) (Node, bool) {
	table := o.Table()
	if !ValidTable(table) {
		return nil, false
	}
	if len(o.Rows) == 0 && len(o.Columns) == 0 {
		return nil, false
	}
	if len(o.Measures) == 0 {
		return nil, false
	}
	for _, m := range o.Measures {
		if !MeasureReady(m, fields) {
			return nil, false
		}
	}

	s := &Select{From: TableRef(table)}
	grouping := append(append([]string(nil), o.Rows...), o.Columns...)
	for i, g := range grouping {
		if g == "" {
			return nil, false
		}
		if f, ok := catalog.Find(fields, g); ok {
			if f.IsAggregate() {
				// an aggregate cannot be a grouping key
				return nil, false
			}
			s.Projections = append(s.Projections, Projection{Expr: wrap(f.Expression), Alias: f.Name, QuotedAlias: true})
		} else {
			_, name := catalog.SplitColumn(g)
			s.Projections = append(s.Projections, Projection{Expr: QuoteIdent(name)})
		}
		s.GroupBy = append(s.GroupBy, strconv.Itoa(i+1))
	}
	for _, m := range o.Measures {
		s.Projections = append(s.Projections, pivotMeasure(m, fields))
	}
	return s, true
}

func pivotMeasure(m widget.Measure, fields []catalog.CalculatedField) Projection {
	if f, ok := catalog.Find(fields, m.Column); ok {
		if f.IsAggregate() {
			return Projection{Expr: wrap(f.Expression), Alias: f.Name, QuotedAlias: true}
		}
		return Projection{
			Expr:        m.Aggregation.SQL() + "(" + wrap(f.Expression) + ")",
			Alias:       string(m.Aggregation) + "_of_" + f.Name,
			QuotedAlias: true,
		}
	}
	_, name := catalog.SplitColumn(m.Column)
	return Projection{
		Expr:        m.Aggregation.SQL() + "(" + QuoteIdent(name) + ")",
		Alias:       string(m.Aggregation) + "_of_" + name,
		QuotedAlias: true,
	}
}
