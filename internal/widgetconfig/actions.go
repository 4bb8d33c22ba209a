package widgetconfig

import (
	"github.com/beexponential/insights/internal/catalog"
	"github.com/beexponential/insights/internal/widget"
)

// KPIPatch changes the options of a KPI. Nil fields are left untouched.
type KPIPatch struct {
	Tables      []string
	Column      *string
	Aggregation *widget.Aggregation
}

func (p KPIPatch) apply(s State) (State, error) {
	o, ok := s.Options.(widget.KPIOptions)
	if !ok {
		return s, ErrWrongType
	}
	if p.Tables != nil {
		o.Tables = append([]string(nil), p.Tables...)
	}
	if p.Column != nil {
		o.Column = *p.Column
	}
	if p.Aggregation != nil {
		o.Aggregation = *p.Aggregation
	}
	s.Options = o
	return s, nil
}

// ChartPatch changes the options of a bar or line chart. ClearYAxis drops
// the calculated field so the aggregation is used again.
type ChartPatch struct {
	XAxis       *string
	YAxis       *string
	ClearYAxis  bool
	Aggregation *widget.Aggregation
}

func (p ChartPatch) apply(s State) (State, error) {
	o, ok := s.Options.(widget.ChartOptions)
	if !ok {
		return s, ErrWrongType
	}
	if p.XAxis != nil {
		o.XAxis = *p.XAxis
	}
	switch {
	case p.ClearYAxis:
		o.YAxis = nil
	case p.YAxis != nil:
		y := *p.YAxis
		o.YAxis = &y
	}
	if p.Aggregation != nil {
		o.Aggregation = *p.Aggregation
	}
	s.Options = o
	return s, nil
}

// DataTablePatch changes the tables or columns of a data table.
type DataTablePatch struct {
	Tables  []string
	Columns []string
}

func (p DataTablePatch) apply(s State) (State, error) {
	o, ok := s.Options.(widget.DataTableOptions)
	if !ok {
		return s, ErrWrongType
	}
	if p.Tables != nil {
		o.Tables = append([]string(nil), p.Tables...)
		o.Columns = keepColumns(o.Columns, o.Tables)
	}
	if p.Columns != nil {
		o.Columns = append([]string(nil), p.Columns...)
	}
	s.Options = o
	return s, nil
}

// keepColumns drops qualified columns whose table is no longer selected.
// Bare names (calculated fields) are kept.
func keepColumns(cols, tables []string) []string {
	out := cols[:0:0]
	for _, c := range cols {
		t, _ := catalog.SplitColumn(c)
		if t == "" || contains(tables, t) {
			out = append(out, c)
		}
	}
	return out
}

// PivotPatch changes the pivot source table or its grouping fields.
// Choosing another table clears rows, columns and measures.
type PivotPatch struct {
	Table   *string
	Rows    []string
	Columns []string
}

func (p PivotPatch) apply(s State) (State, error) {
	o, ok := s.Options.(widget.PivotOptions)
	if !ok {
		return s, ErrWrongType
	}
	if p.Table != nil && *p.Table != o.Table() {
		o = widget.PivotOptions{}
		if *p.Table != "" {
			o.Tables = []string{*p.Table}
		}
	}
	if p.Rows != nil {
		o.Rows = append([]string(nil), p.Rows...)
	}
	if p.Columns != nil {
		o.Columns = append([]string(nil), p.Columns...)
	}
	s.Options = o
	return s, nil
}

// AddMeasure appends an empty measure to a pivot table.
type AddMeasure struct{}

func (AddMeasure) apply(s State) (State, error) {
	o, ok := s.Options.(widget.PivotOptions)
	if !ok {
		return s, ErrWrongType
	}
	o.Measures = append(o.Measures, widget.Measure{})
	s.Options = o
	return s, nil
}

// UpdateMeasure changes the measure at Index.
type UpdateMeasure struct {
	Index       int
	Column      *string
	Aggregation *widget.Aggregation
}

func (p UpdateMeasure) apply(s State) (State, error) {
	o, ok := s.Options.(widget.PivotOptions)
	if !ok {
		return s, ErrWrongType
	}
	if p.Index < 0 || p.Index >= len(o.Measures) {
		return s, ErrNoMeasure
	}
	m := o.Measures[p.Index]
	if p.Column != nil {
		m.Column = *p.Column
	}
	if p.Aggregation != nil {
		m.Aggregation = *p.Aggregation
	}
	o.Measures[p.Index] = m
	s.Options = o
	return s, nil
}

// RemoveMeasure deletes the measure at Index.
type RemoveMeasure struct{ Index int }

func (p RemoveMeasure) apply(s State) (State, error) {
	o, ok := s.Options.(widget.PivotOptions)
	if !ok {
		return s, ErrWrongType
	}
	if p.Index < 0 || p.Index >= len(o.Measures) {
		return s, ErrNoMeasure
	}
	o.Measures = append(o.Measures[:p.Index:p.Index], o.Measures[p.Index+1:]...)
	s.Options = o
	return s, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
