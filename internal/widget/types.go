// Package widget defines dashboard widgets and their per-type configuration.
package widget

import (
	"fmt"
	"strings"
	"time"
)

// Type identifies a widget kind.
type Type string

const (
	TypeKPI        Type = "kpi"
	TypeBarChart   Type = "bar_chart"
	TypeLineChart  Type = "line_chart"
	TypeDataTable  Type = "data_table"
	TypePivotTable Type = "pivot_table"
)

// Types lists the widget kinds that can be created, in picker order.
var Types = []Type{TypeKPI, TypeBarChart, TypeLineChart, TypeDataTable, TypePivotTable}

// Valid reports whether t is a supported widget type.
func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// Aggregation is an SQL aggregate function name. Values are stored lower case;
// parsing accepts any case.
type Aggregation string

const (
	AggSum   Aggregation = "sum"
	AggAvg   Aggregation = "avg"
	AggCount Aggregation = "count"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
)

// ParseAggregation normalizes s. The empty string maps to the empty aggregation.
func ParseAggregation(s string) (Aggregation, error) {
	a := Aggregation(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case "", AggSum, AggAvg, AggCount, AggMin, AggMax:
		return a, nil
	}
	return "", fmt.Errorf("unknown aggregation %q", s)
}

// SQL returns the upper-case function name.
func (a Aggregation) SQL() string { return strings.ToUpper(string(a)) }

// UnmarshalText accepts "SUM", "sum", "Sum", ...
func (a *Aggregation) UnmarshalText(b []byte) error {
	v, err := ParseAggregation(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// allowed aggregation sets per widget type
var (
	kpiAggs   = []Aggregation{AggSum, AggAvg, AggCount, AggMin, AggMax}
	chartAggs = []Aggregation{AggCount, AggSum, AggAvg, AggMin, AggMax}
	pivotAggs = []Aggregation{AggSum, AggCount, AggAvg}
)

// Aggregations returns the aggregations offered for widget type t.
func Aggregations(t Type) []Aggregation {
	switch t {
	case TypeKPI:
		return kpiAggs
	case TypeBarChart, TypeLineChart:
		return chartAggs
	case TypePivotTable:
		return pivotAggs
	}
	return nil
}

// AllowsAggregation reports whether a is offered for widget type t.
func AllowsAggregation(t Type, a Aggregation) bool {
	for _, v := range Aggregations(t) {
		if v == a {
			return true
		}
	}
	return false
}

// Layout is a widget's rectangle on the dashboard grid.
type Layout struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// DefaultLayout is used when a widget is created without a position.
var DefaultLayout = Layout{X: 0, Y: 0, W: 4, H: 3}

// Widget is a persisted dashboard widget.
type Widget struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"-"`
	DashboardID string    `json:"dashboard_id"`
	Type        Type      `json:"widget_type"`
	Config      Config    `json:"config"`
	Layout      Layout    `json:"layout"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Descriptor describes how a widget type is presented in the picker.
type Descriptor struct {
	Type        Type   `json:"type"`
	Label       string `json:"label"`
	Supported   bool   `json:"supported"`
	Description string `json:"description,omitempty"`
}

var descriptors = map[Type]Descriptor{
	TypeKPI:        {Type: TypeKPI, Label: "KPI", Supported: true, Description: "Single aggregated value"},
	TypeBarChart:   {Type: TypeBarChart, Label: "Bar chart", Supported: true, Description: "Grouped values as bars"},
	TypeLineChart:  {Type: TypeLineChart, Label: "Line chart", Supported: true, Description: "Grouped values ordered along the X axis"},
	TypeDataTable:  {Type: TypeDataTable, Label: "Data table", Supported: true, Description: "Rows from one or more tables"},
	TypePivotTable: {Type: TypePivotTable, Label: "Pivot table", Supported: true, Description: "Rows and columns with aggregated measures"},
}

// Describe returns the descriptor for t. Unknown types get a placeholder
// descriptor with Supported=false instead of an error.
func Describe(t Type) Descriptor {
	if d, ok := descriptors[t]; ok {
		return d
	}
	return Descriptor{Type: t, Label: "Not supported", Supported: false, Description: fmt.Sprintf("widget type %q is not supported", t)}
}

// Catalog returns the descriptors of every supported type in picker order.
func Catalog() []Descriptor {
	out := make([]Descriptor, 0, len(Types))
	for _, t := range Types {
		out = append(out, descriptors[t])
	}
	return out
}
