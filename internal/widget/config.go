package widget

import (
	"encoding/json"
	"fmt"
)

// Options is the type-specific part of a widget configuration. The concrete
// variants are KPIOptions, ChartOptions, DataTableOptions and PivotOptions.
type Options interface {
	WidgetType() Type
	clone() Options
}

// KPIOptions configures a single-value widget.
type KPIOptions struct {
	Tables      []string    `json:"tables" yaml:"tables"`
	Column      string      `json:"column" yaml:"column"`
	Aggregation Aggregation `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
}

func (KPIOptions) WidgetType() Type { return TypeKPI }

func (o KPIOptions) clone() Options {
	o.Tables = append([]string(nil), o.Tables...)
	return o
}

// ChartOptions configures bar and line charts. Kind selects which one.
type ChartOptions struct {
	Kind        Type        `json:"-" yaml:"-"`
	XAxis       string      `json:"xAxis" yaml:"xAxis"`
	YAxis       *string     `json:"yAxis" yaml:"yAxis"`
	Aggregation Aggregation `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
}

func (o ChartOptions) WidgetType() Type {
	if o.Kind == TypeLineChart {
		return TypeLineChart
	}
	return TypeBarChart
}

func (o ChartOptions) clone() Options {
	if o.YAxis != nil {
		y := *o.YAxis
		o.YAxis = &y
	}
	return o
}

// DataTableOptions configures a flat grid over one or more tables.
type DataTableOptions struct {
	Tables  []string `json:"tables" yaml:"tables"`
	Columns []string `json:"columns" yaml:"columns"`
}

func (DataTableOptions) WidgetType() Type { return TypeDataTable }

func (o DataTableOptions) clone() Options {
	o.Tables = append([]string(nil), o.Tables...)
	o.Columns = append([]string(nil), o.Columns...)
	return o
}

// Measure is one aggregated value of a pivot table.
type Measure struct {
	Column      string      `json:"column" yaml:"column"`
	Aggregation Aggregation `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
}

// PivotOptions configures a pivot table over a single source table.
type PivotOptions struct {
	Tables   []string  `json:"tables" yaml:"tables"`
	Rows     []string  `json:"rows" yaml:"rows"`
	Columns  []string  `json:"columns" yaml:"columns"`
	Measures []Measure `json:"measures" yaml:"measures"`
}

func (PivotOptions) WidgetType() Type { return TypePivotTable }

func (o PivotOptions) clone() Options {
	o.Tables = append([]string(nil), o.Tables...)
	o.Rows = append([]string(nil), o.Rows...)
	o.Columns = append([]string(nil), o.Columns...)
	o.Measures = append([]Measure(nil), o.Measures...)
	return o
}

// Table returns the pivot source table or "".
func (o PivotOptions) Table() string {
	if len(o.Tables) == 0 {
		return ""
	}
	return o.Tables[0]
}

// NewOptions returns empty options for t.
func NewOptions(t Type) (Options, error) {
	switch t {
	case TypeKPI:
		return KPIOptions{}, nil
	case TypeBarChart, TypeLineChart:
		return ChartOptions{Kind: t}, nil
	case TypeDataTable:
		return DataTableOptions{}, nil
	case TypePivotTable:
		return PivotOptions{}, nil
	}
	return nil, fmt.Errorf("widget type %q is not supported", t)
}

// CloneOptions returns a deep copy of o.
func CloneOptions(o Options) Options {
	if o == nil {
		return nil
	}
	return o.clone()
}

// Config is a widget configuration: a name, the type-specific options and
// the SQL derived from them. Query is empty while the options are incomplete.
type Config struct {
	Name    string
	Options Options
	Query   string
}

// Type returns the widget type of the options, or "" when unset.
func (c Config) Type() Type {
	if c.Options == nil {
		return ""
	}
	return c.Options.WidgetType()
}

// Ready reports whether a query has been derived.
func (c Config) Ready() bool { return c.Query != "" }

// MarshalJSON flattens the options next to name and query.
func (c Config) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if c.Options != nil {
		b, err := json.Marshal(c.Options)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, err
		}
	}
	out["name"] = c.Name
	if c.Query != "" {
		out["query"] = c.Query
	} else {
		out["query"] = nil
	}
	return json.Marshal(out)
}

type configHeader struct {
	Name  string  `json:"name"`
	Query *string `json:"query"`
}

// DecodeConfig parses a flattened configuration of widget type t.
func DecodeConfig(t Type, data []byte) (Config, error) {
	var hdr configHeader
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, &hdr); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg := Config{Name: hdr.Name}
	if hdr.Query != nil {
		cfg.Query = *hdr.Query
	}
	switch t {
	case TypeKPI:
		var o KPIOptions
		if err := json.Unmarshal(data, &o); err != nil {
			return Config{}, fmt.Errorf("decode kpi config: %w", err)
		}
		cfg.Options = o
	case TypeBarChart, TypeLineChart:
		var o ChartOptions
		if err := json.Unmarshal(data, &o); err != nil {
			return Config{}, fmt.Errorf("decode chart config: %w", err)
		}
		o.Kind = t
		cfg.Options = o
	case TypeDataTable:
		var o DataTableOptions
		if err := json.Unmarshal(data, &o); err != nil {
			return Config{}, fmt.Errorf("decode data table config: %w", err)
		}
		cfg.Options = o
	case TypePivotTable:
		var o PivotOptions
		if err := json.Unmarshal(data, &o); err != nil {
			return Config{}, fmt.Errorf("decode pivot config: %w", err)
		}
		cfg.Options = o
	default:
		return Config{}, fmt.Errorf("widget type %q is not supported", t)
	}
	return cfg, nil
}

// UnmarshalJSON decodes the config according to widget_type.
func (w *Widget) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID          string          `json:"id"`
		DashboardID string          `json:"dashboard_id"`
		Type        Type            `json:"widget_type"`
		Config      json.RawMessage `json:"config"`
		Layout      Layout          `json:"layout"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	cfg, err := DecodeConfig(aux.Type, aux.Config)
	if err != nil {
		return err
	}
	w.ID = aux.ID
	w.DashboardID = aux.DashboardID
	w.Type = aux.Type
	w.Config = cfg
	w.Layout = aux.Layout
	return nil
}
