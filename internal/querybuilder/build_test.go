package querybuilder

import (
	"testing"

	"github.com/beexponential/insights/internal/catalog"
	"github.com/beexponential/insights/internal/widget"
)

var revenue = catalog.CalculatedField{
	Name:       "Total Revenue",
	Expression: "SUM(amount)",
	TablesUsed: []string{"be_exponential.sales"},
}

var margin = catalog.CalculatedField{
	Name:       "Margin",
	Expression: "be_exponential.sales.price - be_exponential.sales.cost",
	TablesUsed: []string{"be_exponential.sales"},
}

func strp(s string) *string { return &s }

func TestBuildKPICalculatedField(t *testing.T) {
	opts := widget.KPIOptions{Tables: []string{"be_exponential.sales"}, Column: "Total Revenue"}
	got, ok := Build(opts, []catalog.CalculatedField{revenue})
	if !ok {
		t.Fatalf("expected query")
	}
	want := "SELECT (SUM(amount)) as value FROM be_exponential.sales"
	if got != want {
		t.Fatalf("unexpected sql:\n got %s\nwant %s", got, want)
	}
}

func TestBuildKPI(t *testing.T) {
	cases := []struct {
		name string
		opts widget.KPIOptions
		want string
	}{
		{
			name: "count star",
			opts: widget.KPIOptions{Tables: []string{"s.a", "s.b"}, Column: "*"},
			want: `SELECT SUM(value) as value FROM (SELECT COUNT(*) as value FROM s.a UNION ALL SELECT COUNT(*) as value FROM s.b) AS combined`,
		},
		{
			name: "plain column",
			opts: widget.KPIOptions{Tables: []string{"s.a", "s.b"}, Column: "s.a.amount", Aggregation: widget.AggAvg},
			want: `SELECT AVG(value) as value FROM (SELECT "amount" as value FROM s.a UNION ALL SELECT "amount" as value FROM s.b) AS combined`,
		},
	}
	for _, tc := range cases {
		got, ok := Build(tc.opts, nil)
		if !ok {
			t.Fatalf("%s: expected query", tc.name)
		}
		if got != tc.want {
			t.Fatalf("%s:\n got %s\nwant %s", tc.name, got, tc.want)
		}
	}
}

func TestBuildChart(t *testing.T) {
	bar := widget.ChartOptions{Kind: widget.TypeBarChart, XAxis: "s.sales.region", Aggregation: widget.AggSum}
	got, ok := Build(bar, nil)
	if !ok {
		t.Fatalf("expected bar query")
	}
	if want := `SELECT "region" AS "Eje X", SUM("region") AS "Eje Y" FROM s.sales GROUP BY "region"`; got != want {
		t.Fatalf("bar:\n got %s\nwant %s", got, want)
	}

	line := widget.ChartOptions{Kind: widget.TypeLineChart, XAxis: "s.sales.month", YAxis: strp("Margin")}
	got, ok = Build(line, []catalog.CalculatedField{margin})
	if !ok {
		t.Fatalf("expected line query")
	}
	if want := `SELECT "month" AS "Eje X", ("price" - "cost") AS "Eje Y" FROM s.sales GROUP BY "month" ORDER BY "month"`; got != want {
		t.Fatalf("line:\n got %s\nwant %s", got, want)
	}

	count := widget.ChartOptions{Kind: widget.TypeBarChart, XAxis: "s.sales.region", Aggregation: widget.AggCount}
	got, _ = Build(count, nil)
	if want := `SELECT "region" AS "Eje X", COUNT("region") AS "Eje Y" FROM s.sales GROUP BY "region"`; got != want {
		t.Fatalf("count:\n got %s\nwant %s", got, want)
	}
}

func TestBuildDataTable(t *testing.T) {
	opts := widget.DataTableOptions{
		Tables:  []string{"s.a", "s.b"},
		Columns: []string{"s.a.id", "s.b.note", "Margin"},
	}
	fields := []catalog.CalculatedField{{Name: "Margin", Expression: "s.a.price - s.a.cost", TablesUsed: []string{"s.a"}}}
	got, ok := Build(opts, fields)
	if !ok {
		t.Fatalf("expected query")
	}
	want := `SELECT "id" AS "id", NULL AS "note", ("price" - "cost") AS "Margin" FROM s.a` +
		` UNION ALL SELECT NULL AS "id", "note" AS "note", NULL AS "Margin" FROM s.b`
	if got != want {
		t.Fatalf("unexpected sql:\n got %s\nwant %s", got, want)
	}
}

func TestBuildDataTableSameNameCollapse(t *testing.T) {
	opts := widget.DataTableOptions{Tables: []string{"s.a", "s.b"}, Columns: []string{"s.a.id", "s.b.id"}}
	got, ok := Build(opts, nil)
	if !ok {
		t.Fatalf("expected query")
	}
	// both columns project under the alias "id"
	want := `SELECT "id" AS "id", NULL AS "id" FROM s.a UNION ALL SELECT NULL AS "id", "id" AS "id" FROM s.b`
	if got != want {
		t.Fatalf("unexpected sql:\n got %s\nwant %s", got, want)
	}
}

func TestBuildPivotValidityGate(t *testing.T) {
	opts := widget.PivotOptions{Tables: []string{"s.sales"}, Rows: []string{"x"}}
	if q, ok := Build(opts, nil); ok || q != "" {
		t.Fatalf("expected no query without measures, got %q", q)
	}
	opts.Measures = []widget.Measure{{Column: "amount", Aggregation: widget.AggSum}}
	got, ok := Build(opts, nil)
	if !ok {
		t.Fatalf("expected query once a measure is complete")
	}
	if want := `SELECT "x", SUM("amount") AS "sum_of_amount" FROM s.sales GROUP BY 1`; got != want {
		t.Fatalf("unexpected sql:\n got %s\nwant %s", got, want)
	}
}

func TestBuildPivotCalculated(t *testing.T) {
	opts := widget.PivotOptions{
		Tables:  []string{"be_exponential.sales"},
		Rows:    []string{"be_exponential.sales.region"},
		Columns: []string{"Margin"},
		Measures: []widget.Measure{
			{Column: "Total Revenue"},
			{Column: "Margin", Aggregation: widget.AggAvg},
		},
	}
	got, ok := Build(opts, []catalog.CalculatedField{revenue, margin})
	if !ok {
		t.Fatalf("expected query")
	}
	want := `SELECT "region", ("price" - "cost") AS "Margin", (SUM(amount)) AS "Total Revenue", AVG(("price" - "cost")) AS "avg_of_Margin" FROM be_exponential.sales GROUP BY 1, 2`
	if got != want {
		t.Fatalf("unexpected sql:\n got %s\nwant %s", got, want)
	}
}

func TestBuildIncomplete(t *testing.T) {
	fields := []catalog.CalculatedField{revenue}
	cases := map[string]widget.Options{
		"kpi no column":          widget.KPIOptions{Tables: []string{"s.a"}},
		"kpi no tables":          widget.KPIOptions{Column: "amount", Aggregation: widget.AggSum},
		"kpi no aggregation":     widget.KPIOptions{Tables: []string{"s.a"}, Column: "amount"},
		"kpi bad table":          widget.KPIOptions{Tables: []string{"s.a; DROP TABLE x"}, Column: "*"},
		"chart no x":             widget.ChartOptions{Aggregation: widget.AggSum},
		"chart unqualified x":    widget.ChartOptions{XAxis: "region", Aggregation: widget.AggSum},
		"chart no y":             widget.ChartOptions{XAxis: "s.a.region"},
		"chart unknown y":        widget.ChartOptions{XAxis: "s.a.region", YAxis: strp("nope")},
		"table no columns":       widget.DataTableOptions{Tables: []string{"s.a"}},
		"table no tables":        widget.DataTableOptions{Columns: []string{"id"}},
		"pivot no table":         widget.PivotOptions{Rows: []string{"x"}, Measures: []widget.Measure{{Column: "a", Aggregation: widget.AggSum}}},
		"pivot no grouping":      widget.PivotOptions{Tables: []string{"s.a"}, Measures: []widget.Measure{{Column: "a", Aggregation: widget.AggSum}}},
		"pivot measure no col":   widget.PivotOptions{Tables: []string{"s.a"}, Rows: []string{"x"}, Measures: []widget.Measure{{Aggregation: widget.AggSum}}},
		"pivot measure no agg":   widget.PivotOptions{Tables: []string{"s.a"}, Rows: []string{"x"}, Measures: []widget.Measure{{Column: "a"}}},
		"pivot min not offered":  widget.PivotOptions{Tables: []string{"s.a"}, Rows: []string{"x"}, Measures: []widget.Measure{{Column: "a", Aggregation: widget.AggMin}}},
		"pivot aggregate as row": widget.PivotOptions{Tables: []string{"s.a"}, Rows: []string{"Total Revenue"}, Measures: []widget.Measure{{Column: "a", Aggregation: widget.AggSum}}},
		"nil options":            nil,
	}
	for name, opts := range cases {
		if q, ok := Build(opts, fields); ok || q != "" {
			t.Fatalf("%s: expected no query, got %q", name, q)
		}
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"SUM(amount)":                        "SUM(amount)",
		"s.t.a + s.t.b":                      `"a" + "b"`,
		`"s"."t"."a" * 2`:                    `"a" * 2`,
		"t.a":                                "t.a",
		"COUNT(DISTINCT crm.clients.client)": `COUNT(DISTINCT "client")`,
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Fatalf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}
