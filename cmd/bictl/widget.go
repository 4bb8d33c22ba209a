package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/beexponential/insights/internal/catalog"
	"github.com/beexponential/insights/internal/querybuilder"
	"github.com/beexponential/insights/internal/widget"
)

// widgetFile is the YAML form of a widget configuration together with the
// calculated fields it may reference.
type widgetFile struct {
	Type   widget.Type    `yaml:"type"`
	Name   string         `yaml:"name"`
	Config map[string]any `yaml:"config"`
	Fields []struct {
		Name       string   `yaml:"name"`
		Expression string   `yaml:"expression"`
		TablesUsed []string `yaml:"tables_used"`
	} `yaml:"fields"`
}

func loadWidgetFile(path string) (widget.Config, []catalog.CalculatedField, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return widget.Config{}, nil, err
	}
	var wf widgetFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return widget.Config{}, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if !wf.Type.Valid() {
		return widget.Config{}, nil, fmt.Errorf("unknown widget type %q", wf.Type)
	}
	raw, err := json.Marshal(wf.Config)
	if err != nil {
		return widget.Config{}, nil, err
	}
	cfg, err := widget.DecodeConfig(wf.Type, raw)
	if err != nil {
		return widget.Config{}, nil, err
	}
	cfg.Name = wf.Name
	fields := make([]catalog.CalculatedField, 0, len(wf.Fields))
	for _, f := range wf.Fields {
		fields = append(fields, catalog.CalculatedField{Name: f.Name, Expression: f.Expression, TablesUsed: f.TablesUsed})
	}
	return cfg, fields, nil
}

func newWidgetCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "widget", Short: "Inspect widget configurations"}
	cmd.AddCommand(newWidgetSQLCmd(), newWidgetTypesCmd())
	return cmd
}

func newWidgetSQLCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Print the SQL a widget configuration produces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, fields, err := loadWidgetFile(file)
			if err != nil {
				return err
			}
			q, ok := querybuilder.Build(cfg.Options, fields)
			if !ok {
				return fmt.Errorf("%s widget %q is incomplete: no query", cfg.Type(), cfg.Name)
			}
			if jsonOutput(cmd) {
				cfg.Query = q
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), q)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "widget YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newWidgetTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the widget types and their aggregations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds := widget.Catalog()
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), ds)
			}
			rows := make([][]string, 0, len(ds))
			for _, d := range ds {
				var aggs []string
				for _, a := range widget.Aggregations(d.Type) {
					aggs = append(aggs, string(a))
				}
				rows = append(rows, []string{string(d.Type), d.Label, strconv.FormatBool(d.Supported), strings.Join(aggs, ",")})
			}
			printTable(cmd.OutOrStdout(), []string{"Type", "Label", "Supported", "Aggregations"}, rows)
			return nil
		},
	}
}
