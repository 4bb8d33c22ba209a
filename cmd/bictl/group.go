package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/beexponential/insights/internal/listgroup"
)

func newGroupCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Group ClickUp lists by template name",
		Long:  "Reads a JSON array of {\"id\",\"name\"} lists and prints the inferred templates.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var lists []listgroup.List
			if err := json.Unmarshal(data, &lists); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			groups := listgroup.GroupListsByName(lists)
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), groups)
			}
			rows := make([][]string, 0, len(groups))
			for _, g := range groups {
				rows = append(rows, []string{g.TypeName, strconv.Itoa(g.Count), g.SampleListID})
			}
			printTable(cmd.OutOrStdout(), []string{"Template", "Lists", "Sample"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the lists")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
