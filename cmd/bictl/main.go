package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "bictl",
	Short:         "Operator tooling for widgets, schedules, ClickUp syncs and the schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("output", "table", "Output format (table|json)")

	rootCmd.AddCommand(newWidgetCmd())
	rootCmd.AddCommand(newCronCmd())
	rootCmd.AddCommand(newGroupCmd())
	rootCmd.AddCommand(newClickUpCmd())
	rootCmd.AddCommand(newMigrateCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
