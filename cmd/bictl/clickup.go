package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/beexponential/insights/internal/clickup"
	"github.com/beexponential/insights/pkg/util"
)

func newClickUpCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "clickup", Short: "Query the ClickUp API"}
	cmd.PersistentFlags().String("token", "", "ClickUp personal token (or CLICKUP_TOKEN)")
	cmd.PersistentFlags().String("base-url", util.GetEnv("CLICKUP_BASE_URL", "https://api.clickup.com/api/v2"), "ClickUp API base URL")
	cmd.AddCommand(newClickUpWorkspacesCmd())
	return cmd
}

func clickupClient(cmd *cobra.Command) (*clickup.Client, string, error) {
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = util.GetEnv("CLICKUP_TOKEN", "")
	}
	if token == "" {
		return nil, "", errors.New("a ClickUp token is required")
	}
	base, _ := cmd.Flags().GetString("base-url")
	return clickup.New(base, clickup.WithTimeout(15*time.Second)), token, nil
}

func newClickUpWorkspacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workspaces",
		Short: "Validate the token and list its workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, token, err := clickupClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := cli.ValidateToken(ctx, token); err != nil {
				return err
			}
			ws, err := cli.ListWorkspaces(ctx, token)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), ws)
			}
			rows := make([][]string, 0, len(ws))
			for _, w := range ws {
				rows = append(rows, []string{w.ID, w.Name})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "Name"}, rows)
			return nil
		},
	}
}
