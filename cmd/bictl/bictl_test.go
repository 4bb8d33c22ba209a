package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestWidgetSQLCmd(t *testing.T) {
	f := writeFile(t, "kpi.yaml", `type: kpi
name: Revenue
config:
  tables: [be_exponential.sales]
  column: Total Revenue
fields:
  - name: Total Revenue
    expression: SUM(amount)
    tables_used: [be_exponential.sales]
`)
	buf := new(bytes.Buffer)
	cmd := newWidgetSQLCmd()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--file", f})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "SELECT (SUM(amount)) as value FROM be_exponential.sales" {
		t.Fatalf("unexpected sql %q", got)
	}
}

func TestWidgetSQLCmdIncomplete(t *testing.T) {
	f := writeFile(t, "chart.yaml", "type: bar_chart\nname: Empty\nconfig: {}\n")
	cmd := newWidgetSQLCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"-f", f})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "incomplete") {
		t.Fatalf("expected incomplete error, got %v", err)
	}
}

func TestGroupCmd(t *testing.T) {
	f := writeFile(t, "lists.json", `[{"id":"1","name":"Onboarding Acme"},{"id":"2","name":"Onboarding Beta"},{"id":"3","name":"Payroll"}]`)
	buf := new(bytes.Buffer)
	cmd := newGroupCmd()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"-f", f})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := strings.ToUpper(buf.String())
	if !strings.Contains(out, "ONBOARDING") || !strings.Contains(out, "PAYROLL") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestCronCmd(t *testing.T) {
	buf := new(bytes.Buffer)
	cmd := newCronCmd()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--type", "weekly", "--time", "14:30", "--day-of-week", "3", "--count", "2"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if first := strings.SplitN(buf.String(), "\n", 2)[0]; first != "30 14 * * 3" {
		t.Fatalf("cron line = %q", first)
	}
}

func TestMigrateCmds(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "bi.db")

	up := newMigrateUpCmd()
	out := new(bytes.Buffer)
	up.SetOut(out)
	up.SetArgs([]string{"--db", dsn, "--seed", "--tenant", "acme", "--admin-password", "s3cret"})
	if err := up.Execute(); err != nil {
		t.Fatalf("up: %v", err)
	}
	if !strings.Contains(out.String(), "schema at version 3") || !strings.Contains(out.String(), "created admin user for tenant acme") {
		t.Fatalf("unexpected output %q", out.String())
	}

	status := newMigrateStatusCmd()
	out.Reset()
	status.SetOut(out)
	status.SetArgs([]string{"--db", dsn})
	if err := status.Execute(); err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.Contains(out.String(), "false") || !strings.Contains(out.String(), "syncs") {
		t.Fatalf("unexpected status %q", out.String())
	}

	down := newMigrateDownCmd()
	out.Reset()
	down.SetOut(out)
	down.SetArgs([]string{"--db", dsn, "--to", "2"})
	if err := down.Execute(); err != nil {
		t.Fatalf("down: %v", err)
	}
}

func TestMigrateSQLCmd(t *testing.T) {
	cmd := newMigrateSQLCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--driver", "mysql", "--table-prefix", "acme_", "--from", "2"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "CREATE TABLE IF NOT EXISTS acme_sync_configs") {
		t.Fatalf("unexpected sql %q", out.String())
	}
}
