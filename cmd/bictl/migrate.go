package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/beexponential/insights/pkg/migrator"
	"github.com/beexponential/insights/pkg/util"
)

type dbFlags struct {
	DSN         string
	Driver      string
	TablePrefix string
}

func (f *dbFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.DSN, "db", util.GetEnv("DATABASE_URL", ""), "database DSN (postgres://, mysql:// or sqlite://)")
	cmd.Flags().StringVar(&f.Driver, "driver", "", "database driver (detected from the DSN when empty)")
	cmd.Flags().StringVar(&f.TablePrefix, "table-prefix", util.GetEnv("TABLE_PREFIX", "bi_"), "table name prefix")
}

func (f *dbFlags) open() (*sql.DB, error) {
	if f.DSN == "" {
		return nil, fmt.Errorf("--db is required")
	}
	if f.Driver == "" {
		d, err := util.DetectDriver(f.DSN)
		if err != nil {
			return nil, err
		}
		f.Driver = d
	}
	return sql.Open(f.Driver, util.OpenDSN(f.Driver, f.DSN))
}

func parseVersion(s string) (int, error) {
	if s == "" || s == "latest" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return v, nil
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Manage the database schema"}
	cmd.AddCommand(newMigrateUpCmd(), newMigrateDownCmd(), newMigrateStatusCmd(), newMigrateSQLCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	var (
		flags    dbFlags
		to       string
		seed     bool
		tenantID string
		password string
	)
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations up to a version",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseVersion(to)
			if err != nil {
				return err
			}
			if seed && (tenantID == "" || password == "") {
				return fmt.Errorf("--seed needs --tenant and --admin-password")
			}
			db, err := flags.open()
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()
			m := migrator.NewWithDriverAndPrefix(flags.Driver, flags.TablePrefix)
			if err := m.Up(ctx, db, target); err != nil {
				return err
			}
			cur, err := m.Current(ctx, db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", cur)
			if seed {
				return seedAdmin(ctx, db, flags, tenantID, password, cmd.OutOrStdout())
			}
			return nil
		},
	}
	flags.addFlags(cmd)
	cmd.Flags().StringVar(&to, "to", "latest", "target version (number or latest)")
	cmd.Flags().BoolVar(&seed, "seed", false, "create or reset the admin user")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant of the seeded admin")
	cmd.Flags().StringVar(&password, "admin-password", util.GetEnv("INSIGHTS_ADMIN_PASSWORD", ""), "password of the seeded admin")
	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	var (
		flags dbFlags
		to    int
	)
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Revert migrations down to a version",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := flags.open()
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()
			m := migrator.NewWithDriverAndPrefix(flags.Driver, flags.TablePrefix)
			if err := m.Down(ctx, db, to); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", to)
			return nil
		},
	}
	flags.addFlags(cmd)
	cmd.Flags().IntVar(&to, "to", 0, "target version")
	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	var flags dbFlags
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := flags.open()
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()
			m := migrator.NewWithDriverAndPrefix(flags.Driver, flags.TablePrefix)
			cur, err := m.Current(ctx, db)
			if err != nil {
				return err
			}
			type row struct {
				Version int    `json:"version"`
				Name    string `json:"name"`
				Applied bool   `json:"applied"`
			}
			var out []row
			var rows [][]string
			for _, mig := range m.Migrations() {
				applied := mig.Version <= cur
				out = append(out, row{Version: mig.Version, Name: mig.Name, Applied: applied})
				rows = append(rows, []string{strconv.Itoa(mig.Version), mig.Name, strconv.FormatBool(applied)})
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), out)
			}
			printTable(cmd.OutOrStdout(), []string{"Version", "Name", "Applied"}, rows)
			return nil
		},
	}
	flags.addFlags(cmd)
	return cmd
}

func newMigrateSQLCmd() *cobra.Command {
	var (
		driver, prefix string
		from, to       string
	)
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Print the statements between two versions without a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := migrator.NewWithDriverAndPrefix(driver, prefix)
			f, err := parseVersion(from)
			if err != nil {
				return err
			}
			t, err := parseVersion(to)
			if err != nil {
				return err
			}
			if to == "" || to == "latest" {
				t = m.Latest()
			}
			if f < 0 || f > m.Latest() || t < 0 || t > m.Latest() {
				return fmt.Errorf("versions must be between 0 and %d", m.Latest())
			}
			for _, stmt := range m.SQLForRange(f, t) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", stmt)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "postgres", "target dialect (postgres|mysql|sqlite)")
	cmd.Flags().StringVar(&prefix, "table-prefix", util.GetEnv("TABLE_PREFIX", "bi_"), "table name prefix")
	cmd.Flags().StringVar(&from, "from", "0", "current version")
	cmd.Flags().StringVar(&to, "to", "latest", "target version")
	return cmd
}

func seedAdmin(ctx context.Context, db *sql.DB, f dbFlags, tenantID, password string, out io.Writer) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	ph := func(n int) string { return "?" }
	if f.Driver == "postgres" {
		ph = func(n int) string { return "$" + strconv.Itoa(n) }
	}
	tbl := f.TablePrefix + "users"
	var count int
	row := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id=%s AND username='admin'`, tbl, ph(1)), tenantID)
	if err := row.Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		q := fmt.Sprintf(`UPDATE %s SET password_hash=%s, role='admin' WHERE tenant_id=%s AND username='admin'`, tbl, ph(1), ph(2))
		if _, err := db.ExecContext(ctx, q, string(hash), tenantID); err != nil {
			return err
		}
		fmt.Fprintf(out, "updated admin password for tenant %s\n", tenantID)
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s (id,tenant_id,username,password_hash,role,department) VALUES (%s,%s,'admin',%s,'admin','')`, tbl, ph(1), ph(2), ph(3))
	if _, err := db.ExecContext(ctx, q, uuid.NewString(), tenantID, string(hash)); err != nil {
		return err
	}
	fmt.Fprintf(out, "created admin user for tenant %s\n", tenantID)
	return nil
}
