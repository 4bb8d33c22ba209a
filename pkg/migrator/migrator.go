// Package migrator applies the embedded schema migrations of the insights
// backend.
package migrator

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/lib/pq"
)

//go:embed sql/*.sql.tmpl
var migrationFS embed.FS

// Migration holds migration data for one version.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// SchemaMigrator applies migrations to a database.
type SchemaMigrator interface {
	Current(ctx context.Context, db *sql.DB) (int, error)
	Up(ctx context.Context, db *sql.DB, target int) error   // 0=latest
	Down(ctx context.Context, db *sql.DB, target int) error // target<current
}

// Migrator implements SchemaMigrator using embedded SQL templates.
type Migrator struct {
	migrations  []Migration
	TablePrefix string
	Driver      string
}

// dialect holds the column types substituted into the templates.
type dialect struct {
	Prefix string
	ID     string
	JSON   string
	Text   string
	Time   string
	Now    string
	Bool   string
	True   string
}

func dialectFor(driver, prefix string) dialect {
	switch driver {
	case "postgres":
		return dialect{Prefix: prefix, ID: "BIGSERIAL", JSON: "JSONB", Text: "TEXT", Time: "TIMESTAMPTZ", Now: "now()", Bool: "BOOLEAN", True: "TRUE"}
	case "sqlite":
		return dialect{Prefix: prefix, ID: "INTEGER", JSON: "TEXT", Text: "TEXT", Time: "TIMESTAMP", Now: "CURRENT_TIMESTAMP", Bool: "BOOLEAN", True: "1"}
	default:
		return dialect{Prefix: prefix, ID: "BIGINT AUTO_INCREMENT", JSON: "JSON", Text: "TEXT", Time: "DATETIME(6)", Now: "CURRENT_TIMESTAMP(6)", Bool: "BOOLEAN", True: "TRUE"}
	}
}

// NewWithDriverAndPrefix returns a Migrator for the driver with table prefix.
// It panics if the embedded templates are malformed.
func NewWithDriverAndPrefix(driver, prefix string) *Migrator {
	migs, err := load(migrationFS, dialectFor(driver, prefix))
	if err != nil {
		panic(fmt.Sprintf("migrator: %v", err))
	}
	return &Migrator{migrations: migs, TablePrefix: prefix, Driver: driver}
}

// load renders every NNNN_name.{up,down}.sql.tmpl pair in fsys.
func load(fsys fs.FS, d dialect) ([]Migration, error) {
	files, err := fs.Glob(fsys, "sql/*.sql.tmpl")
	if err != nil {
		return nil, err
	}
	byVersion := map[int]*Migration{}
	for _, f := range files {
		base := strings.TrimSuffix(path.Base(f), ".sql.tmpl")
		stem, dir, ok := cutLast(base, ".")
		if !ok || (dir != "up" && dir != "down") {
			return nil, fmt.Errorf("unexpected migration file %s", f)
		}
		num, name, _ := strings.Cut(stem, "_")
		v, err := strconv.Atoi(num)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("bad migration version in %s", f)
		}
		src, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, err
		}
		tpl, err := template.New(base).Option("missingkey=error").Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		var buf bytes.Buffer
		if err := tpl.Execute(&buf, d); err != nil {
			return nil, fmt.Errorf("render %s: %w", f, err)
		}
		m := byVersion[v]
		if m == nil {
			m = &Migration{Version: v, Name: name}
			byVersion[v] = m
		}
		if dir == "up" {
			m.UpSQL = buf.String()
		} else {
			m.DownSQL = buf.String()
		}
	}
	res := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		res = append(res, *m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Version < res[j].Version })
	for i, m := range res {
		if m.Version != i+1 {
			return nil, fmt.Errorf("migration %d missing", i+1)
		}
	}
	return res, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

// Migrations returns the rendered migrations in version order.
func (m *Migrator) Migrations() []Migration {
	return append([]Migration(nil), m.migrations...)
}

// Latest returns the highest known version.
func (m *Migrator) Latest() int { return len(m.migrations) }

func (m *Migrator) versionTable() string {
	return m.TablePrefix + "schema_version"
}

func (m *Migrator) quote(name string) string {
	switch m.Driver {
	case "postgres":
		return pq.QuoteIdentifier(name)
	case "sqlite":
		return `"` + name + `"`
	default:
		return "`" + name + "`"
	}
}

func (m *Migrator) placeholder(n int) string {
	if m.Driver == "postgres" {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Current returns the applied version. A database without the version table
// is at version 0.
func (m *Migrator) Current(ctx context.Context, db *sql.DB) (int, error) {
	query := fmt.Sprintf("SELECT MAX(version) FROM %s", m.quote(m.versionTable()))
	row := db.QueryRowContext(ctx, query) // #nosec G201 -- table name derived from trusted prefix
	var v sql.NullInt64
	if err := row.Scan(&v); err != nil {
		if isTableMissing(err) {
			return 0, nil
		}
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

func splitSQL(src string) []string {
	var (
		res       []string
		buf       strings.Builder
		inSingle  bool
		inDouble  bool
		dollarTag string
	)
	for i := 0; i < len(src); i++ {
		c := src[i]
		if dollarTag != "" {
			if strings.HasPrefix(src[i:], dollarTag) {
				buf.WriteString(dollarTag)
				i += len(dollarTag) - 1
				dollarTag = ""
				continue
			}
			buf.WriteByte(c)
			continue
		}
		switch c {
		case '\'':
			inSingle = !inSingle
		case '"':
			inDouble = !inDouble
		case '$':
			if !inSingle && !inDouble {
				j := i + 1
				for j < len(src) && ((src[j] >= 'a' && src[j] <= 'z') || (src[j] >= 'A' && src[j] <= 'Z') || (src[j] >= '0' && src[j] <= '9') || src[j] == '_') {
					j++
				}
				if j < len(src) && src[j] == '$' {
					dollarTag = src[i : j+1]
					buf.WriteString(dollarTag)
					i = j
					continue
				}
			}
		case ';':
			if !inSingle && !inDouble {
				s := strings.TrimSpace(buf.String())
				if s != "" {
					res = append(res, s)
				}
				buf.Reset()
				continue
			}
		}
		buf.WriteByte(c)
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		res = append(res, s)
	}
	return res
}

func execAll(ctx context.Context, tx *sql.Tx, src string) error {
	for _, stmt := range splitSQL(src) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func (m *Migrator) check(target int) error {
	if target < 0 || target > len(m.migrations) {
		return fmt.Errorf("unknown schema version %d (latest is %d)", target, len(m.migrations))
	}
	return nil
}

// Up migrates the schema up to target. target=0 means latest.
func (m *Migrator) Up(ctx context.Context, db *sql.DB, target int) error {
	if target == 0 {
		target = len(m.migrations)
	}
	if err := m.check(target); err != nil {
		return err
	}
	cur, err := m.Current(ctx, db)
	if err != nil {
		return err
	}
	if cur >= target {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	record := fmt.Sprintf("INSERT INTO %s (version, name) VALUES (%s, %s)", m.quote(m.versionTable()), m.placeholder(1), m.placeholder(2))
	for i := cur; i < target; i++ {
		mig := m.migrations[i]
		err := execAll(ctx, tx, mig.UpSQL)
		if err == nil {
			_, err = tx.ExecContext(ctx, record, mig.Version, mig.Name)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("rollback: %v: %w", rbErr, err)
			}
			return fmt.Errorf("migration %d %s: %w", mig.Version, mig.Name, err)
		}
	}
	return tx.Commit()
}

// Down migrates schema down to target version.
func (m *Migrator) Down(ctx context.Context, db *sql.DB, target int) error {
	if err := m.check(target); err != nil {
		return err
	}
	cur, err := m.Current(ctx, db)
	if err != nil {
		return err
	}
	if target >= cur {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	forget := fmt.Sprintf("DELETE FROM %s WHERE version = %s", m.quote(m.versionTable()), m.placeholder(1))
	for i := cur - 1; i >= target; i-- {
		mig := m.migrations[i]
		var err error
		// version 1 owns the version table itself
		if mig.Version > 1 {
			_, err = tx.ExecContext(ctx, forget, mig.Version)
		}
		if err == nil {
			err = execAll(ctx, tx, mig.DownSQL)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("rollback: %v: %w", rbErr, err)
			}
			return fmt.Errorf("migration %d %s: %w", mig.Version, mig.Name, err)
		}
	}
	return tx.Commit()
}

func isTableMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "doesn't exist") || strings.Contains(msg, "no such table") || strings.Contains(msg, "undefined table")
}

// SQLForRange returns SQL statements needed to migrate from->to.
func (m *Migrator) SQLForRange(from, to int) []string {
	var res []string
	if to > from {
		for i := from; i < to; i++ {
			res = append(res, splitSQL(m.migrations[i].UpSQL)...)
		}
	} else if to < from {
		for i := from - 1; i >= to; i-- {
			res = append(res, splitSQL(m.migrations[i].DownSQL)...)
		}
	}
	return res
}
