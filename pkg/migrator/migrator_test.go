package migrator

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func TestSplitSQLDollarQuote(t *testing.T) {
	src := "CREATE OR REPLACE FUNCTION notify_widgets_changed() RETURNS trigger LANGUAGE plpgsql AS $$\nBEGIN\n  PERFORM pg_notify('widgets_changed', COALESCE(NEW.id, OLD.id));\n  RETURN NEW;\nEND;\n$$;"
	stmts := splitSQL(src)
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d: %#v", len(stmts), stmts)
	}
}

func TestRenderPerDriver(t *testing.T) {
	cases := []struct {
		driver string
		want   []string
	}{
		{"postgres", []string{"CREATE TABLE IF NOT EXISTS acme_widgets", "config       JSONB", "id          BIGSERIAL PRIMARY KEY"}},
		{"mysql", []string{"CREATE TABLE IF NOT EXISTS acme_widgets", "config       JSON", "BIGINT AUTO_INCREMENT PRIMARY KEY", "DATETIME(6)"}},
	}
	for _, tc := range cases {
		m := NewWithDriverAndPrefix(tc.driver, "acme_")
		if m.Latest() != 3 {
			t.Fatalf("%s: latest = %d", tc.driver, m.Latest())
		}
		up := m.Migrations()[0].UpSQL
		for _, w := range tc.want {
			if !strings.Contains(up, w) {
				t.Errorf("%s: %q not found in\n%s", tc.driver, w, up)
			}
		}
		if strings.Contains(up, "{{") {
			t.Errorf("%s: unrendered template", tc.driver)
		}
	}
}

func TestSQLForRange(t *testing.T) {
	m := NewWithDriverAndPrefix("postgres", "bi_")
	up := m.SQLForRange(1, 2)
	if len(up) != 3 || !strings.HasPrefix(up[0], "CREATE TABLE IF NOT EXISTS bi_roles") {
		t.Fatalf("unexpected up statements: %#v", up)
	}
	down := m.SQLForRange(3, 2)
	if len(down) != 2 || down[0] != "DROP TABLE IF EXISTS bi_events_failed" {
		t.Fatalf("unexpected down statements: %#v", down)
	}
	if got := m.SQLForRange(2, 2); len(got) != 0 {
		t.Fatalf("expected no statements, got %v", got)
	}
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpDown(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	m := NewWithDriverAndPrefix("sqlite", "bi_")

	if v, err := m.Current(ctx, db); err != nil || v != 0 {
		t.Fatalf("fresh database: version %d err %v", v, err)
	}
	if err := m.Up(ctx, db, 0); err != nil {
		t.Fatalf("up: %v", err)
	}
	if v, _ := m.Current(ctx, db); v != 3 {
		t.Fatalf("after up: version %d", v)
	}
	if _, err := db.Exec(`INSERT INTO bi_widgets (id, tenant_id, dashboard_id, widget_type, config) VALUES ('w1', 't1', 'd1', 'kpi', '{}')`); err != nil {
		t.Fatalf("insert widget: %v", err)
	}
	if err := m.Up(ctx, db, 0); err != nil {
		t.Fatalf("second up: %v", err)
	}

	if err := m.Down(ctx, db, 1); err != nil {
		t.Fatalf("down: %v", err)
	}
	if v, _ := m.Current(ctx, db); v != 1 {
		t.Fatalf("after down: version %d", v)
	}
	if _, err := db.Exec(`SELECT 1 FROM bi_roles`); err == nil {
		t.Fatalf("roles table must be dropped")
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM bi_widgets`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("widgets must survive: %d %v", n, err)
	}

	if err := m.Down(ctx, db, 0); err != nil {
		t.Fatalf("down to 0: %v", err)
	}
	if v, err := m.Current(ctx, db); err != nil || v != 0 {
		t.Fatalf("after full down: version %d err %v", v, err)
	}
}

func TestUnknownTarget(t *testing.T) {
	m := NewWithDriverAndPrefix("sqlite", "")
	if err := m.Up(context.Background(), openSQLite(t), 9); err == nil {
		t.Fatalf("expected error for unknown version")
	}
}
