package audit

import (
	"context"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	ormdriver "github.com/faciam-dev/goquent/orm/driver"

	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/internal/widget"
)

func TestQueryDiff(t *testing.T) {
	before := `SELECT "region" AS "Eje X", SUM("amount") AS "Eje Y" FROM be.sales GROUP BY "region"`
	after := `SELECT "region" AS "Eje X", AVG("amount") AS "Eje Y" FROM be.sales GROUP BY "region"`
	d, added, removed := QueryDiff(before, after)
	if added != 1 || removed != 1 {
		t.Fatalf("added=%d removed=%d\n%s", added, removed, d)
	}
	if !strings.Contains(d, `-SELECT "region" AS "Eje X", SUM("amount")`) || strings.Contains(d, "-GROUP BY") {
		t.Fatalf("diff must touch only the select line:\n%s", d)
	}
}

func TestSplitQuery(t *testing.T) {
	got := SplitQuery(`SELECT a FROM t1 UNION ALL SELECT a FROM t2`)
	want := "SELECT a\nFROM t1\nUNION ALL SELECT a\nFROM t2"
	if got != want {
		t.Fatalf("got %q", got)
	}
}

func TestConfigDiffStableKeys(t *testing.T) {
	a := []byte(`{"name":"Revenue","aggregation":"sum"}`)
	b := []byte(`{"aggregation":"sum","name":"Revenue"}`)
	if d, add, del := ConfigDiff(a, b); add != 0 || del != 0 {
		t.Fatalf("key order must not produce a diff:\n%s", d)
	}
	c := []byte(`{"aggregation":"avg","name":"Revenue"}`)
	if _, add, del := ConfigDiff(a, c); add != 1 || del != 1 {
		t.Fatalf("added=%d removed=%d", add, del)
	}
}

func TestRecorderWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	rec := &Recorder{DB: db, Dialect: ormdriver.MySQLDialect{}}
	old := &widget.Widget{ID: "w1", Type: widget.TypeKPI, Config: widget.Config{Name: "A", Options: widget.KPIOptions{}, Query: "SELECT 1"}}
	updated := &widget.Widget{ID: "w1", Type: widget.TypeKPI, Config: widget.Config{Name: "B", Options: widget.KPIOptions{}, Query: "SELECT 2"}}
	mock.ExpectExec("INSERT INTO `bi_audit_logs`").WillReturnResult(sqlmock.NewResult(7, 1))
	ctx := tenant.WithTenant(context.Background(), "acme")
	if err := rec.Write(ctx, "ana", old, updated); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
	if err := rec.Write(ctx, "ana", nil, nil); err == nil {
		t.Fatalf("expected error for empty change")
	}
	var nilRec *Recorder
	if err := nilRec.Write(ctx, "ana", old, nil); err != nil {
		t.Fatalf("nil recorder must be a no-op: %v", err)
	}
}
