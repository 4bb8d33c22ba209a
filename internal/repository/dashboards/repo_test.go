package dashboardsrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	ormdriver "github.com/faciam-dev/goquent/orm/driver"

	"github.com/beexponential/insights/internal/tenant"
)

func tctx() context.Context { return tenant.WithTenant(context.Background(), "acme") }

func TestListScopesByDepartment(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := &Repo{DB: db, Dialect: ormdriver.PostgresDialect{}}
	rows := sqlmock.NewRows(columns).AddRow("d1", "Sales KPIs", "sales", "", time.Now())
	mock.ExpectQuery(`SELECT "id", "name", "department", "description", "created_at" FROM "bi_dashboards" WHERE "tenant_id" = \$1 AND "department" = \$2`).
		WithArgs("acme", "sales").
		WillReturnRows(rows)
	got, err := repo.List(tctx(), Viewer{Department: "sales"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Department != "sales" {
		t.Fatalf("unexpected dashboards %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListAdminSeesAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := &Repo{DB: db, Dialect: ormdriver.PostgresDialect{}}
	rows := sqlmock.NewRows(columns).
		AddRow("d1", "Finance", "finance", "", time.Now()).
		AddRow("d2", "Sales KPIs", "sales", "", time.Now())
	mock.ExpectQuery(`FROM "bi_dashboards" WHERE "tenant_id" = \$1 ORDER BY`).
		WithArgs("acme").
		WillReturnRows(rows)
	got, err := repo.List(tctx(), Viewer{Department: "sales", Admin: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("admin must see every department, got %d", len(got))
	}
}

func TestGetOtherDepartment(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := &Repo{DB: db, Dialect: ormdriver.PostgresDialect{}}
	mock.ExpectQuery(`FROM "bi_dashboards"`).WillReturnRows(sqlmock.NewRows(columns))
	if _, err := repo.Get(tctx(), Viewer{Department: "hr"}, "d2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := &Repo{DB: db, Dialect: ormdriver.PostgresDialect{}}
	if _, err := repo.Create(tctx(), Dashboard{Name: "  "}); err == nil {
		t.Fatalf("expected validation error")
	}
	mock.ExpectExec(`INSERT INTO "bi_dashboards"`).WillReturnResult(sqlmock.NewResult(1, 1))
	d, err := repo.Create(tctx(), Dashboard{Name: " Ops ", Department: "ops"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ID == "" || d.Name != "Ops" || d.CreatedAt.IsZero() {
		t.Fatalf("unexpected dashboard %+v", d)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
