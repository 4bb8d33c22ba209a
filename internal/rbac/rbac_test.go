package rbac_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/beexponential/insights/internal/rbac"
)

func TestBuiltinPolicies(t *testing.T) {
	e, err := rbac.NewEnforcer()
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	cases := []struct {
		sub, obj, act string
		want          bool
	}{
		{"admin", "/v1/dashboards/d1", "DELETE", true},
		{"viewer", "/v1/dashboards/d1/widgets", "GET", true},
		{"viewer", "/v1/widget-dialogs", "POST", false},
		{"editor", "/v1/widget-dialogs/abc/save", "POST", true},
		{"editor", "/v1/widgets/w1/layout", "PUT", true},
		{"editor", "/v1/sync-wizards", "POST", false},
		{"nobody", "/v1/dashboards", "GET", false},
	}
	for _, tc := range cases {
		got, err := e.Enforce(tc.sub, tc.obj, tc.act)
		if err != nil {
			t.Fatalf("enforce: %v", err)
		}
		if got != tc.want {
			t.Fatalf("%s %s %s = %v, want %v", tc.sub, tc.act, tc.obj, got, tc.want)
		}
	}
}

func TestLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT r.name, p.path, p.method FROM bi_roles r JOIN bi_role_policies p ON r.id=p.role_id")).WillReturnRows(
		sqlmock.NewRows([]string{"name", "path", "method"}).AddRow("sync-operator", "/v1/syncs/:id/run", "POST"),
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ur.user_id, r.name FROM bi_user_roles ur JOIN bi_roles r ON ur.role_id=r.id")).WillReturnRows(
		sqlmock.NewRows([]string{"user_id", "name"}).AddRow(7, "sync-operator"),
	)
	e, _ := rbac.NewEnforcer()
	if err := rbac.Load(context.Background(), db, "bi_", e); err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok, _ := e.Enforce("7", "/v1/syncs/s1/run", "POST"); !ok {
		t.Fatalf("policy not enforced")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet: %v", err)
	}
}
