package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beexponential/insights/internal/session"
	"github.com/beexponential/insights/internal/tenant"
)

func TestHTTPMiddleware(t *testing.T) {
	j := NewJWT("secret", time.Minute)
	store := session.NewMemoryStore()
	s, err := store.Create(context.Background(), session.Session{UserID: "7", TenantID: "acme", Role: "viewer", Department: "sales"})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	tok, err := j.Generate(User{ID: "7", TenantID: "acme", Role: "viewer", Department: "sales"}, s.ID)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	var gotTenant, gotUser, gotDept string
	h := HTTPMiddleware(j, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant = tenant.FromContext(r.Context())
		gotUser = UserFromContext(r.Context())
		gotDept, _ = Viewer(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		target string
		header map[string]string
		want   int
	}{
		{"no token", "/stream", nil, http.StatusUnauthorized},
		{"header token", "/stream", map[string]string{"Authorization": "Bearer " + tok}, http.StatusNoContent},
		{"query token", "/stream?access_token=" + tok, nil, http.StatusNoContent},
		{"tenant mismatch", "/stream", map[string]string{"Authorization": "Bearer " + tok, "X-Tenant-ID": "other"}, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.target, nil)
		for k, v := range tc.header {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: status %d want %d", tc.name, rec.Code, tc.want)
		}
	}
	if gotTenant != "acme" || gotUser != "7" || gotDept != "sales" {
		t.Fatalf("context: tenant=%q user=%q dept=%q", gotTenant, gotUser, gotDept)
	}

	if err := store.Teardown(context.Background(), s.ID); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestRolesFallsBackToClaims(t *testing.T) {
	ctx := context.WithValue(context.Background(), claimsKey, &Claims{Role: "admin", Department: "ops"})
	roles, _ := Roles(ctx, "7")
	if len(roles) != 1 || roles[0] != "admin" {
		t.Fatalf("roles: %v", roles)
	}
	if dept, admin := Viewer(ctx); dept != "ops" || !admin {
		t.Fatalf("viewer: %q %v", dept, admin)
	}
}
