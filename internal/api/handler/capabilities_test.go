package handler

import (
	"testing"

	"github.com/beexponential/insights/internal/rbac"
	"github.com/beexponential/insights/internal/server/middleware"
)

func TestCapabilities(t *testing.T) {
	e, err := rbac.NewEnforcer()
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	if _, err := e.AddGroupingPolicy("7", rbac.RoleEditor); err != nil {
		t.Fatalf("grouping: %v", err)
	}
	h := &AuthHandler{Authz: middleware.NewAuthorizer(e, nil)}
	ctx := middleware.WithUser(tctx(), "7")

	out, err := h.meCapabilities(ctx, nil)
	if err != nil {
		t.Fatalf("capabilities: %v", err)
	}
	caps := out.Body.Capabilities
	if len(caps) != len(capMatrix) {
		t.Fatalf("every capability must be reported, got %d", len(caps))
	}
	for k, want := range map[string]bool{
		"widgets:list":      true,
		"widgets:edit":      true,
		"widgets:delete":    true,
		"dashboards:create": false,
		"syncs:manage":      false,
	} {
		if caps[k] != want {
			t.Fatalf("%s = %v, want %v", k, caps[k], want)
		}
	}

	anon, _ := h.meCapabilities(tctx(), nil)
	for k, v := range anon.Body.Capabilities {
		if v {
			t.Fatalf("anonymous caller granted %s", k)
		}
	}
}
