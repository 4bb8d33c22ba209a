// Package rbac builds the Casbin enforcer guarding the API.
package rbac

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Built-in roles. Extra roles and grants come from the database.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// NewModel returns the request model: subjects inherit roles, objects are
// chi-style path patterns and "*" grants every method.
func NewModel() model.Model {
	m := model.NewModel()
	m.AddDef("r", "r", "sub, obj, act")
	m.AddDef("p", "p", "sub, obj, act")
	m.AddDef("g", "g", "_, _")
	m.AddDef("e", "e", "some(where (p.eft == allow))")
	m.AddDef("m", "m", "g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == \"*\")")
	return m
}

// NewEnforcer returns an enforcer seeded with the built-in policies.
func NewEnforcer() (*casbin.Enforcer, error) {
	e, err := casbin.NewEnforcer(NewModel())
	if err != nil {
		return nil, err
	}
	policies := [][]string{
		{RoleAdmin, "/v1/*", "*"},
		{RoleViewer, "/v1/*", "GET"},
		{RoleEditor, "/v1/*", "GET"},
		{RoleEditor, "/v1/widget-dialogs", "POST"},
		{RoleEditor, "/v1/widget-dialogs/*", "*"},
		{RoleEditor, "/v1/widgets/:id/layout", "PUT"},
		{RoleEditor, "/v1/widgets/:id", "DELETE"},
		{RoleEditor, "/v1/schedules/cron", "POST"},
	}
	if _, err := e.AddPolicies(policies); err != nil {
		return nil, err
	}
	return e, nil
}
