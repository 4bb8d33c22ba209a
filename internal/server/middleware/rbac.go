package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/danielgtaylor/huma/v2"

	"github.com/beexponential/insights/internal/logger"
)

// RoleResolver returns the roles held by user.
type RoleResolver func(ctx context.Context, user string) ([]string, error)

// Authorizer checks a request path and method against the casbin policies of
// the caller and the roles it holds.
type Authorizer struct {
	Enforcer *casbin.Enforcer
	Roles    RoleResolver
}

// NewAuthorizer returns an Authorizer. roles may be nil.
func NewAuthorizer(enf *casbin.Enforcer, roles RoleResolver) *Authorizer {
	return &Authorizer{Enforcer: enf, Roles: roles}
}

// Subjects returns the caller followed by its roles. An anonymous caller has
// no subjects.
func (a *Authorizer) Subjects(ctx context.Context) []string {
	user := UserFromContext(ctx)
	if user == "" {
		return nil
	}
	subjects := []string{user}
	if a.Roles == nil {
		return subjects
	}
	roles, err := a.Roles(ctx, user)
	if err != nil {
		logger.L.Warn("resolve roles", "user", user, "err", err)
		return subjects
	}
	for _, r := range roles {
		if r != "" && r != user {
			subjects = append(subjects, r)
		}
	}
	return subjects
}

// Allowed reports whether any subject of the caller may perform method on path.
func (a *Authorizer) Allowed(ctx context.Context, path, method string) bool {
	for _, s := range a.Subjects(ctx) {
		ok, err := a.Enforcer.Enforce(s, path, method)
		if err != nil {
			logger.L.Error("enforce", "subject", s, "path", path, "err", err)
			return false
		}
		if ok {
			return true
		}
	}
	return false
}

// Middleware answers 403 for operations the caller may not perform.
func (a *Authorizer) Middleware(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		u := ctx.URL()
		if a.Allowed(ctx.Context(), u.Path, ctx.Method()) {
			next(ctx)
			return
		}
		_ = huma.WriteErr(api, ctx, http.StatusForbidden, fmt.Sprintf("%s %s is not permitted", ctx.Method(), u.Path))
	}
}
