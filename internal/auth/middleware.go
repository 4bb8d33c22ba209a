package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"

	sm "github.com/beexponential/insights/internal/server/middleware"
	"github.com/beexponential/insights/internal/session"
	"github.com/beexponential/insights/internal/tenant"
)

var claimsKey = sm.ClaimsKey()

// Middleware validates JWT tokens, loads the session they point at and
// stores subject, claims, tenant and session in the request context.
func Middleware(api huma.API, j *JWT, sessions session.Store) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		r, w := humachi.Unwrap(ctx)
		c, status, msg := authenticate(r, j, sessions)
		if status != 0 {
			huma.WriteErr(api, ctx, status, msg)
			return
		}
		next(humachi.NewContext(ctx.Operation(), r.WithContext(c), w))
	}
}

// HTTPMiddleware is Middleware for plain chi routes such as the SSE stream.
// Browsers cannot set headers on EventSource, so the token may also come
// from the access_token query parameter.
func HTTPMiddleware(j *JWT, sessions session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := r.URL.Query().Get("access_token"); tok != "" && r.Header.Get("Authorization") == "" {
				r.Header.Set("Authorization", "Bearer "+tok)
			}
			if tid := r.Header.Get(sm.TenantHeader); tid != "" {
				r = r.WithContext(tenant.WithTenant(r.Context(), tid))
			}
			c, status, msg := authenticate(r, j, sessions)
			if status != 0 {
				http.Error(w, msg, status)
				return
			}
			next.ServeHTTP(w, r.WithContext(c))
		})
	}
}

func authenticate(r *http.Request, j *JWT, sessions session.Store) (context.Context, int, string) {
	authHdr := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHdr, "Bearer ") {
		return nil, http.StatusUnauthorized, "unauthorized"
	}
	claims, err := j.Validate(strings.TrimPrefix(authHdr, "Bearer "))
	if err != nil {
		return nil, http.StatusUnauthorized, "unauthorized"
	}
	if hdr := tenant.FromContext(r.Context()); hdr != "" && claims.TenantID != "" && hdr != claims.TenantID {
		return nil, http.StatusForbidden, "tenant mismatch"
	}
	c := r.Context()
	if sessions != nil && claims.SessionID != "" {
		s, err := sessions.Init(c, claims.SessionID)
		if errors.Is(err, session.ErrNoSession) {
			return nil, http.StatusUnauthorized, "session expired"
		}
		if err != nil {
			return nil, http.StatusServiceUnavailable, "session store unavailable"
		}
		c = session.With(c, s)
	}
	c = sm.WithUser(c, claims.Subject)
	c = context.WithValue(c, claimsKey, claims)
	if claims.TenantID != "" {
		c = tenant.WithTenant(c, claims.TenantID)
	}
	return c, 0, ""
}

// UserFromContext returns the user subject stored in the context.
func UserFromContext(ctx context.Context) string { return sm.UserFromContext(ctx) }

// ClaimsFromContext returns the JWT claims stored in context, if any.
func ClaimsFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(claimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// Viewer describes the caller for department scoping. Sessions win over
// claims since they are refreshed on every request.
func Viewer(ctx context.Context) (department string, admin bool) {
	if s, ok := session.From(ctx); ok {
		return s.Department, s.Admin()
	}
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Department, c.Role == "admin"
	}
	return "", false
}

// Roles returns the roles of the caller for RBAC.
func Roles(ctx context.Context, _ string) ([]string, error) {
	if s, ok := session.From(ctx); ok && s.Role != "" {
		return []string{s.Role}, nil
	}
	if c := ClaimsFromContext(ctx); c != nil && c.Role != "" {
		return []string{c.Role}, nil
	}
	return nil, nil
}
