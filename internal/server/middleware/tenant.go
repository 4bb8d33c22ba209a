package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"

	"github.com/beexponential/insights/internal/tenant"
)

// TenantHeader carries the tenant identifier on every request.
const TenantHeader = "X-Tenant-ID"

// ExtractTenant copies the X-Tenant-ID header into the request context.
// Requests without the header pass through; the auth middleware fills the
// tenant from the token claims and RequireTenant rejects what is left.
func ExtractTenant(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		r, w := humachi.Unwrap(ctx)
		tid := r.Header.Get(TenantHeader)
		if tid == "" {
			next(ctx)
			return
		}
		r = r.WithContext(tenant.WithTenant(r.Context(), tid))
		next(humachi.NewContext(ctx.Operation(), r, w))
	}
}

// RequireTenant rejects requests that reach it without a tenant.
func RequireTenant(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if tenant.FromContext(ctx.Context()) == "" {
			huma.WriteErr(api, ctx, 400, "missing tenant identifier: set X-Tenant-ID header or tid claim")
			return
		}
		next(ctx)
	}
}
