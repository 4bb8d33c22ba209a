package handler

import (
	"context"
	"net/http"

	huma "github.com/beexponential/insights/internal/huma"
	"github.com/beexponential/insights/internal/server/middleware"
)

// AuthHandler reports what the caller may do so the UI can hide actions.
type AuthHandler struct {
	Authz *middleware.Authorizer
}

type Capabilities map[string]bool

type capsOutput struct {
	Body struct {
		Capabilities Capabilities `json:"capabilities"`
	}
}

var capMatrix = map[string]struct{ Path, Method string }{
	"dashboards:list":   {"/v1/dashboards", http.MethodGet},
	"dashboards:create": {"/v1/dashboards", http.MethodPost},
	"dashboards:delete": {"/v1/dashboards/{id}", http.MethodDelete},
	"widgets:list":      {"/v1/dashboards/{id}/widgets", http.MethodGet},
	"widgets:edit":      {"/v1/widget-dialogs", http.MethodPost},
	"widgets:layout":    {"/v1/widgets/{id}/layout", http.MethodPut},
	"widgets:delete":    {"/v1/widgets/{id}", http.MethodDelete},
	"audit:list":        {"/v1/widgets/{id}/audit-logs", http.MethodGet},
	"catalog:read":      {"/v1/catalog/tables", http.MethodGet},
	"syncs:list":        {"/v1/syncs", http.MethodGet},
	"syncs:manage":      {"/v1/sync-wizards", http.MethodPost},
	"syncs:run":         {"/v1/syncs/{id}/run", http.MethodPost},
}

// RegisterAuth registers the capability endpoint. It must be registered
// after authentication and before RBAC so every user can call it.
func RegisterAuth(api huma.API, h *AuthHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "meCapabilities",
		Method:      http.MethodGet,
		Path:        "/v1/auth/me/capabilities",
		Summary:     "Get user capabilities",
		Tags:        []string{"Auth"},
	}, h.meCapabilities)
}

func (h *AuthHandler) meCapabilities(ctx context.Context, _ *struct{}) (*capsOutput, error) {
	caps := Capabilities{}
	for k, v := range capMatrix {
		caps[k] = h.Authz.Allowed(ctx, v.Path, v.Method)
	}
	out := &capsOutput{}
	out.Body.Capabilities = caps
	return out, nil
}
