package handler

import (
	"context"
	"net/http"

	"github.com/beexponential/insights/internal/api/schema"
	"github.com/beexponential/insights/internal/auth"
	huma "github.com/beexponential/insights/internal/huma"
	dashboardsrepo "github.com/beexponential/insights/internal/repository/dashboards"
)

// DashboardHandler serves dashboards scoped to the caller's department.
type DashboardHandler struct {
	Repo *dashboardsrepo.Repo
}

type dashboardListOut struct {
	Body struct {
		Items []dashboardsrepo.Dashboard `json:"items"`
	}
}

type dashboardIDParam struct {
	ID string `path:"id"`
}

type dashboardOut struct{ Body dashboardsrepo.Dashboard }

type createDashboardInput struct{ Body schema.DashboardInput }

// RegisterDashboards registers dashboard endpoints.
func RegisterDashboards(api huma.API, h *DashboardHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "listDashboards",
		Method:      http.MethodGet,
		Path:        "/v1/dashboards",
		Summary:     "List the dashboards visible to the caller",
		Tags:        []string{"Dashboards"},
	}, h.list)
	huma.Register(api, huma.Operation{
		OperationID: "getDashboard",
		Method:      http.MethodGet,
		Path:        "/v1/dashboards/{id}",
		Summary:     "Get a dashboard",
		Tags:        []string{"Dashboards"},
	}, h.get)
	huma.Register(api, huma.Operation{
		OperationID:   "createDashboard",
		Method:        http.MethodPost,
		Path:          "/v1/dashboards",
		Summary:       "Create a dashboard",
		Tags:          []string{"Dashboards"},
		DefaultStatus: http.StatusCreated,
	}, h.create)
	huma.Register(api, huma.Operation{
		OperationID:   "deleteDashboard",
		Method:        http.MethodDelete,
		Path:          "/v1/dashboards/{id}",
		Summary:       "Delete a dashboard",
		Tags:          []string{"Dashboards"},
		DefaultStatus: http.StatusNoContent,
	}, h.delete)
}

func viewer(ctx context.Context) dashboardsrepo.Viewer {
	dept, admin := auth.Viewer(ctx)
	return dashboardsrepo.Viewer{Department: dept, Admin: admin}
}

func (h *DashboardHandler) list(ctx context.Context, _ *struct{}) (*dashboardListOut, error) {
	items, err := h.Repo.List(ctx, viewer(ctx))
	if err != nil {
		return nil, apiError("list dashboards", err)
	}
	out := &dashboardListOut{}
	out.Body.Items = nonNil(items)
	return out, nil
}

func (h *DashboardHandler) get(ctx context.Context, p *dashboardIDParam) (*dashboardOut, error) {
	d, err := h.Repo.Get(ctx, viewer(ctx), p.ID)
	if err != nil {
		return nil, apiError("get dashboard", err)
	}
	return &dashboardOut{Body: d}, nil
}

func (h *DashboardHandler) create(ctx context.Context, in *createDashboardInput) (*dashboardOut, error) {
	v := viewer(ctx)
	dept := in.Body.Department
	// non-admins can only create dashboards for their own department
	if !v.Admin || dept == "" {
		dept = v.Department
	}
	d, err := h.Repo.Create(ctx, dashboardsrepo.Dashboard{
		Name:        in.Body.Name,
		Department:  dept,
		Description: in.Body.Description,
	})
	if err != nil {
		return nil, apiError("create dashboard", err)
	}
	return &dashboardOut{Body: d}, nil
}

func (h *DashboardHandler) delete(ctx context.Context, p *dashboardIDParam) (*struct{}, error) {
	if err := h.Repo.Delete(ctx, viewer(ctx), p.ID); err != nil {
		return nil, apiError("delete dashboard", err)
	}
	return nil, nil
}
